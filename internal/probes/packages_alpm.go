//go:build alpm && cgo

package probes

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/Jguer/go-alpm/v2"
)

// countPacman reads the pacman local database through libalpm
func countPacman(_ context.Context, opts Options) (int, error) {
	dbPath := opts.path("var", "lib", "pacman")
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	h, err := alpm.Initialize(opts.Root, dbPath)
	if err != nil {
		return 0, fmt.Errorf("failed to initialize alpm: %w", err)
	}
	defer h.Release()

	localDB, err := h.LocalDB()
	if err != nil {
		return 0, fmt.Errorf("could not get local db: %w", err)
	}

	return len(localDB.PkgCache().Slice()), nil
}
