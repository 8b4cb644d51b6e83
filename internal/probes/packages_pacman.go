//go:build !alpm || !cgo

package probes

import "context"

// countPacman counts entries of the pacman local database
func countPacman(_ context.Context, opts Options) (int, error) {
	return countDirs(opts.path("var", "lib", "pacman", "local"))
}
