package probes

import (
	"context"
	"fmt"
	"os/user"
	"strings"

	"github.com/stone-age-io/hostfacts/internal/sysinfo"
)

// stripDomain drops a Windows "DOMAIN\" prefix
func stripDomain(name string) string {
	if i := strings.LastIndex(name, `\`); i >= 0 {
		return name[i+1:]
	}
	return name
}

// NewUsernameProbe reports the login name of the current user.
//
// Fallback order: the user database, then USER, LOGNAME and USERNAME.
func NewUsernameProbe(opts Options) sysinfo.Probe {
	return sysinfo.Chain(sysinfo.FieldUsername,
		liveOnly(opts, sysinfo.Strategy{
			Name: "user-db",
			Fn: func(context.Context) (string, error) {
				u, err := user.Current()
				if err != nil {
					return "", fmt.Errorf("failed to look up current user: %w", err)
				}
				return stripDomain(u.Username), nil
			},
		}),
		envStrategy("env", "USER", "LOGNAME", "USERNAME"),
	)
}
