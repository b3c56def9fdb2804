package instance

import (
	"os"

	"github.com/angelmondragon/erpcore/pkg/env"
)

// ID identifies this process in logs: the explicit override, then the
// platform dyno name, then the hostname.
func ID(kind string) string {
	if id, ok := env.Lookup("ERPCORE_INSTANCE_ID", "DYNO"); ok {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	if kind == "" {
		kind = "erpcore"
	}
	return kind + "-0"
}
