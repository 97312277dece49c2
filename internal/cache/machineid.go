package cache

import (
	"encoding/base64"
	"os"
	"strings"

	"github.com/Showmax/go-fqdn"
)

// machineIDPaths are checked in order for a stable per-host identifier,
// falling back to the FQDN (fqdn.FqdnHostname(), also used for domain
// auto-detection) and finally os.Hostname.
var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// MachineID returns a base64-encoded stable machine identifier, used as the
// cache filename fallback when RealDNSName is unset.
func MachineID() string {
	for _, p := range machineIDPaths {
		if data, err := os.ReadFile(p); err == nil {
			id := strings.TrimSpace(string(data))
			if id != "" {
				return base64.URLEncoding.EncodeToString([]byte(id))
			}
		}
	}

	if host, err := fqdn.FqdnHostname(); err == nil && host != "" {
		return base64.URLEncoding.EncodeToString([]byte(host))
	}

	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return base64.URLEncoding.EncodeToString([]byte(host))
}
