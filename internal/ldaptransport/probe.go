package ldaptransport

import (
	"fmt"
	"net"
	"time"
)

// probePort does a bare TCP connect to check the LDAP port is reachable
// before spending time on a full bind. A timeout of zero or less falls back
// to 2s; other values are used as given.
func probePort(host string, port int, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	c, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return fmt.Errorf("port probe %s: %w", addr, err)
	}
	return c.Close()
}
