package ldaptransport

import (
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbePortSucceedsAgainstAListener(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			c.Close()
		}
	}()

	host, port := splitHostPortInt(t, ln.Addr().String())
	assert.NoError(t, probePort(host, port, 2*time.Second))
}

func TestProbePortFailsAgainstClosedPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close() // free the port, nothing listens on it now

	host, port := splitHostPortInt(t, addr)
	assert.Error(t, probePort(host, port, 500*time.Millisecond))
}

func splitHostPortInt(t *testing.T, addr string) (string, int) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	var port int
	_, err = fmt.Sscanf(portStr, "%d", &port)
	require.NoError(t, err)
	return host, port
}

func TestProbePortZeroTimeoutDefaultsRatherThanFailingImmediately(t *testing.T) {
	err := probePort("127.0.0.1", 1, 0)
	assert.Error(t, err) // port 1 is not listening, but the call must not panic on timeout<=0
}
