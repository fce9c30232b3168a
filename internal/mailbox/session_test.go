package mailbox

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohitk/email-organizer/internal/model"
)

// deadAddr returns host and port for a local port nothing listens on.
func deadAddr(t *testing.T) (string, string) {
	t.Helper()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	require.NoError(t, l.Close())

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	return host, port
}

func TestConnectFailureIsConnectError(t *testing.T) {
	host, port := deadAddr(t)

	tests := []struct {
		name string
		tls  bool
	}{
		{name: "implicit tls", tls: true},
		{name: "starttls", tls: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := model.IMAPConfig{
				Host:              host,
				Port:              port,
				TLS:               tc.tls,
				ConnectTimeoutSec: 1,
			}
			session := NewSession(cfg, "a@example.com", "pw", nil)
			defer session.Close()

			start := time.Now()
			err := session.Connect(context.Background())
			elapsed := time.Since(start)

			require.Error(t, err)
			assert.True(t, IsConnectError(err), "got %T: %v", err, err)
			assert.False(t, IsAuthError(err))

			// Both dial paths honor the configured timeout; a refused
			// local connection fails well inside it.
			assert.Less(t, elapsed, 5*time.Second)
		})
	}
}

func TestFetchLatestBeforeConnect(t *testing.T) {
	session := NewSession(model.IMAPConfig{}, "a@example.com", "pw", nil)

	_, err := session.FetchLatest(context.Background(), 10)
	assert.Error(t, err)
}

func TestCloseWithoutConnect(t *testing.T) {
	session := NewSession(model.IMAPConfig{}, "a@example.com", "pw", nil)
	assert.NoError(t, session.Close())
	assert.NoError(t, session.Close())
}
