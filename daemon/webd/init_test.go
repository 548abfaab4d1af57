package webd

import (
	"github.com/rotblauer/tripd/params"
	"testing"
)

// newTestWebDaemon creates a new WebDaemon for testing purposes.
// The config is modified by each of the given functions before the daemon is made.
func newTestWebDaemon(t *testing.T, configure ...func(*params.WebDaemonConfig)) *WebDaemon {
	t.Helper()
	config := params.DefaultTestWebDaemonConfig()
	for _, fn := range configure {
		fn(config)
	}
	daemon, err := NewWebDaemon(config)
	if err != nil {
		t.Fatal(err)
	}
	return daemon
}
