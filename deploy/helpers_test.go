package deploy_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest/observer"
)

type observedLogs struct {
	*observer.ObservedLogs
}

func (o *observedLogs) all(msg string) []observer.LoggedEntry {
	return o.FilterMessage(msg).All()
}

// one returns the fields of the single entry logged with msg.
func (o *observedLogs) one(t *testing.T, msg string) map[string]any {
	t.Helper()

	entries := o.all(msg)
	require.Len(t, entries, 1, "entries logged with %q", msg)

	return entries[0].ContextMap()
}
