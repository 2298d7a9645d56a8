package mqtt

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientOnConnect(t *testing.T) {
	mc := NewClient(Options{
		Broker:   "tcp://127.0.0.1:1883",
		ClientID: "test",
	})

	var calls []string
	mc.OnConnect(func() { calls = append(calls, "first") })
	mc.OnConnect(func() { calls = append(calls, "second") })

	// no topics yet, so the paho client is not used.
	mc.onConnUp(nil)
	require.Equal(t, []string{"first", "second"}, calls)

	mc.onConnUp(nil)
	require.Len(t, calls, 4, "hooks run on every reconnect")
}
