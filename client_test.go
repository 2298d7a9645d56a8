package elmo

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClient(t *testing.T) {
	host := os.Getenv("ELMO_HOST")
	if host == "" || os.Getenv("CI") != "" {
		t.Skip("needs a panel on the network, set ELMO_HOST")
	}
	cli, err := New(host, "502", 1, time.Second*10)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = cli.Close()
	})

	armed, err := cli.ReadDiscreteInputs(RegisterStatusStart, 16)
	require.NoError(t, err)
	require.Len(t, armed, 16)
	t.Logf("armed: %v", armed)

	inputs, err := cli.ReadDiscreteInputs(InputAddress(1), 8)
	require.NoError(t, err)
	require.Len(t, inputs, 8)
	t.Logf("inputs: %v", inputs)

	regs, err := cli.ReadHoldingRegisters(RegisterTemperature, 1)
	require.NoError(t, err)
	temp, ok := TemperatureSensor.Decode(regs[0])
	t.Logf("temperature: %v (%v)", temp, ok)
}

func TestNewRequiresHost(t *testing.T) {
	_, err := New("", "502", 1, time.Second)
	require.Error(t, err)
}

func TestMacAddress(t *testing.T) {
	host := os.Getenv("ELMO_HOST")
	if host == "" || os.Getenv("CI") != "" {
		t.Skip("needs a panel on the network, set ELMO_HOST")
	}
	hw, err := MacAddress(host)
	require.NoError(t, err)
	require.NotEmpty(t, hw)
}
