package elmo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, conn *fakeConn, sectors int) (*Coordinator, *int) {
	t.Helper()
	var attempts int
	inv := NewInventory(func() (Conn, error) { return conn, nil }, sectors)
	c := NewCoordinator(inv, time.Second)
	c.NewBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}
	c.OnRequest = func(error) { attempts++ }
	t.Cleanup(func() { require.NoError(t, c.Close()) })
	return c, &attempts
}

func TestCoordinatorInterval(t *testing.T) {
	require.Equal(t, MinScanInterval, NewCoordinator(nil, 0).Interval())
	require.Equal(t, time.Minute, NewCoordinator(nil, time.Minute).Interval())
}

func TestCoordinatorRefresh(t *testing.T) {
	conn := newFakeConn()
	conn.discrete[RegisterStatusStart] = true
	c, attempts := newTestCoordinator(t, conn, 2)
	c.Inventory().RequireStatus()

	_, ok := c.Data()
	require.False(t, ok)
	require.False(t, c.Available())

	var got []Snapshot
	c.Subscribe(func(s Snapshot) { got = append(got, s) })
	var availability []bool
	c.WatchAvailability(func(v bool) { availability = append(availability, v) })

	require.NoError(t, c.Refresh())
	require.True(t, c.Available())
	require.NoError(t, c.LastError())
	require.Len(t, got, 1)
	require.Equal(t, []bool{true, false}, got[0].Status.Armed)
	require.Equal(t, 1, *attempts)

	t.Run("failure keeps data", func(t *testing.T) {
		conn.failOn = "discrete"
		err := c.Refresh()
		require.ErrorIs(t, err, ErrConnection)
		require.False(t, c.Available())
		require.ErrorIs(t, c.LastError(), ErrConnection)
		require.Equal(t, 4, *attempts, "should retry twice")
		require.Len(t, got, 1, "listeners are not notified on failure")

		data, ok := c.Data()
		require.True(t, ok)
		require.Equal(t, []bool{true, false}, data.Status.Armed)
	})

	t.Run("recovers", func(t *testing.T) {
		conn.failOn = ""
		require.NoError(t, c.Refresh())
		require.True(t, c.Available())
		require.Len(t, got, 2)
		require.NoError(t, c.Refresh())
		require.Equal(t, []bool{true, false, true}, availability)
	})
}

func TestCoordinatorExecutePermanent(t *testing.T) {
	c, attempts := newTestCoordinator(t, newFakeConn(), 2)

	var calls int
	err := c.Execute(func(*Inventory) error {
		calls++
		return ErrInvalidSelection
	})
	require.ErrorIs(t, err, ErrInvalidSelection)
	require.Equal(t, 1, calls)
	require.Equal(t, 1, *attempts)

	calls = 0
	err = c.Execute(func(*Inventory) error {
		calls++
		return errors.New("transient")
	})
	require.Error(t, err)
	require.Equal(t, 3, calls)
}

func TestCoordinatorArm(t *testing.T) {
	conn := newFakeConn()
	conn.discrete[RegisterStatusStart+2] = true
	c, _ := newTestCoordinator(t, conn, 4)
	c.Inventory().RequireStatus()
	require.NoError(t, c.Refresh())

	p := Panel{Slug: "house", Modes: map[Mode][]int{ModeAway: {1, 2}, ModeHome: {2}}}
	codes := Codes{"1234"}

	t.Run("code required", func(t *testing.T) {
		require.ErrorIs(t, c.Arm(p, ModeHome, codes, ""), ErrCodeRequired)
		require.Empty(t, conn.writes)
	})

	t.Run("invalid code", func(t *testing.T) {
		require.ErrorIs(t, c.Arm(p, ModeHome, codes, "0000"), ErrInvalidCode)
		require.Empty(t, conn.writes)
	})

	t.Run("mode not configured", func(t *testing.T) {
		require.ErrorIs(t, c.Arm(p, ModeNight, codes, "1234"), ErrModeNotConfigured)
		require.Empty(t, conn.writes)
	})

	t.Run("home", func(t *testing.T) {
		require.NoError(t, c.Arm(p, ModeHome, codes, "1234"))
		require.Equal(t, map[uint16]bool{
			RegisterCommandStart:     false,
			RegisterCommandStart + 1: true,
			RegisterCommandStart + 2: true,
			RegisterCommandStart + 3: false,
		}, conn.writes)
		require.Len(t, c.refresh, 1, "should request a refresh")
	})

	t.Run("disarm", func(t *testing.T) {
		conn.discrete[RegisterStatusStart+1] = true
		require.NoError(t, c.Refresh())
		require.NoError(t, c.Disarm(p, codes, "1234"))
		require.Equal(t, map[uint16]bool{
			RegisterCommandStart:     false,
			RegisterCommandStart + 1: false,
			RegisterCommandStart + 2: true,
			RegisterCommandStart + 3: false,
		}, conn.writes)
	})

	t.Run("connection failure", func(t *testing.T) {
		conn.failOn = "write"
		err := c.Arm(p, ModeAway, codes, "1234")
		require.ErrorIs(t, err, ErrConnection)
		require.ErrorContains(t, err, "house")
	})
}

func TestCoordinatorSetOutput(t *testing.T) {
	conn := newFakeConn()
	c, _ := newTestCoordinator(t, conn, 1)
	o := OutputSwitches([]int{3}, nil)[0]

	require.NoError(t, c.SetOutput(o, true))
	require.True(t, conn.writes[OutputAddress(3)])
	on, ok := o.Value(c.Inventory().Snapshot())
	require.True(t, ok)
	require.True(t, on)
}

func TestCoordinatorSetInputExclusion(t *testing.T) {
	conn := newFakeConn()
	c, attempts := newTestCoordinator(t, conn, 1)

	require.NoError(t, c.SetInputExclusion([]int{3, 5}, true))
	require.Equal(t, map[uint16]bool{
		InputExcludedAddress(3): false,
		InputExcludedAddress(5): false,
	}, conn.writes)
	require.Len(t, c.refresh, 1)

	*attempts = 0
	require.ErrorIs(t, c.SetInputExclusion([]int{0}, true), ErrInvalidSelection)
	require.Equal(t, 1, *attempts, "invalid inputs are not retried")
	require.ErrorIs(t, c.SetInputExclusion(nil, true), ErrInvalidSelection)
}

func TestCoordinatorRun(t *testing.T) {
	conn := newFakeConn()
	c, _ := newTestCoordinator(t, conn, 1)
	c.Inventory().RequireStatus()

	refreshed := make(chan struct{}, 1)
	c.Subscribe(func(Snapshot) {
		select {
		case refreshed <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	c.RequestRefresh()
	select {
	case <-refreshed:
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not refresh")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("coordinator did not stop")
	}
}
