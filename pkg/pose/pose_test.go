package pose

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-wayfinder/pkg/geom"
)

func TestFeed_ReadyNeedsStateAndPose(t *testing.T) {
	f := NewFeed()
	assert.False(t, f.Ready())

	f.SetState(StateTracking)
	assert.False(t, f.Ready(), "tracking without a pose is not ready")

	f.SetPose(Pose{Position: geom.V(1, 0, 2), Forward: geom.Forward})
	assert.True(t, f.Ready())

	f.SetState(StateLimited)
	assert.False(t, f.Ready())

	p, ok := f.Pose()
	require.True(t, ok)
	assert.Equal(t, geom.V(1, 0, 2), p.Position)
}

func TestFeed_WaitReady(t *testing.T) {
	f := NewFeed()

	done := make(chan error, 1)
	go func() {
		done <- f.WaitReady(context.Background())
	}()

	f.SetPose(Pose{Forward: geom.Forward})
	select {
	case <-done:
		t.Fatal("WaitReady returned before tracking")
	case <-time.After(20 * time.Millisecond):
	}

	f.SetState(StateTracking)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitReady did not return after becoming ready")
	}
}

func TestFeed_WaitReadyTimeout(t *testing.T) {
	f := NewFeed()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := f.WaitReady(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFeed_OnReadyFiresOnEdges(t *testing.T) {
	f := NewFeed()
	var fired atomic.Int32
	f.OnReady(func() { fired.Add(1) })

	f.SetState(StateTracking)
	f.SetPose(Pose{})
	f.SetPose(Pose{}) // still ready, no edge
	assert.Equal(t, int32(1), fired.Load())

	f.Clear()
	assert.False(t, f.Ready())
	f.SetState(StateTracking)
	f.SetPose(Pose{})
	assert.Equal(t, int32(2), fired.Load())
}

func TestParseTrackingState(t *testing.T) {
	for _, s := range []TrackingState{StateNone, StateInitializing, StateTracking, StateLimited} {
		got, err := ParseTrackingState(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}

	_, err := ParseTrackingState("sleeping")
	assert.Error(t, err)
}
