package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/kasuganosora/npcsensor/game/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(kind sensor.EventKind) sensor.EventRecord { return sensor.EventRecord{Kind: kind} }

func TestDispatch_NoListeners(t *testing.T) {
	c := NewCenter(nil)
	require.NoError(t, c.Dispatch(context.Background(), rec(sensor.EventTargetLost)))
}

func TestDispatch_PriorityThenRegistrationOrder(t *testing.T) {
	c := NewCenter(nil)
	var order []string
	add := func(kind sensor.EventKind, prio int, name string) {
		c.On(kind, prio, name, func(context.Context, sensor.EventRecord) error {
			order = append(order, name)
			return nil
		})
	}
	add(sensor.EventTargetSpotted, 10, "late")
	add(sensor.EventTargetSpotted, 1, "first")
	add(AnyKind, 5, "any")
	add(sensor.EventTargetSpotted, 10, "late2")
	add(sensor.EventTargetLost, 0, "other")

	c.Deliver(rec(sensor.EventTargetSpotted))
	assert.Equal(t, []string{"first", "any", "late", "late2"}, order)
}

func TestDispatch_InterruptStopsChain(t *testing.T) {
	c := NewCenter(nil)
	called := false
	c.On(sensor.EventAlertLevelChanged, 0, "stop", func(context.Context, sensor.EventRecord) error {
		return ErrInterrupt
	})
	c.On(sensor.EventAlertLevelChanged, 1, "after", func(context.Context, sensor.EventRecord) error {
		called = true
		return nil
	})
	err := c.Dispatch(context.Background(), rec(sensor.EventAlertLevelChanged))
	assert.ErrorIs(t, err, ErrInterrupt)
	assert.False(t, called)
}

func TestDispatch_OtherErrorsContinue(t *testing.T) {
	c := NewCenter(nil)
	called := false
	c.On(AnyKind, 0, "bad", func(context.Context, sensor.EventRecord) error { return errors.New("boom") })
	c.On(AnyKind, 1, "good", func(context.Context, sensor.EventRecord) error {
		called = true
		return nil
	})
	require.NoError(t, c.Dispatch(context.Background(), rec(sensor.EventMemoryForgotten)))
	assert.True(t, called)
}

func TestOffAndOffAll(t *testing.T) {
	c := NewCenter(nil)
	noop := func(context.Context, sensor.EventRecord) error { return nil }
	c.On(sensor.EventTargetSpotted, 0, "a", noop)
	c.On(sensor.EventTargetSpotted, 0, "b", noop)
	c.On(sensor.EventTargetLost, 0, "a", noop)

	c.Off(sensor.EventTargetSpotted, "b")
	assert.Equal(t, 1, c.Count(sensor.EventTargetSpotted))

	c.OffAll("a")
	assert.Zero(t, c.Count(sensor.EventTargetSpotted))
	assert.Zero(t, c.Count(sensor.EventTargetLost))
}
