package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEventEncodeDecodeRoundTrip(t *testing.T) {
	ev := Event{
		Key: "sensor.temp", TSMin: 100, TSMax: 900, Count: 42,
		Appended: 10, Inserted: 32, Updated: 1, Deleted: 0, Splits: 2, Merged: 0,
	}
	got, err := Decode(ev.Encode())
	require.NoError(t, err)
	require.Equal(t, ev, got)
}

func TestDecodeMalformedField(t *testing.T) {
	_, err := Decode("key=a count")
	require.Error(t, err)
}

func TestLocalBusDeliversMatchingPattern(t *testing.T) {
	bus := NewLocalBus()

	delivered := make(chan Event, 1)
	require.NoError(t, bus.RegisterCallback("sensor.*", func(key string, ev Event) {
		delivered <- ev
	}))

	ev := Event{Key: "sensor.temp", Count: 7}
	require.NoError(t, bus.Publish(context.Background(), "sensor.temp", ev))

	select {
	case got := <-delivered:
		require.Equal(t, ev, got)
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
	require.Empty(t, bus.LastError())
}

func TestLocalBusSkipsNonMatchingPattern(t *testing.T) {
	bus := NewLocalBus()

	delivered := make(chan Event, 1)
	require.NoError(t, bus.RegisterCallback("other.*", func(key string, ev Event) {
		delivered <- ev
	}))

	require.NoError(t, bus.Publish(context.Background(), "sensor.temp", Event{Key: "sensor.temp"}))

	select {
	case <-delivered:
		t.Fatal("callback should not have been invoked")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLocalBusRecoversCallbackPanic(t *testing.T) {
	bus := NewLocalBus()

	require.NoError(t, bus.RegisterCallback("*", func(key string, ev Event) {
		panic("boom")
	}))

	require.NoError(t, bus.Publish(context.Background(), "anything", Event{Key: "anything"}))
	require.Contains(t, bus.LastError(), "boom")
}
