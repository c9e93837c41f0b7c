package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKafkaTicksHandlerStoresTick(t *testing.T) {
	sink := &stubTickSink{}
	h := NewKafkaTicksHandler("fusion.readings", sink, newNopMetrics())

	require.Equal(t, "fusion.readings", h.Topic())

	msg := []byte(`{"symbol":"BTCUSDT","t":1700000000,"p":42000.5,"v":0.25}`)
	require.NoError(t, h.Handle(context.Background(), msg))

	require.Len(t, sink.stored, 1)
	tick := sink.stored[0]
	require.Equal(t, "BTCUSDT", tick.Symbol)
	require.Equal(t, int64(1700000000), tick.Timestamp)
	require.InDelta(t, 42000.5, tick.Price, 1e-9)
	require.InDelta(t, 0.25, tick.Volume, 1e-9)
}

func TestKafkaTicksHandlerMillisecondTimestamps(t *testing.T) {
	sink := &stubTickSink{}
	h := NewKafkaTicksHandler("fusion.readings", sink, newNopMetrics())

	msg := []byte(`{"symbol":"ETHUSDT","t":1700000000123,"p":2200,"v":1}`)
	require.NoError(t, h.Handle(context.Background(), msg))
	require.Equal(t, int64(1700000000), sink.stored[0].Timestamp)
}

func TestKafkaTicksHandlerBadPayload(t *testing.T) {
	m := newNopMetrics()
	h := NewKafkaTicksHandler("fusion.readings", &stubTickSink{}, m)

	require.Error(t, h.Handle(context.Background(), []byte("not json")))
	require.Equal(t, 1, m.errors["consumer_unmarshal"])
}
