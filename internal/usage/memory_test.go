package usage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryRecord(t *testing.T) {
	t.Parallel()

	rec := NewMemory()
	evt := Event{Service: "video", Action: "generate", Endpoint: "https://gw-1.example.com", At: time.Unix(100, 0)}
	require.NoError(t, rec.Record(context.Background(), evt))
	require.NoError(t, rec.Record(context.Background(), Event{Service: "image"}))

	events := rec.Events()
	require.Len(t, events, 2)
	require.Equal(t, evt, events[0])

	// The returned slice is a copy.
	events[0].Service = "mutated"
	require.Equal(t, "video", rec.Events()[0].Service)
}
