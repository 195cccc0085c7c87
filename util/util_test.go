package util

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestInterpolate(t *testing.T) {
	doc := map[string]any{
		"forms": map[string]any{
			"request": map[string]any{"name": "Juan", "amount": float64(12)},
		},
	}
	require.Equal(t, "Request of Juan for 12", Interpolate(doc, "Request of {$.forms.request.name} for {$.forms.request.amount}"))
	require.Equal(t, "no tokens", Interpolate(doc, "no tokens"))
	require.Equal(t, "missing ", Interpolate(doc, "missing {$.forms.other.name}"))
}

func TestSlices(t *testing.T) {
	in := []string{"juan"}
	in = AppendUnique(in, "juan")
	in = AppendUnique(in, "ana")
	require.Equal(t, []string{"juan", "ana"}, in)
	require.True(t, Permitted(nil, "anyone"))
	require.True(t, Permitted(in, "ana"))
	require.False(t, Permitted(in, "pedro"))
}

func TestWorkerDrainsOnStop(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make([]int, 0)
	w := NewWorker("test", &wg, func(task Task) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, task.(int))
		return nil
	}, 8)
	for i := 0; i < 5; i++ {
		w.Sender() <- i
	}
	w.Start()
	require.NoError(t, w.Stop())
	wg.Wait()
	require.Equal(t, []int{0, 1, 2, 3, 4}, seen)
}

func TestTickWorker(t *testing.T) {
	var wg sync.WaitGroup
	ticks := make(chan struct{}, 10)
	tw := NewTickWorker("tick", 10*time.Millisecond, func() {
		select {
		case ticks <- struct{}{}:
		default:
		}
	}, &wg)
	tw.Start()
	require.True(t, tw.IsRunning())
	<-ticks
	require.NoError(t, tw.Stop())
	wg.Wait()
	require.False(t, tw.IsRunning())
}
