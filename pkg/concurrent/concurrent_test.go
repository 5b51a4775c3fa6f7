package concurrent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMap_PreservesOrder(t *testing.T) {
	in := []int{5, 1, 4, 2, 3}
	out, err := Map(context.Background(), in, 2, func(_ context.Context, v int) (int, error) {
		time.Sleep(time.Duration(v) * time.Millisecond)
		return v * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{50, 10, 40, 20, 30}, out)
}

func TestMap_LimitsWorkers(t *testing.T) {
	var running, peak atomic.Int32
	_, err := Map(context.Background(), make([]int, 16), 3, func(_ context.Context, _ int) (int, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		running.Add(-1)
		return 0, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestMap_ReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	out, err := Map(context.Background(), []int{1, 2, 3}, 0, func(_ context.Context, v int) (int, error) {
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, out)
}

func TestMap_Empty(t *testing.T) {
	out, err := Map(context.Background(), []string(nil), 4, func(context.Context, string) (string, error) {
		return "", errors.New("never called")
	})
	require.NoError(t, err)
	assert.Empty(t, out)
}
