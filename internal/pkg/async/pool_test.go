package async

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolExecute(t *testing.T) {
	pool := NewPool(3)

	var tasks []Task
	for i := 0; i < 10; i++ {
		i := i
		tasks = append(tasks, Task{
			Name: fmt.Sprintf("task-%d", i),
			Execute: func() (interface{}, error) {
				if i == 7 {
					return nil, errors.New("boom")
				}
				return i * i, nil
			},
		})
	}

	results := pool.Execute(context.Background(), tasks)

	require.Len(t, results, 10)
	assert.Equal(t, 16, results["task-4"].Data)
	assert.EqualError(t, results["task-7"].Err, "boom")
}

func TestPoolIsReusable(t *testing.T) {
	pool := NewPool(2)
	task := []Task{{Name: "only", Execute: func() (interface{}, error) { return "ok", nil }}}

	assert.Equal(t, "ok", pool.Execute(context.Background(), task)["only"].Data)
	assert.Equal(t, "ok", pool.Execute(context.Background(), task)["only"].Data)
}

func TestPoolLimitsConcurrency(t *testing.T) {
	pool := NewPool(2)
	var running, peak int32

	var tasks []Task
	for i := 0; i < 8; i++ {
		tasks = append(tasks, Task{
			Name: fmt.Sprintf("t%d", i),
			Execute: func() (interface{}, error) {
				n := atomic.AddInt32(&running, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil, nil
			},
		})
	}

	results := pool.Execute(context.Background(), tasks)
	assert.Len(t, results, 8)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed int32
	tasks := []Task{{Name: "a", Execute: func() (interface{}, error) {
		atomic.AddInt32(&executed, 1)
		return nil, nil
	}}}

	results := NewPool(1).Execute(ctx, tasks)
	assert.LessOrEqual(t, len(results), 1)
}

func TestPoolWithoutTasks(t *testing.T) {
	assert.Empty(t, NewPool(4).Execute(context.Background(), nil))
}
