package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartAndShutdownOrder(t *testing.T) {
	m := New(time.Second, nil)
	var log []string
	record := func(s string) { log = append(log, s) }

	m.Register("db", func(context.Context) error { record("stop db"); return nil })
	m.Add(Component{
		Name:  "worker",
		Start: func(context.Context) error { record("start worker"); return nil },
		Stop:  func(context.Context) error { record("stop worker"); return nil },
	})
	m.Add(Component{
		Name:  "http",
		Start: func(context.Context) error { record("start http"); return nil },
		Stop:  func(context.Context) error { record("stop http"); return nil },
	})

	require.NoError(t, m.Start(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))
	require.NoError(t, m.Shutdown(context.Background()))

	assert.Equal(t, []string{
		"start worker", "start http",
		"stop http", "stop worker", "stop db",
	}, log)
}

func TestStartFailureStopsStartedComponents(t *testing.T) {
	m := New(time.Second, nil)
	var stopped []string

	m.Add(Component{
		Name:  "a",
		Start: func(context.Context) error { return nil },
		Stop:  func(context.Context) error { stopped = append(stopped, "a"); return nil },
	})
	m.Add(Component{
		Name:  "b",
		Start: func(context.Context) error { return errors.New("port in use") },
		Stop:  func(context.Context) error { stopped = append(stopped, "b"); return nil },
	})

	err := m.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start b: port in use")
	assert.Equal(t, []string{"a"}, stopped)
}

func TestShutdownJoinsErrors(t *testing.T) {
	m := New(time.Second, nil)
	first := errors.New("first")
	second := errors.New("second")
	m.Register("one", func(context.Context) error { return first })
	m.Register("two", func(context.Context) error { return second })

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, first)
	assert.ErrorIs(t, err, second)
}

func TestShutdownHonoursTimeout(t *testing.T) {
	m := New(10*time.Millisecond, nil)
	m.Register("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := m.Shutdown(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
