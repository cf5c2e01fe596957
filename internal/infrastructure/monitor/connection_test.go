package monitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type queue int

func (q queue) Size() (int, error) { return int(q), nil }

func TestRefresh(t *testing.T) {
	healthy := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("refused") }

	m := New([]Check{
		{Name: "postgres", Required: true, Ping: healthy},
		{Name: "redis", Ping: down},
	}, queue(3), 0, nil)

	status := m.Refresh(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Components["postgres"])
	assert.False(t, status.Components["redis"])
	assert.True(t, status.Components["catchup_queue"])
	assert.Equal(t, 3, status.PendingCatchUps)
	assert.True(t, m.IsOnline())

	m = New([]Check{{Name: "postgres", Required: true, Ping: down}}, nil, 0, nil)
	m.Refresh(context.Background())
	assert.False(t, m.IsOnline())
	assert.False(t, m.GetStatus().Components["postgres"])
}

func TestGetStatusReturnsCopy(t *testing.T) {
	m := New([]Check{{Name: "db", Ping: func(context.Context) error { return nil }}}, nil, 0, nil)
	m.Refresh(context.Background())

	status := m.GetStatus()
	status.Components["db"] = false
	assert.True(t, m.GetStatus().Components["db"])
}

func TestStopIsIdempotent(t *testing.T) {
	m := New(nil, nil, 0, nil)
	m.Start()
	m.Stop()
	m.Stop()
}
