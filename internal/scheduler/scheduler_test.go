package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noop(name string) Job {
	return JobFunc{JobName: name, Fn: func(context.Context) error { return nil }}
}

func TestAddJobRejectsBadSpec(t *testing.T) {
	s, err := New(context.Background(), "America/New_York")
	require.NoError(t, err)
	assert.Error(t, s.AddJob("every tuesday", noop("bad")))
}

func TestUnknownTimezone(t *testing.T) {
	_, err := New(context.Background(), "Mars/Olympus")
	assert.Error(t, err)
}

func TestNextRunsInTimezone(t *testing.T) {
	s, err := New(context.Background(), "America/New_York")
	require.NoError(t, err)
	require.NoError(t, s.AddJob("0 8 * * MON-FRI", noop("daily")))
	require.NoError(t, s.AddJob("0 17 * * FRI", noop("weekly")))

	next := s.Next()
	require.Len(t, next, 2)

	ny, _ := time.LoadLocation("America/New_York")
	daily := next[0].In(ny)
	assert.Equal(t, 8, daily.Hour())
	assert.NotEqual(t, time.Saturday, daily.Weekday())
	assert.NotEqual(t, time.Sunday, daily.Weekday())

	weekly := next[1].In(ny)
	assert.Equal(t, time.Friday, weekly.Weekday())
	assert.Equal(t, 17, weekly.Hour())
}
