package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type taskMock struct {
	mock.Mock
}

func (m *taskMock) Task(context.Context) (bool, error) {
	args := m.Called()
	return args.Bool(0), args.Error(1)
}

var errRetryable = errors.New("broker unavailable")

// recordSleeps replaces the timer wait with a recorder
func recordSleeps(e *ExponentialBackoff) *[]time.Duration {
	var waits []time.Duration
	e.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return &waits
}

func TestStart_SucceedsFirstTime(t *testing.T) {
	m := new(taskMock)
	m.On("Task").Return(false, nil)

	e := &ExponentialBackoff{}
	waits := recordSleeps(e)

	require.NoError(t, e.Start(context.Background(), "connect", m.Task))
	m.AssertNumberOfCalls(t, "Task", 1)
	assert.Empty(t, *waits)
}

func TestStart_MaxAttempts(t *testing.T) {
	m := new(taskMock)
	m.On("Task").Return(true, errRetryable)

	e := &ExponentialBackoff{MaxAttempts: 3, NoJitter: true}
	recordSleeps(e)

	err := e.Start(context.Background(), "connect", m.Task)
	require.ErrorIs(t, err, errRetryable)
	m.AssertNumberOfCalls(t, "Task", 3)
}

func TestStart_RetryUntilSuccess(t *testing.T) {
	m := new(taskMock)
	m.On("Task").Twice().Return(true, errRetryable)
	m.On("Task").Once().Return(false, nil)

	e := &ExponentialBackoff{}
	recordSleeps(e)

	require.NoError(t, e.Start(context.Background(), "connect", m.Task))
	m.AssertNumberOfCalls(t, "Task", 3)
}

func TestStart_PermanentFailure(t *testing.T) {
	m := new(taskMock)
	m.On("Task").Return(false, errRetryable)

	e := &ExponentialBackoff{}
	recordSleeps(e)

	require.ErrorIs(t, e.Start(context.Background(), "connect", m.Task), errRetryable)
	m.AssertNumberOfCalls(t, "Task", 1)
}

func TestStart_IntervalsDoubleAndClamp(t *testing.T) {
	m := new(taskMock)
	m.On("Task").Return(true, errRetryable)

	e := &ExponentialBackoff{
		MaxAttempts: 6,
		MinInterval: 100 * time.Millisecond,
		MaxInterval: 800 * time.Millisecond,
		NoJitter:    true,
	}
	waits := recordSleeps(e)

	require.Error(t, e.Start(context.Background(), "connect", m.Task))
	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		800 * time.Millisecond,
	}, *waits)
}

func TestStart_ContextCancelled(t *testing.T) {
	m := new(taskMock)
	m.On("Task").Return(true, errRetryable)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := &ExponentialBackoff{MinInterval: time.Hour}
	err := e.Start(ctx, "connect", m.Task)
	require.ErrorIs(t, err, errRetryable)
	m.AssertNumberOfCalls(t, "Task", 1)
}
