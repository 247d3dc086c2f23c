package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"artify/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockPurger struct {
	mock.Mock
}

func (m *MockPurger) PurgeExpired(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func TestSessionRefreshJob(t *testing.T) {
	ctx := context.Background()
	store := session.NewMemoryStore(session.MemoryStoreOptions{
		Accounts:   session.DemoAccounts(),
		SessionTTL: time.Minute,
	}, zap.NewNop())
	var refreshed int32
	store.OnSessionChange(func(ev session.Event) {
		if ev.Type == session.EventTokenRefreshed {
			atomic.AddInt32(&refreshed, 1)
		}
	})

	far := NewSessionRefreshJob(store, time.Second, zap.NewNop())
	near := NewSessionRefreshJob(store, 5*time.Minute, zap.NewNop())

	// Nobody signed in: nothing to do.
	require.NoError(t, near.Run(ctx))
	assert.EqualValues(t, 0, atomic.LoadInt32(&refreshed))

	first, err := store.SignInWithPassword(ctx, "user@artify.com", "user123")
	require.NoError(t, err)

	require.NoError(t, far.Run(ctx))
	assert.EqualValues(t, 0, atomic.LoadInt32(&refreshed), "not yet within the margin")

	require.NoError(t, near.Run(ctx))
	assert.EqualValues(t, 1, atomic.LoadInt32(&refreshed))
	assert.NotEqual(t, first.AccessToken, store.Current().AccessToken)
}

func TestInvitationPurgeJob(t *testing.T) {
	purger := new(MockPurger)
	purger.On("PurgeExpired", mock.Anything).Return(int64(3), nil).Once()
	purger.On("PurgeExpired", mock.Anything).Return(int64(0), errors.New("db down")).Once()

	job := NewInvitationPurgeJob(purger, zap.NewNop())
	assert.Equal(t, "invitation_purge", job.Name())
	assert.NoError(t, job.Run(context.Background()))
	assert.Error(t, job.Run(context.Background()))
	purger.AssertExpectations(t)
}

type countingJob struct {
	runs int32
	done chan struct{}
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) error {
	if atomic.AddInt32(&j.runs, 1) == 1 {
		close(j.done)
	}
	return nil
}

func TestScheduler(t *testing.T) {
	s := NewScheduler(zap.NewNop(), time.Second)
	job := &countingJob{done: make(chan struct{})}

	require.NoError(t, s.Schedule("", job), "an empty spec disables the job")
	assert.Error(t, s.Schedule("not a spec", job))
	require.NoError(t, s.Schedule("@every 1s", job))

	s.Start()
	defer s.Stop()
	select {
	case <-job.done:
	case <-time.After(3 * time.Second):
		t.Fatal("scheduled job did not run")
	}
}
