package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jmpark/stocknews-collector/internal/news"
)

type stubRunner struct {
	mu    sync.Mutex
	calls []time.Time
	err   error
}

func (r *stubRunner) Run(_ context.Context, target time.Time) (news.Summary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, target)
	if r.err != nil {
		return news.Summary{}, r.err
	}
	day := target.In(news.KST)
	return news.Summary{
		RunID:      "run-1",
		TargetDate: time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, news.KST),
		Sections:   []news.SectionResult{{Section: "주식", Inserted: 2}},
		Total:      2,
		StartedAt:  target,
		FinishedAt: target,
	}, nil
}

func (r *stubRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

func newTestScheduler(runner Runner) *Scheduler {
	clock := stubClock{now: time.Date(2024, 1, 1, 7, 0, 0, 0, news.KST)}
	return New(runner, clock, []string{"08:00", "12:00", "14:30", "20:00"}, nil)
}

func TestStartIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(&stubRunner{})

	res, err := s.Start(false)
	require.NoError(t, err)
	require.Equal(t, Started, res)

	res, err = s.Start(false)
	require.NoError(t, err)
	require.Equal(t, AlreadyRunning, res)

	_, err = s.Stop()
	require.NoError(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(&stubRunner{})

	res, err := s.Stop()
	require.NoError(t, err)
	require.Equal(t, AlreadyStopped, res)

	_, err = s.Start(false)
	require.NoError(t, err)

	stopRes, err := s.Stop()
	require.NoError(t, err)
	require.Equal(t, Stopped, stopRes)
}

func TestStartRunImmediatelyFiresOnce(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	s := newTestScheduler(runner)

	_, err := s.Start(true)
	require.NoError(t, err)
	defer s.Stop()

	require.Eventually(t, func() bool {
		return runner.callCount() == 1
	}, time.Second, 5*time.Millisecond)

	status := s.Status()
	require.NotNil(t, status.LastRun)
	require.Equal(t, news.RunSuccess, status.LastRun.Status)
	require.Equal(t, "2024-01-01", status.LastRun.Date)
	require.Equal(t, 2, status.LastRun.Total)
}

func TestTriggerRunWorksWhileStopped(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	s := newTestScheduler(runner)

	s.TriggerRun(time.Date(2024, 1, 1, 0, 0, 0, 0, news.KST))

	require.Eventually(t, func() bool {
		return runner.callCount() == 1
	}, time.Second, 5*time.Millisecond)
	require.False(t, s.Status().Running)
}

func TestStatusListsNextFires(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(&stubRunner{})

	require.False(t, s.Status().Running)

	_, err := s.Start(false)
	require.NoError(t, err)
	defer s.Stop()

	status := s.Status()
	require.True(t, status.Running)
	require.Equal(t, []string{"08:00", "12:00", "14:30", "20:00"}, status.FireTimes)
	require.Len(t, status.NextFires, 4)
	for _, fe := range status.NextFires {
		require.False(t, fe.Next.IsZero())
	}
}

func TestFireRecordsRunError(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{err: errors.New("db down")}
	s := newTestScheduler(runner)

	s.TriggerRun(time.Date(2024, 1, 1, 0, 0, 0, 0, news.KST))

	require.Eventually(t, func() bool {
		st := s.Status()
		return st.LastRun != nil
	}, time.Second, 5*time.Millisecond)

	last := s.Status().LastRun
	require.Equal(t, news.RunError, last.Status)
	require.Contains(t, last.Error, "db down")
}

func TestShutdownWaitsForInFlightRuns(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{}
	s := newTestScheduler(runner)

	_, err := s.Start(true)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.Equal(t, 1, runner.callCount())
}

type blockingRunner struct {
	started chan struct{}
	release chan struct{}
}

func (r *blockingRunner) Run(_ context.Context, target time.Time) (news.Summary, error) {
	close(r.started)
	<-r.release
	return news.Summary{RunID: "run-1", TargetDate: target, Total: 1}, nil
}

func TestShutdownWaitsForScheduledFireInFlight(t *testing.T) {
	t.Parallel()

	runner := &blockingRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestScheduler(runner)

	_, err := s.Start(false)
	require.NoError(t, err)

	// Invoke the registered cron job the way a fire would, without
	// waiting for the wall clock to reach a schedule boundary.
	s.mu.Lock()
	require.NotEmpty(t, s.entries)
	job := s.cron.Entry(s.entries[0].id).WrappedJob
	s.mu.Unlock()
	job.Run()

	select {
	case <-runner.started:
	case <-time.After(time.Second):
		t.Fatal("scheduled run never started")
	}

	shutdownDone := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownDone <- s.Shutdown(ctx)
	}()

	select {
	case err := <-shutdownDone:
		t.Fatalf("Shutdown returned %v while a scheduled run was in flight", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(runner.release)
	select {
	case err := <-shutdownDone:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Shutdown did not return after the run finished")
	}
}

func TestCronSpecConversion(t *testing.T) {
	t.Parallel()

	spec, err := cronSpec("14:30")
	require.NoError(t, err)
	require.Equal(t, "30 14 * * *", spec)

	_, err = cronSpec("25:99")
	require.Error(t, err)
}
