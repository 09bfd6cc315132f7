// Package scheduler fires collection runs at fixed wall-clock times (KST)
// and exposes start/stop/status control for the API layer.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/jmpark/stocknews-collector/internal/news"
)

// Runner executes one collection cycle for the given date.
type Runner interface {
	Run(ctx context.Context, target time.Time) (news.Summary, error)
}

// StartResult reports the effect of a start request.
type StartResult string

// StopResult reports the effect of a stop request.
type StopResult string

// Start/stop outcomes. Requests are idempotent; repeating one reports the
// "already" variant instead of failing.
const (
	Started        StartResult = "started"
	AlreadyRunning StartResult = "already_running"
	Stopped        StopResult  = "stopped"
	AlreadyStopped StopResult  = "already_stopped"
)

// FireEntry is one scheduled fire time and its next occurrence.
type FireEntry struct {
	Label string    `json:"label"`
	Next  time.Time `json:"next"`
}

// RunReport summarizes the most recent run for the status endpoint.
type RunReport struct {
	RunID      string               `json:"run_id"`
	Date       string               `json:"date"`
	Status     news.RunStatus       `json:"status"`
	Total      int                  `json:"total"`
	Sections   []news.SectionResult `json:"sections,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at"`
	Error      string               `json:"error,omitempty"`
}

// Status is the scheduler state exposed by the API.
type Status struct {
	Running   bool        `json:"running"`
	FireTimes []string    `json:"fire_times"`
	NextFires []FireEntry `json:"next_fires,omitempty"`
	LastRun   *RunReport  `json:"last_run,omitempty"`
}

type scheduleEntry struct {
	label string
	id    cron.EntryID
}

// Scheduler drives the Runner on a cron schedule in KST.
type Scheduler struct {
	runner    Runner
	clock     news.Clock
	fireTimes []string
	logger    *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	entries []scheduleEntry
	stopCtx context.Context

	lastMu  sync.RWMutex
	lastRun *RunReport

	wg sync.WaitGroup
}

// New creates a Scheduler. Fire times are "HH:MM" strings interpreted in KST.
func New(runner Runner, clock news.Clock, fireTimes []string, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:    runner,
		clock:     clock,
		fireTimes: append([]string(nil), fireTimes...),
		logger:    logger,
	}
}

// Start schedules all fire times and begins firing. When runImmediately is
// set, one run for today is kicked off right away in the background.
func (s *Scheduler) Start(runImmediately bool) (StartResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return AlreadyRunning, nil
	}

	c := cron.New(
		cron.WithLocation(news.KST),
		cron.WithChain(cron.Recover(cron.PrintfLogger(zap.NewStdLog(s.logger)))),
	)

	var entries []scheduleEntry
	for _, ft := range s.fireTimes {
		spec, err := cronSpec(ft)
		if err != nil {
			return "", err
		}
		// Fires go through runAsync so the WaitGroup covers every run,
		// scheduled or manual, and Shutdown can join all of them.
		id, err := c.AddFunc(spec, func() { s.runAsync(s.clock.Now()) })
		if err != nil {
			return "", fmt.Errorf("schedule %q: %w", ft, err)
		}
		entries = append(entries, scheduleEntry{label: ft, id: id})
	}

	c.Start()
	s.cron = c
	s.entries = entries

	s.logger.Info("scheduler started", zap.Strings("fire_times", s.fireTimes))

	if runImmediately {
		s.runAsync(s.clock.Now())
	}
	return Started, nil
}

// Stop halts future fires. An already-dispatched run finishes on its own.
func (s *Scheduler) Stop() (StopResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return AlreadyStopped, nil
	}

	// The stop context completes once the cron goroutine has drained its
	// running jobs, i.e. every fire has reached runAsync and the WaitGroup.
	s.stopCtx = s.cron.Stop()
	s.cron = nil
	s.entries = nil

	s.logger.Info("scheduler stopped")
	return Stopped, nil
}

// Status reports the current schedule and the most recent run.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	status := Status{
		Running:   s.cron != nil,
		FireTimes: append([]string(nil), s.fireTimes...),
	}
	if s.cron != nil {
		for _, e := range s.entries {
			status.NextFires = append(status.NextFires, FireEntry{
				Label: e.label,
				Next:  s.cron.Entry(e.id).Next,
			})
		}
	}
	s.mu.Unlock()

	s.lastMu.RLock()
	if s.lastRun != nil {
		report := *s.lastRun
		status.LastRun = &report
	}
	s.lastMu.RUnlock()

	return status
}

// TriggerRun starts one run for the given date in the background. It works
// whether or not the schedule is running.
func (s *Scheduler) TriggerRun(date time.Time) {
	s.runAsync(date)
}

// Shutdown stops the schedule and waits for in-flight runs, scheduled and
// manual alike, up to ctx.
func (s *Scheduler) Shutdown(ctx context.Context) error {
	if _, err := s.Stop(); err != nil {
		return err
	}

	s.mu.Lock()
	stopCtx := s.stopCtx
	s.mu.Unlock()

	if stopCtx != nil {
		select {
		case <-stopCtx.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runAsync(date time.Time) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fire(date)
	}()
}

// fire executes one run and records its report. The collector serializes
// overlapping fires internally.
func (s *Scheduler) fire(date time.Time) {
	summary, err := s.runner.Run(context.Background(), date)

	report := RunReport{
		RunID:      summary.RunID,
		Date:       summary.TargetDate.Format("2006-01-02"),
		Status:     summary.Status(),
		Total:      summary.Total,
		Sections:   summary.Sections,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
	}
	if err != nil {
		report.Status = news.RunError
		report.Error = err.Error()
		s.logger.Error("scheduled run failed", zap.Error(err))
	}

	s.lastMu.Lock()
	s.lastRun = &report
	s.lastMu.Unlock()
}

// cronSpec converts "HH:MM" into a daily cron expression.
func cronSpec(fireTime string) (string, error) {
	t, err := time.Parse("15:04", fireTime)
	if err != nil {
		return "", fmt.Errorf("fire time %q is not HH:MM: %w", fireTime, err)
	}
	return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour()), nil
}
