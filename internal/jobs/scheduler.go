// File: internal/jobs/scheduler.go
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of periodic work.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler runs jobs on cron schedules. A run that is still going when
// its next tick fires is skipped.
type Scheduler struct {
	cron       *cron.Cron
	logger     *zap.Logger
	runTimeout time.Duration
}

// NewScheduler creates a Scheduler; every run gets runTimeout.
func NewScheduler(logger *zap.Logger, runTimeout time.Duration) *Scheduler {
	cl := NewCronLogger(logger.Named("cron"))
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	return &Scheduler{
		cron:       cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		logger:     logger.Named("scheduler"),
		runTimeout: runTimeout,
	}
}

// Schedule registers job under spec. An empty spec disables the job.
func (s *Scheduler) Schedule(spec string, job Job) error {
	if spec == "" {
		s.logger.Warn("Job schedule not defined. Job will not run.", zap.String("job", job.Name()))
		return nil
	}
	id, err := s.cron.AddFunc(spec, func() { s.run(job) })
	if err != nil {
		s.logger.Error("Failed to schedule job", zap.String("job", job.Name()), zap.String("spec", spec), zap.Error(err))
		return fmt.Errorf("schedule %s: %w", job.Name(), err)
	}
	s.logger.Info("Job scheduled", zap.String("job", job.Name()), zap.String("spec", spec), zap.Int("entryID", int(id)))
	return nil
}

func (s *Scheduler) run(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), s.runTimeout)
	defer cancel()
	if err := job.Run(ctx); err != nil {
		s.logger.Error("Job run failed", zap.String("job", job.Name()), zap.Error(err))
	}
}

// Start runs the scheduler in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop gracefully stops the cron scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping job scheduler...")
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
		s.logger.Info("Job scheduler stopped gracefully.")
	case <-time.After(10 * time.Second):
		s.logger.Warn("Job scheduler stop timed out.")
	}
}

// cronLogger adapts zap.Logger to cron.Logger interface.
type cronLogger struct {
	zl *zap.Logger
}

// NewCronLogger creates a new cronLogger.
func NewCronLogger(zl *zap.Logger) cron.Logger {
	return &cronLogger{zl: zl}
}

// Info logs routine messages from cron at debug level.
func (cl *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	cl.zl.Debug(msg, fieldsOf(keysAndValues)...)
}

// Error logs error messages from cron.
func (cl *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	cl.zl.Error(msg, append(fieldsOf(keysAndValues), zap.Error(err))...)
}

func fieldsOf(keysAndValues []interface{}) []zap.Field {
	fields := make([]zap.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprintf("%v", keysAndValues[i])
		if i+1 < len(keysAndValues) {
			fields = append(fields, zap.Any(key, keysAndValues[i+1]))
		} else {
			fields = append(fields, zap.Any(key, "MISSING_VALUE"))
		}
	}
	return fields
}
