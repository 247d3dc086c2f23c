package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"artify/internal/session"

	"go.uber.org/zap"
)

// SessionRefreshJob refreshes the current session shortly before it
// expires. The store announces the new tokens with TOKEN_REFRESHED.
type SessionRefreshJob struct {
	store  session.Store
	margin time.Duration
	logger *zap.Logger
}

// NewSessionRefreshJob creates a SessionRefreshJob.
func NewSessionRefreshJob(store session.Store, margin time.Duration, logger *zap.Logger) *SessionRefreshJob {
	return &SessionRefreshJob{store: store, margin: margin, logger: logger.Named("session_refresh")}
}

func (j *SessionRefreshJob) Name() string { return "session_refresh" }

func (j *SessionRefreshJob) Run(ctx context.Context) error {
	cur := j.store.Current()
	if cur == nil || !cur.ExpiresWithin(j.margin) {
		return nil
	}
	sess, err := j.store.Refresh(ctx)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			return nil
		}
		return fmt.Errorf("refresh session for %s: %w", cur.UserID, err)
	}
	j.logger.Info("Session refreshed", zap.String("uid", sess.UserID), zap.Time("expiresAt", sess.ExpiresAt))
	return nil
}
