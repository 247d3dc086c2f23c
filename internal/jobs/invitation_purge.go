package jobs

import (
	"context"

	"go.uber.org/zap"
)

// InvitationPurger deletes expired, unused invitations.
type InvitationPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// InvitationPurgeJob runs InvitationPurger on a schedule.
type InvitationPurgeJob struct {
	purger InvitationPurger
	logger *zap.Logger
}

// NewInvitationPurgeJob creates an InvitationPurgeJob.
func NewInvitationPurgeJob(purger InvitationPurger, logger *zap.Logger) *InvitationPurgeJob {
	return &InvitationPurgeJob{purger: purger, logger: logger.Named("invitation_purge")}
}

func (j *InvitationPurgeJob) Name() string { return "invitation_purge" }

func (j *InvitationPurgeJob) Run(ctx context.Context) error {
	n, err := j.purger.PurgeExpired(ctx)
	if err != nil {
		return err
	}
	j.logger.Info("Invitation purge run completed", zap.Int64("invitations_purged", n))
	return nil
}
