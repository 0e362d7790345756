package pipeline

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammadolammi/resumepipeline/internal/bus"
	"github.com/muhammadolammi/resumepipeline/internal/database"
	"github.com/muhammadolammi/resumepipeline/internal/events"
)

type failure struct {
	jobID    uuid.UUID
	resumeID uuid.UUID
	stage    string
	reason   error
	attempts int
}

// failResume is the shared dead-letter path: terminal store write plus the
// ResumeFailed event. The store write refuses to downgrade a completed
// resume, so a late duplicate cannot clobber a finished one.
func failResume(ctx context.Context, b bus.Bus, resumes ResumeStore, logger *zap.Logger, f failure) {
	if _, err := resumes.SetResumeFailed(ctx, database.SetResumeFailedParams{
		ID:            f.resumeID,
		FailureReason: f.reason.Error(),
		RetryCount:    int32(f.attempts),
	}); err != nil {
		logger.Error("marking resume failed",
			zap.String("resume_id", f.resumeID.String()),
			zap.Error(err))
	}

	if err := b.Publish(ctx, events.SubjectResumeFailed, events.ResumeFailed{
		JobID:      f.jobID,
		ResumeID:   f.resumeID,
		Stage:      f.stage,
		Reason:     f.reason.Error(),
		RetryCount: f.attempts,
	}); err != nil {
		logger.Error("publishing resume.failed",
			zap.String("resume_id", f.resumeID.String()),
			zap.Error(err))
	}

	logger.Error("resume dead-lettered",
		zap.String("stage", f.stage),
		zap.String("job_id", f.jobID.String()),
		zap.String("resume_id", f.resumeID.String()),
		zap.Int("retry_count", f.attempts),
		zap.Error(f.reason))
}
