package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/muhammadolammi/resumepipeline/internal/blob"
	"github.com/muhammadolammi/resumepipeline/internal/bus"
	"github.com/muhammadolammi/resumepipeline/internal/database"
	"github.com/muhammadolammi/resumepipeline/internal/events"
	"github.com/muhammadolammi/resumepipeline/internal/report"
)

// Reporter renders the final report artifact and closes out the resume.
// A reporting failure never rolls back the score.
type Reporter struct {
	bus     bus.Bus
	blobs   blob.Store
	resumes ResumeStore
	cfg     Config
	logger  *zap.Logger
}

func NewReporter(b bus.Bus, blobs blob.Store, resumes ResumeStore, cfg Config, logger *zap.Logger) *Reporter {
	return &Reporter{bus: b, blobs: blobs, resumes: resumes, cfg: cfg.withDefaults(), logger: logger.Named("reporter")}
}

func (r *Reporter) Start() error {
	s := &stage{
		name:   StageReporter,
		logger: r.logger,
		cfg: bus.SubscriptionConfig{
			Subject:    events.SubjectMatchScored,
			Queue:      "reporter.match.scored",
			MaxDeliver: r.cfg.MaxDeliver,
			RetryBase:  r.cfg.RetryBase,
			RetryCap:   r.cfg.RetryCap,
			AckWait:    r.cfg.AckWait,
			Workers:    r.cfg.Workers,
		},
		handle:    r.handle,
		exhausted: r.exhausted,
	}
	return s.subscribe(r.bus)
}

func (r *Reporter) handle(ctx context.Context, body []byte) error {
	var ev events.MatchScored
	if err := json.Unmarshal(body, &ev); err != nil {
		return Permanent(fmt.Errorf("unmarshal match.scored: %w", err))
	}

	rows, err := r.resumes.UpdateResumeStatus(ctx, database.UpdateResumeStatusParams{
		ID:           ev.ResumeID,
		Status:       StatusReporting,
		FromStatuses: []string{StatusScored, StatusReporting},
	})
	if err != nil {
		return fmt.Errorf("claim resume %s for reporting: %w", ev.ResumeID, err)
	}
	if rows == 0 {
		return r.republish(ctx, ev)
	}

	artifact, err := report.Render(report.Input{
		JobID:    ev.JobID.String(),
		ResumeID: ev.ResumeID.String(),
		Resume:   ev.StructuredResume,
		Score:    ev.ScoreResult,
	})
	if err != nil {
		return Permanent(fmt.Errorf("render report: %w", err))
	}

	putCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	handle, err := r.blobs.Put(putCtx, artifact)
	cancel()
	if err != nil {
		return fmt.Errorf("store report: %w", err)
	}

	if _, err := r.resumes.SetResumeCompleted(ctx, database.SetResumeCompletedParams{
		ID:        ev.ResumeID,
		ReportKey: handle,
	}); err != nil {
		return fmt.Errorf("complete resume: %w", err)
	}

	if err := r.bus.Publish(ctx, events.SubjectReportReady, events.ReportReady{
		JobID:        ev.JobID,
		ResumeID:     ev.ResumeID,
		ReportHandle: handle,
	}); err != nil {
		return fmt.Errorf("publish report.ready: %w", err)
	}

	r.logger.Info("report ready",
		zap.String("job_id", ev.JobID.String()),
		zap.String("resume_id", ev.ResumeID.String()),
		zap.String("report_handle", handle))
	return nil
}

func (r *Reporter) republish(ctx context.Context, ev events.MatchScored) error {
	record, err := r.resumes.GetResume(ctx, ev.ResumeID)
	if err != nil {
		return fmt.Errorf("load resume %s: %w", ev.ResumeID, err)
	}
	if record.Status != StatusCompleted || !record.ReportKey.Valid {
		return nil
	}
	return r.bus.Publish(ctx, events.SubjectReportReady, events.ReportReady{
		JobID:        ev.JobID,
		ResumeID:     ev.ResumeID,
		ReportHandle: record.ReportKey.String,
	})
}

func (r *Reporter) exhausted(ctx context.Context, body []byte, reason error, attempts int) {
	var ev events.MatchScored
	if err := json.Unmarshal(body, &ev); err != nil {
		r.logger.Error("dead-lettering undecodable match.scored", zap.Error(err))
		return
	}
	failResume(ctx, r.bus, r.resumes, r.logger, failure{
		jobID:    ev.JobID,
		resumeID: ev.ResumeID,
		stage:    StageReporter,
		reason:   reason,
		attempts: attempts,
	})
}
