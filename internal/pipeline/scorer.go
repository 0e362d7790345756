package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/muhammadolammi/resumepipeline/internal/bus"
	"github.com/muhammadolammi/resumepipeline/internal/database"
	"github.com/muhammadolammi/resumepipeline/internal/events"
	"github.com/muhammadolammi/resumepipeline/internal/match"
)

// Scorer joins the JD stream with the resume stream. The JD side only feeds
// the cache; the resume side defers (via bus redelivery) until the JD for its
// job has arrived.
type Scorer struct {
	bus     bus.Bus
	resumes ResumeStore
	cache   match.JDCache
	cfg     Config
	logger  *zap.Logger
}

func NewScorer(b bus.Bus, resumes ResumeStore, cache match.JDCache, cfg Config, logger *zap.Logger) *Scorer {
	return &Scorer{bus: b, resumes: resumes, cache: cache, cfg: cfg.withDefaults(), logger: logger.Named("scorer")}
}

func (s *Scorer) Start() error {
	jdStage := &stage{
		name:   "scorer.jd",
		logger: s.logger,
		cfg: bus.SubscriptionConfig{
			Subject:    events.SubjectJDExtracted,
			Queue:      "scorer.jd.extracted",
			MaxDeliver: s.cfg.MaxDeliver,
			RetryBase:  s.cfg.RetryBase,
			RetryCap:   s.cfg.RetryCap,
			AckWait:    s.cfg.AckWait,
			Workers:    s.cfg.Workers,
		},
		handle: s.handleJDExtracted,
		exhausted: func(_ context.Context, _ []byte, reason error, _ int) {
			s.logger.Error("dropping undecodable jd.extracted", zap.Error(reason))
		},
	}
	if err := jdStage.subscribe(s.bus); err != nil {
		return err
	}

	resumeStage := &stage{
		name:   StageScorer,
		logger: s.logger,
		cfg: bus.SubscriptionConfig{
			Subject: events.SubjectResumeParsed,
			Queue:   "scorer.resume.parsed",
			// Deferral waits for the JD through the same redelivery path, so
			// this subscription gets a larger budget than a plain failure.
			MaxDeliver: s.cfg.ScorerMaxDeliver,
			RetryBase:  s.cfg.RetryBase,
			RetryCap:   s.cfg.RetryCap,
			AckWait:    s.cfg.AckWait,
			Workers:    s.cfg.Workers,
		},
		handle:    s.handleResumeParsed,
		exhausted: s.exhausted,
	}
	return resumeStage.subscribe(s.bus)
}

// handleJDExtracted is last-write-wins: extraction is idempotent per job, so
// a redelivered or re-extracted JD just overwrites the cache entry.
func (s *Scorer) handleJDExtracted(_ context.Context, body []byte) error {
	var ev events.JDExtracted
	if err := json.Unmarshal(body, &ev); err != nil {
		return Permanent(fmt.Errorf("unmarshal jd.extracted: %w", err))
	}
	s.cache.Put(ev.JobID, ev.StructuredJD)
	s.logger.Info("jd cached", zap.String("job_id", ev.JobID.String()))
	return nil
}

func (s *Scorer) handleResumeParsed(ctx context.Context, body []byte) error {
	var ev events.ResumeParsed
	if err := json.Unmarshal(body, &ev); err != nil {
		return Permanent(fmt.Errorf("unmarshal resume.parsed: %w", err))
	}

	jd, ok := s.cache.Get(ev.JobID)
	if !ok {
		// ResumeParsed beat JdExtracted for this job. Defer through bus
		// redelivery rather than blocking a consumer.
		return fmt.Errorf("jd for job %s not extracted yet", ev.JobID)
	}

	rows, err := s.resumes.UpdateResumeStatus(ctx, database.UpdateResumeStatusParams{
		ID:           ev.ResumeID,
		Status:       StatusScoring,
		FromStatuses: []string{StatusParsed, StatusScoring},
	})
	if err != nil {
		return fmt.Errorf("claim resume %s for scoring: %w", ev.ResumeID, err)
	}
	if rows == 0 {
		return s.republish(ctx, ev)
	}

	result := match.Score(jd, ev.StructuredResume, s.cfg.Now(), s.cfg.Weights)

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return Permanent(fmt.Errorf("marshal score result: %w", err))
	}
	if _, err := s.resumes.SetResumeScored(ctx, database.SetResumeScoredParams{
		ID:    ev.ResumeID,
		Score: resultJSON,
	}); err != nil {
		return fmt.Errorf("persist score: %w", err)
	}

	if err := s.bus.Publish(ctx, events.SubjectMatchScored, events.MatchScored{
		JobID:            ev.JobID,
		ResumeID:         ev.ResumeID,
		StructuredResume: ev.StructuredResume,
		ScoreResult:      result,
	}); err != nil {
		return fmt.Errorf("publish match.scored: %w", err)
	}

	s.logger.Info("match scored",
		zap.String("job_id", ev.JobID.String()),
		zap.String("resume_id", ev.ResumeID.String()),
		zap.Int("overall", result.OverallScore))
	return nil
}

func (s *Scorer) republish(ctx context.Context, ev events.ResumeParsed) error {
	record, err := s.resumes.GetResume(ctx, ev.ResumeID)
	if err != nil {
		return fmt.Errorf("load resume %s: %w", ev.ResumeID, err)
	}
	if record.Status != StatusScored || len(record.Score) == 0 {
		return nil
	}
	var result match.ScoreResult
	if err := json.Unmarshal(record.Score, &result); err != nil {
		return Permanent(fmt.Errorf("stored score is corrupt: %w", err))
	}
	return s.bus.Publish(ctx, events.SubjectMatchScored, events.MatchScored{
		JobID:            ev.JobID,
		ResumeID:         ev.ResumeID,
		StructuredResume: ev.StructuredResume,
		ScoreResult:      result,
	})
}

func (s *Scorer) exhausted(ctx context.Context, body []byte, reason error, attempts int) {
	var ev events.ResumeParsed
	if err := json.Unmarshal(body, &ev); err != nil {
		s.logger.Error("dead-lettering undecodable resume.parsed", zap.Error(err))
		return
	}
	failResume(ctx, s.bus, s.resumes, s.logger, failure{
		jobID:    ev.JobID,
		resumeID: ev.ResumeID,
		stage:    StageScorer,
		reason:   reason,
		attempts: attempts,
	})
}
