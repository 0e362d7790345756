package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muhammadolammi/resumepipeline/internal/bus"
	"github.com/muhammadolammi/resumepipeline/internal/database"
	"github.com/muhammadolammi/resumepipeline/internal/events"
)

// Extractor turns a submitted job description into a StructuredJD. One JD per
// job; redelivery overwrites the same record, which downstream consumers
// treat as idempotent.
type Extractor struct {
	bus     bus.Bus
	jobs    JobStore
	extract JDExtractor
	cfg     Config
	logger  *zap.Logger
}

func NewExtractor(b bus.Bus, jobs JobStore, ex JDExtractor, cfg Config, logger *zap.Logger) *Extractor {
	return &Extractor{bus: b, jobs: jobs, extract: ex, cfg: cfg.withDefaults(), logger: logger.Named("extractor")}
}

func (e *Extractor) Start() error {
	s := &stage{
		name:   "extractor",
		logger: e.logger,
		cfg: bus.SubscriptionConfig{
			Subject:    events.SubjectJDSubmitted,
			Queue:      "extractor.jd.submitted",
			MaxDeliver: e.cfg.MaxDeliver,
			RetryBase:  e.cfg.RetryBase,
			RetryCap:   e.cfg.RetryCap,
			AckWait:    e.cfg.AckWait,
			Workers:    e.cfg.Workers,
		},
		handle:    e.handle,
		exhausted: e.exhausted,
	}
	return s.subscribe(e.bus)
}

func (e *Extractor) handle(ctx context.Context, body []byte) error {
	var ev events.JDSubmitted
	if err := json.Unmarshal(body, &ev); err != nil {
		return Permanent(fmt.Errorf("unmarshal jd.submitted: %w", err))
	}

	start := time.Now()
	extractCtx, cancel := context.WithTimeout(ctx, e.cfg.ExtractTimeout)
	defer cancel()

	jd, err := e.extract.ExtractJD(extractCtx, ev.JobID.String(), ev.JobTitle, ev.JDText)
	if err != nil {
		return fmt.Errorf("extract jd for job %s: %w", ev.JobID, err)
	}

	jdJSON, err := json.Marshal(jd)
	if err != nil {
		return Permanent(fmt.Errorf("marshal structured jd: %w", err))
	}
	if err := e.jobs.SetJobExtracted(ctx, database.SetJobExtractedParams{
		ID:           ev.JobID,
		StructuredJd: jdJSON,
	}); err != nil {
		return fmt.Errorf("persist structured jd: %w", err)
	}

	if err := e.bus.Publish(ctx, events.SubjectJDExtracted, events.JDExtracted{
		JobID:            ev.JobID,
		StructuredJD:     jd,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}); err != nil {
		return fmt.Errorf("publish jd.extracted: %w", err)
	}

	e.logger.Info("jd extracted",
		zap.String("job_id", ev.JobID.String()),
		zap.Int("required_skills", len(jd.RequiredSkills)))
	return nil
}

// exhausted marks the job so operators can see extraction gave up. Resumes
// for this job will later dead-letter individually in the scorer when no JD
// ever shows up.
func (e *Extractor) exhausted(ctx context.Context, body []byte, reason error, attempts int) {
	var ev events.JDSubmitted
	if err := json.Unmarshal(body, &ev); err != nil {
		e.logger.Error("dead-lettering undecodable jd.submitted", zap.Error(err))
		return
	}
	if err := e.jobs.SetJobExtractionFailed(ctx, ev.JobID); err != nil {
		e.logger.Error("marking job extraction failed", zap.String("job_id", ev.JobID.String()), zap.Error(err))
	}
	e.logger.Error("jd extraction gave up",
		zap.String("job_id", ev.JobID.String()),
		zap.Int("attempts", attempts),
		zap.Error(reason))
}
