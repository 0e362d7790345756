package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/muhammadolammi/resumepipeline/internal/blob"
	"github.com/muhammadolammi/resumepipeline/internal/bus"
	"github.com/muhammadolammi/resumepipeline/internal/database"
	"github.com/muhammadolammi/resumepipeline/internal/events"
	"github.com/muhammadolammi/resumepipeline/internal/extract"
	"github.com/muhammadolammi/resumepipeline/internal/match"
)

// Parser turns one submitted resume document into a StructuredResume.
type Parser struct {
	bus     bus.Bus
	blobs   blob.Store
	resumes ResumeStore
	extract ResumeExtractor
	cfg     Config
	logger  *zap.Logger
}

func NewParser(b bus.Bus, blobs blob.Store, resumes ResumeStore, ex ResumeExtractor, cfg Config, logger *zap.Logger) *Parser {
	return &Parser{bus: b, blobs: blobs, resumes: resumes, extract: ex, cfg: cfg.withDefaults(), logger: logger.Named("parser")}
}

func (p *Parser) Start() error {
	s := &stage{
		name:   StageParser,
		logger: p.logger,
		cfg: bus.SubscriptionConfig{
			Subject:    events.SubjectResumeSubmitted,
			Queue:      "parser.resume.submitted",
			MaxDeliver: p.cfg.MaxDeliver,
			RetryBase:  p.cfg.RetryBase,
			RetryCap:   p.cfg.RetryCap,
			AckWait:    p.cfg.AckWait,
			Workers:    p.cfg.Workers,
		},
		handle:    p.handle,
		exhausted: p.exhausted,
	}
	return s.subscribe(p.bus)
}

func (p *Parser) handle(ctx context.Context, body []byte) error {
	var ev events.ResumeSubmitted
	if err := json.Unmarshal(body, &ev); err != nil {
		return Permanent(fmt.Errorf("unmarshal resume.submitted: %w", err))
	}

	rows, err := p.resumes.UpdateResumeStatus(ctx, database.UpdateResumeStatusParams{
		ID:           ev.ResumeID,
		Status:       StatusParsing,
		FromStatuses: []string{StatusSubmitted, StatusParsing},
	})
	if err != nil {
		return fmt.Errorf("claim resume %s for parsing: %w", ev.ResumeID, err)
	}
	if rows == 0 {
		// Another delivery already moved this resume past parsing. Re-emit
		// what it produced in case the original publish was the step that
		// failed; duplicates are within the at-least-once contract.
		return p.republish(ctx, ev)
	}

	start := time.Now()

	fetchCtx, cancel := context.WithTimeout(ctx, p.cfg.FetchTimeout)
	data, err := p.blobs.Fetch(fetchCtx, ev.BlobHandle)
	cancel()
	if err != nil {
		return fmt.Errorf("fetch resume blob %s: %w", ev.BlobHandle, err)
	}

	mime := ev.Mime
	if mime == "" {
		mime = mimeForFilename(ev.OriginalFilename)
	}
	text, err := extract.Text(mime, data)
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedType) {
			return Permanent(err)
		}
		return fmt.Errorf("extract text from %s: %w", ev.OriginalFilename, err)
	}
	if strings.TrimSpace(text) == "" {
		return Permanent(fmt.Errorf("document %s contains no text", ev.OriginalFilename))
	}

	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
	structured, err := p.extract.ExtractResume(extractCtx, ev.ResumeID.String(), text)
	cancel()
	if err != nil {
		return fmt.Errorf("extract resume %s: %w", ev.ResumeID, err)
	}
	if structured.Empty() {
		// The model produced nothing usable from a non-empty document; a
		// retry may do better.
		return fmt.Errorf("empty extraction result for resume %s", ev.ResumeID)
	}

	structuredJSON, err := json.Marshal(structured)
	if err != nil {
		return Permanent(fmt.Errorf("marshal structured resume: %w", err))
	}
	if _, err := p.resumes.SetResumeParsed(ctx, database.SetResumeParsedParams{
		ID:               ev.ResumeID,
		StructuredResume: structuredJSON,
	}); err != nil {
		return fmt.Errorf("persist structured resume: %w", err)
	}

	if err := p.bus.Publish(ctx, events.SubjectResumeParsed, events.ResumeParsed{
		JobID:            ev.JobID,
		ResumeID:         ev.ResumeID,
		StructuredResume: structured,
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}); err != nil {
		return fmt.Errorf("publish resume.parsed: %w", err)
	}

	p.logger.Info("resume parsed",
		zap.String("job_id", ev.JobID.String()),
		zap.String("resume_id", ev.ResumeID.String()),
		zap.Duration("took", time.Since(start)))
	return nil
}

// mimeForFilename covers gateways that omit the mime type from the event.
func mimeForFilename(name string) string {
	switch {
	case strings.HasSuffix(name, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(name, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case strings.HasSuffix(name, ".txt"):
		return "text/plain"
	default:
		return ""
	}
}

func (p *Parser) republish(ctx context.Context, ev events.ResumeSubmitted) error {
	record, err := p.resumes.GetResume(ctx, ev.ResumeID)
	if err != nil {
		return fmt.Errorf("load resume %s: %w", ev.ResumeID, err)
	}
	if record.Status != StatusParsed || len(record.StructuredResume) == 0 {
		// Scored, completed or failed: downstream already has what it needs.
		return nil
	}
	var structured match.StructuredResume
	if err := json.Unmarshal(record.StructuredResume, &structured); err != nil {
		return Permanent(fmt.Errorf("stored structured resume is corrupt: %w", err))
	}
	return p.bus.Publish(ctx, events.SubjectResumeParsed, events.ResumeParsed{
		JobID:            ev.JobID,
		ResumeID:         ev.ResumeID,
		StructuredResume: structured,
	})
}

func (p *Parser) exhausted(ctx context.Context, body []byte, reason error, attempts int) {
	var ev events.ResumeSubmitted
	if err := json.Unmarshal(body, &ev); err != nil {
		p.logger.Error("dead-lettering undecodable resume.submitted", zap.Error(err))
		return
	}
	failResume(ctx, p.bus, p.resumes, p.logger, failure{
		jobID:    ev.JobID,
		resumeID: ev.ResumeID,
		stage:    StageParser,
		reason:   reason,
		attempts: attempts,
	})
}
