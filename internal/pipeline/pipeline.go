// Package pipeline holds the four stage workers and the harness that binds
// them to the bus. Stages coordinate only through events and their own store
// writes; there is no scheduler.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/muhammadolammi/resumepipeline/internal/database"
	"github.com/muhammadolammi/resumepipeline/internal/match"
)

// Resume lifecycle statuses. Each stage owns exactly one forward transition
// and performs it with a compare-and-set update.
const (
	StatusSubmitted = "submitted"
	StatusParsing   = "parsing"
	StatusParsed    = "parsed"
	StatusScoring   = "scoring"
	StatusScored    = "scored"
	StatusReporting = "reporting"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Stage names carried in ResumeFailed events.
const (
	StageParser   = "parser"
	StageScorer   = "scorer"
	StageReporter = "reporter"
)

// JobStore is the slice of the durable store the extractor writes.
type JobStore interface {
	SetJobExtracted(ctx context.Context, arg database.SetJobExtractedParams) error
	SetJobExtractionFailed(ctx context.Context, id uuid.UUID) error
}

// ResumeStore is the slice of the durable store the resume stages write.
// Transitions are compare-and-set: a zero row count means some other delivery
// already moved the record on.
type ResumeStore interface {
	GetResume(ctx context.Context, id uuid.UUID) (database.Resume, error)
	UpdateResumeStatus(ctx context.Context, arg database.UpdateResumeStatusParams) (int64, error)
	SetResumeParsed(ctx context.Context, arg database.SetResumeParsedParams) (int64, error)
	SetResumeScored(ctx context.Context, arg database.SetResumeScoredParams) (int64, error)
	SetResumeCompleted(ctx context.Context, arg database.SetResumeCompletedParams) (int64, error)
	SetResumeFailed(ctx context.Context, arg database.SetResumeFailedParams) (int64, error)
}

// JDExtractor and ResumeExtractor are the external document-understanding
// calls. extract.Extractor implements both.
type JDExtractor interface {
	ExtractJD(ctx context.Context, jobID, title, jdText string) (match.StructuredJD, error)
}

type ResumeExtractor interface {
	ExtractResume(ctx context.Context, resumeID, resumeText string) (match.StructuredResume, error)
}

// Config carries the tunables shared by all stages.
type Config struct {
	// MaxDeliver bounds delivery attempts per subscription (default 3).
	MaxDeliver int
	// ScorerMaxDeliver bounds the scorer's subscription separately (default
	// 5): a deferred ResumeParsed waiting for its JD routinely needs more
	// redeliveries than a genuine failure deserves.
	ScorerMaxDeliver int
	RetryBase        time.Duration
	RetryCap         time.Duration
	AckWait          time.Duration
	// Workers is the consumer count per stage queue.
	Workers int
	// FetchTimeout bounds one blob store read.
	FetchTimeout time.Duration
	// ExtractTimeout bounds one external model call.
	ExtractTimeout time.Duration
	// Weights defaults to 0.5/0.3/0.2; report consumers rely on these.
	Weights match.Weights
	// Now resolves "present" work intervals; tests pin it.
	Now func() time.Time
}

func (c Config) withDefaults() Config {
	if c.MaxDeliver <= 0 {
		c.MaxDeliver = 3
	}
	if c.ScorerMaxDeliver <= 0 {
		c.ScorerMaxDeliver = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 2 * time.Second
	}
	if c.RetryCap <= 0 {
		c.RetryCap = 30 * time.Second
	}
	if c.AckWait <= 0 {
		c.AckWait = 30 * time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 10 * time.Second
	}
	if c.ExtractTimeout <= 0 {
		c.ExtractTimeout = 30 * time.Second
	}
	if c.Weights == (match.Weights{}) {
		c.Weights = match.DefaultWeights()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error as permanent-per-item: retrying cannot help, so
// the harness dead-letters immediately instead of burning the retry budget.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
