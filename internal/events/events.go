// Package events defines the subjects and payloads exchanged between pipeline
// stages. Payloads are self-contained: a consumer never needs a synchronous
// read from another stage's store to act on one.
package events

import (
	"github.com/google/uuid"

	"github.com/muhammadolammi/resumepipeline/internal/match"
)

// Subjects. The gateway publishes job.*, the pipeline publishes the rest.
const (
	SubjectJDSubmitted     = "job.jd.submitted"
	SubjectJDExtracted     = "analysis.jd.extracted"
	SubjectResumeSubmitted = "job.resume.submitted"
	SubjectResumeParsed    = "analysis.resume.parsed"
	SubjectResumeFailed    = "job.resume.failed"
	SubjectMatchScored     = "analysis.match.scored"
	SubjectReportReady     = "report.ready"
)

type JDSubmitted struct {
	JobID    uuid.UUID `json:"job_id"`
	JobTitle string    `json:"job_title"`
	JDText   string    `json:"jd_text"`
}

type JDExtracted struct {
	JobID            uuid.UUID          `json:"job_id"`
	StructuredJD     match.StructuredJD `json:"structured_jd"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
}

type ResumeSubmitted struct {
	JobID            uuid.UUID `json:"job_id"`
	ResumeID         uuid.UUID `json:"resume_id"`
	BlobHandle       string    `json:"blob_handle"`
	OriginalFilename string    `json:"original_filename"`
	Mime             string    `json:"mime"`
}

type ResumeParsed struct {
	JobID            uuid.UUID              `json:"job_id"`
	ResumeID         uuid.UUID              `json:"resume_id"`
	StructuredResume match.StructuredResume `json:"structured_resume"`
	ProcessingTimeMs int64                  `json:"processing_time_ms"`
}

// ResumeFailed is the dead-letter event for any stage that exhausts its retry
// budget on one resume. Stage names the stage that gave up.
type ResumeFailed struct {
	JobID      uuid.UUID `json:"job_id"`
	ResumeID   uuid.UUID `json:"resume_id"`
	Stage      string    `json:"stage"`
	Reason     string    `json:"reason"`
	RetryCount int       `json:"retry_count"`
}

type MatchScored struct {
	JobID            uuid.UUID              `json:"job_id"`
	ResumeID         uuid.UUID              `json:"resume_id"`
	StructuredResume match.StructuredResume `json:"structured_resume"`
	ScoreResult      match.ScoreResult      `json:"score_result"`
}

type ReportReady struct {
	JobID        uuid.UUID `json:"job_id"`
	ResumeID     uuid.UUID `json:"resume_id"`
	ReportHandle string    `json:"report_handle"`
}
