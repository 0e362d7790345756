package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muhammadolammi/resumepipeline/internal/blob"
	"github.com/muhammadolammi/resumepipeline/internal/bus"
	"github.com/muhammadolammi/resumepipeline/internal/database"
	"github.com/muhammadolammi/resumepipeline/internal/events"
	"github.com/muhammadolammi/resumepipeline/internal/match"
	"github.com/muhammadolammi/resumepipeline/internal/pipeline"
)

var evalDate = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// memStore mirrors the compare-and-set semantics of the SQL queries.
type memStore struct {
	mu      sync.Mutex
	jobs    map[uuid.UUID]*database.Job
	resumes map[uuid.UUID]*database.Resume
	history map[uuid.UUID][]string
}

func newMemStore() *memStore {
	return &memStore{
		jobs:    make(map[uuid.UUID]*database.Job),
		resumes: make(map[uuid.UUID]*database.Resume),
		history: make(map[uuid.UUID][]string),
	}
}

func (m *memStore) addJob(id uuid.UUID, title, jdText string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[id] = &database.Job{ID: id, Title: title, JdText: jdText, Status: "pending_extraction"}
}

func (m *memStore) addResume(id, jobID uuid.UUID, objectKey, mime string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resumes[id] = &database.Resume{ID: id, JobID: jobID, ObjectKey: objectKey, Mime: mime, Status: pipeline.StatusSubmitted}
	m.history[id] = []string{pipeline.StatusSubmitted}
}

func (m *memStore) SetJobExtracted(_ context.Context, arg database.SetJobExtractedParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[arg.ID]
	if !ok {
		return fmt.Errorf("no job %s", arg.ID)
	}
	job.StructuredJd = arg.StructuredJd
	job.Status = "extracted"
	return nil
}

func (m *memStore) SetJobExtractionFailed(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[id]; ok && job.Status == "pending_extraction" {
		job.Status = "extraction_failed"
	}
	return nil
}

func (m *memStore) GetResume(_ context.Context, id uuid.UUID) (database.Resume, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[id]
	if !ok {
		return database.Resume{}, fmt.Errorf("no resume %s", id)
	}
	return *r, nil
}

func (m *memStore) setStatus(r *database.Resume, status string) {
	r.Status = status
	m.history[r.ID] = append(m.history[r.ID], status)
}

func (m *memStore) UpdateResumeStatus(_ context.Context, arg database.UpdateResumeStatusParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[arg.ID]
	if !ok {
		return 0, nil
	}
	for _, from := range arg.FromStatuses {
		if r.Status == from {
			m.setStatus(r, arg.Status)
			return 1, nil
		}
	}
	return 0, nil
}

func (m *memStore) SetResumeParsed(_ context.Context, arg database.SetResumeParsedParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[arg.ID]
	if !ok || r.Status != pipeline.StatusParsing {
		return 0, nil
	}
	r.StructuredResume = arg.StructuredResume
	m.setStatus(r, pipeline.StatusParsed)
	return 1, nil
}

func (m *memStore) SetResumeScored(_ context.Context, arg database.SetResumeScoredParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[arg.ID]
	if !ok || r.Status != pipeline.StatusScoring {
		return 0, nil
	}
	r.Score = arg.Score
	m.setStatus(r, pipeline.StatusScored)
	return 1, nil
}

func (m *memStore) SetResumeCompleted(_ context.Context, arg database.SetResumeCompletedParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[arg.ID]
	if !ok || r.Status != pipeline.StatusReporting {
		return 0, nil
	}
	r.ReportKey.String = arg.ReportKey
	r.ReportKey.Valid = true
	m.setStatus(r, pipeline.StatusCompleted)
	return 1, nil
}

func (m *memStore) SetResumeFailed(_ context.Context, arg database.SetResumeFailedParams) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.resumes[arg.ID]
	if !ok || r.Status == pipeline.StatusCompleted || r.Status == pipeline.StatusFailed {
		return 0, nil
	}
	r.FailureReason.String = arg.FailureReason
	r.FailureReason.Valid = true
	r.RetryCount = arg.RetryCount
	m.setStatus(r, pipeline.StatusFailed)
	return 1, nil
}

type stubJDExtractor struct {
	jd    match.StructuredJD
	err   error
	calls int
}

func (s *stubJDExtractor) ExtractJD(context.Context, string, string, string) (match.StructuredJD, error) {
	s.calls++
	if s.err != nil {
		return match.StructuredJD{}, s.err
	}
	return s.jd, nil
}

type stubResumeExtractor struct {
	resume match.StructuredResume
	err    error
	calls  int
}

func (s *stubResumeExtractor) ExtractResume(context.Context, string, string) (match.StructuredResume, error) {
	s.calls++
	if s.err != nil {
		return match.StructuredResume{}, s.err
	}
	return s.resume, nil
}

type fixture struct {
	bus   *bus.Memory
	blobs *blob.Memory
	store *memStore
	jdx   *stubJDExtractor
	rx    *stubResumeExtractor
	cache *match.MemoryJDCache

	jobID    uuid.UUID
	resumeID uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bus:   bus.NewMemory(),
		blobs: blob.NewMemory(),
		store: newMemStore(),
		jdx: &stubJDExtractor{jd: match.StructuredJD{
			RequiredSkills: []match.RequiredSkill{
				{Name: "Python", Weight: 1},
				{Name: "SQL", Weight: 1},
			},
			ExperienceYears: match.ExperienceRange{Min: 3, Max: 5},
			EducationLevel:  match.EducationBachelor,
		}},
		rx: &stubResumeExtractor{resume: match.StructuredResume{
			Contact: match.Contact{Name: "Ada"},
			Skills:  []string{"python", "java"},
			WorkExperience: []match.WorkExperience{
				{Company: "Acme", Position: "Engineer", StartDate: "2019-01-01", EndDate: "present"},
			},
			Education: []match.Education{{School: "State", Degree: "bachelor"}},
		}},
		cache:    match.NewMemoryJDCache(time.Hour),
		jobID:    uuid.New(),
		resumeID: uuid.New(),
	}

	cfg := pipeline.Config{
		MaxDeliver:       3,
		ScorerMaxDeliver: 5,
		Workers:          1,
		Now:              func() time.Time { return evalDate },
	}
	logger := zap.NewNop()

	if err := pipeline.NewExtractor(f.bus, f.store, f.jdx, cfg, logger).Start(); err != nil {
		t.Fatal(err)
	}
	if err := pipeline.NewParser(f.bus, f.blobs, f.store, f.rx, cfg, logger).Start(); err != nil {
		t.Fatal(err)
	}
	if err := pipeline.NewScorer(f.bus, f.store, f.cache, cfg, logger).Start(); err != nil {
		t.Fatal(err)
	}
	if err := pipeline.NewReporter(f.bus, f.blobs, f.store, cfg, logger).Start(); err != nil {
		t.Fatal(err)
	}

	f.store.addJob(f.jobID, "Backend Engineer", "We need Python and SQL.")
	f.store.addResume(f.resumeID, f.jobID, "resume-blob", "text/plain")
	f.blobs.Seed("resume-blob", []byte("Ada Lovelace. Python, Java. Acme 2019-present."))
	return f
}

func (f *fixture) submitJD(t *testing.T) {
	t.Helper()
	err := f.bus.Publish(context.Background(), events.SubjectJDSubmitted, events.JDSubmitted{
		JobID:    f.jobID,
		JobTitle: "Backend Engineer",
		JDText:   "We need Python and SQL.",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) submitResume(t *testing.T) {
	t.Helper()
	err := f.bus.Publish(context.Background(), events.SubjectResumeSubmitted, events.ResumeSubmitted{
		JobID:            f.jobID,
		ResumeID:         f.resumeID,
		BlobHandle:       "resume-blob",
		OriginalFilename: "ada.txt",
		Mime:             "text/plain",
	})
	if err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) drainRetries() {
	for f.bus.DeliverRetries(context.Background()) > 0 {
	}
}

func decode[T any](t *testing.T, bodies [][]byte) []T {
	t.Helper()
	out := make([]T, 0, len(bodies))
	for _, b := range bodies {
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			t.Fatalf("decoding published event: %v", err)
		}
		out = append(out, v)
	}
	return out
}

func TestPipelineEndToEnd(t *testing.T) {
	f := newFixture(t)

	f.submitJD(t)
	f.submitResume(t)
	f.drainRetries()

	scored := decode[events.MatchScored](t, f.bus.Published(events.SubjectMatchScored))
	if len(scored) != 1 {
		t.Fatalf("want 1 MatchScored, got %d", len(scored))
	}
	if scored[0].ScoreResult.OverallScore != 75 {
		t.Fatalf("want overall 75, got %d", scored[0].ScoreResult.OverallScore)
	}

	ready := decode[events.ReportReady](t, f.bus.Published(events.SubjectReportReady))
	if len(ready) != 1 {
		t.Fatalf("want 1 ReportReady, got %d", len(ready))
	}

	record, err := f.store.GetResume(context.Background(), f.resumeID)
	if err != nil {
		t.Fatal(err)
	}
	if record.Status != pipeline.StatusCompleted {
		t.Fatalf("want completed, got %s", record.Status)
	}
	if !record.ReportKey.Valid || record.ReportKey.String != ready[0].ReportHandle {
		t.Fatalf("report handle mismatch: %+v vs %s", record.ReportKey, ready[0].ReportHandle)
	}

	artifact, err := f.blobs.Fetch(context.Background(), ready[0].ReportHandle)
	if err != nil {
		t.Fatalf("report artifact missing: %v", err)
	}
	if len(artifact) == 0 {
		t.Fatal("report artifact is empty")
	}

	wantHistory := []string{
		pipeline.StatusSubmitted,
		pipeline.StatusParsing,
		pipeline.StatusParsed,
		pipeline.StatusScoring,
		pipeline.StatusScored,
		pipeline.StatusReporting,
		pipeline.StatusCompleted,
	}
	got := f.store.history[f.resumeID]
	if len(got) != len(wantHistory) {
		t.Fatalf("state history %v, want %v", got, wantHistory)
	}
	for i := range wantHistory {
		if got[i] != wantHistory[i] {
			t.Fatalf("state history %v, want %v", got, wantHistory)
		}
	}
}

func TestOrderingIndependence(t *testing.T) {
	f := newFixture(t)

	// Resume lands first; the scorer has no JD yet and must defer.
	f.submitResume(t)

	if n := len(f.bus.Published(events.SubjectMatchScored)); n != 0 {
		t.Fatalf("nothing should be scored before the JD arrives, got %d", n)
	}
	if f.bus.PendingRetries() == 0 {
		t.Fatal("expected the parsed resume to be deferred for redelivery")
	}

	f.submitJD(t)
	f.drainRetries()

	scored := decode[events.MatchScored](t, f.bus.Published(events.SubjectMatchScored))
	if len(scored) != 1 {
		t.Fatalf("want 1 MatchScored after JD arrival, got %d", len(scored))
	}
	if scored[0].ScoreResult.OverallScore != 75 {
		t.Fatalf("deferred scoring changed the result: %d", scored[0].ScoreResult.OverallScore)
	}
}

func TestDuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.bus.Redeliver = true

	f.submitJD(t)
	f.submitResume(t)
	f.drainRetries()

	scored := f.bus.Published(events.SubjectMatchScored)
	if len(scored) != 1 {
		t.Fatalf("duplicate deliveries must not duplicate MatchScored, got %d", len(scored))
	}
	if f.rx.calls != 1 {
		t.Fatalf("duplicate ResumeSubmitted re-ran extraction: %d calls", f.rx.calls)
	}

	record, _ := f.store.GetResume(context.Background(), f.resumeID)
	if record.Status != pipeline.StatusCompleted {
		t.Fatalf("want completed, got %s", record.Status)
	}
}

func TestBoundedRetriesThenDeadLetter(t *testing.T) {
	f := newFixture(t)
	f.rx.err = errors.New("model overloaded")

	f.submitJD(t)
	f.submitResume(t)
	f.drainRetries()

	if f.rx.calls != 3 {
		t.Fatalf("want exactly maxDeliver=3 attempts, got %d", f.rx.calls)
	}

	failed := decode[events.ResumeFailed](t, f.bus.Published(events.SubjectResumeFailed))
	if len(failed) != 1 {
		t.Fatalf("want exactly 1 ResumeFailed, got %d", len(failed))
	}
	if failed[0].RetryCount != 3 {
		t.Fatalf("want retryCount 3, got %d", failed[0].RetryCount)
	}
	if failed[0].Stage != pipeline.StageParser {
		t.Fatalf("want parser stage, got %s", failed[0].Stage)
	}

	record, _ := f.store.GetResume(context.Background(), f.resumeID)
	if record.Status != pipeline.StatusFailed {
		t.Fatalf("want failed, got %s", record.Status)
	}
	if record.RetryCount != 3 {
		t.Fatalf("want stored retry count 3, got %d", record.RetryCount)
	}
	if f.bus.PendingRetries() != 0 {
		t.Fatal("no redelivery may follow a dead-letter")
	}
}

func TestPermanentFailureShortCircuits(t *testing.T) {
	f := newFixture(t)
	f.store.addResume(f.resumeID, f.jobID, "image-blob", "image/png")
	f.blobs.Seed("image-blob", []byte{0x89, 0x50})

	f.submitJD(t)
	err := f.bus.Publish(context.Background(), events.SubjectResumeSubmitted, events.ResumeSubmitted{
		JobID:            f.jobID,
		ResumeID:         f.resumeID,
		BlobHandle:       "image-blob",
		OriginalFilename: "photo.png",
		Mime:             "image/png",
	})
	if err != nil {
		t.Fatal(err)
	}

	if f.rx.calls != 0 {
		t.Fatal("unsupported mime should never reach the model")
	}
	failed := decode[events.ResumeFailed](t, f.bus.Published(events.SubjectResumeFailed))
	if len(failed) != 1 {
		t.Fatalf("want 1 ResumeFailed, got %d", len(failed))
	}
	if failed[0].RetryCount != 1 {
		t.Fatalf("permanent failure should not burn retries, got count %d", failed[0].RetryCount)
	}
	if f.bus.PendingRetries() != 0 {
		t.Fatal("permanent failure must not be retried")
	}
}

func TestScorerDeadLettersWhenJDNeverArrives(t *testing.T) {
	f := newFixture(t)

	// No JD submitted at all: the deferred resume exhausts the scorer budget.
	f.submitResume(t)
	f.drainRetries()

	failed := decode[events.ResumeFailed](t, f.bus.Published(events.SubjectResumeFailed))
	if len(failed) != 1 {
		t.Fatalf("want 1 ResumeFailed, got %d", len(failed))
	}
	if failed[0].Stage != pipeline.StageScorer {
		t.Fatalf("want scorer stage, got %s", failed[0].Stage)
	}
	if failed[0].RetryCount != 5 {
		t.Fatalf("want scorer budget of 5 attempts, got %d", failed[0].RetryCount)
	}

	record, _ := f.store.GetResume(context.Background(), f.resumeID)
	if record.Status != pipeline.StatusFailed {
		t.Fatalf("want failed, got %s", record.Status)
	}
}

func TestFailedResumeDoesNotBlockSiblings(t *testing.T) {
	f := newFixture(t)

	badResume := uuid.New()
	f.store.addResume(badResume, f.jobID, "bad-blob", "text/plain")
	// blob missing: fetch fails every attempt

	f.submitJD(t)
	err := f.bus.Publish(context.Background(), events.SubjectResumeSubmitted, events.ResumeSubmitted{
		JobID:      f.jobID,
		ResumeID:   badResume,
		BlobHandle: "bad-blob",
		Mime:       "text/plain",
	})
	if err != nil {
		t.Fatal(err)
	}
	f.submitResume(t)
	f.drainRetries()

	good, _ := f.store.GetResume(context.Background(), f.resumeID)
	if good.Status != pipeline.StatusCompleted {
		t.Fatalf("sibling failure blocked completion: %s", good.Status)
	}
	bad, _ := f.store.GetResume(context.Background(), badResume)
	if bad.Status != pipeline.StatusFailed {
		t.Fatalf("want failed, got %s", bad.Status)
	}
}

func TestEmptyExtractionIsRetriedAsSoftFailure(t *testing.T) {
	f := newFixture(t)
	f.rx.resume = match.StructuredResume{}

	f.submitJD(t)
	f.submitResume(t)
	f.drainRetries()

	if f.rx.calls != 3 {
		t.Fatalf("soft failure should use the retry budget, got %d calls", f.rx.calls)
	}
	failed := decode[events.ResumeFailed](t, f.bus.Published(events.SubjectResumeFailed))
	if len(failed) != 1 {
		t.Fatalf("want 1 ResumeFailed, got %d", len(failed))
	}
}

func TestParserInfersMimeFromFilename(t *testing.T) {
	f := newFixture(t)

	f.submitJD(t)
	err := f.bus.Publish(context.Background(), events.SubjectResumeSubmitted, events.ResumeSubmitted{
		JobID:            f.jobID,
		ResumeID:         f.resumeID,
		BlobHandle:       "resume-blob",
		OriginalFilename: "ada.txt",
	})
	if err != nil {
		t.Fatal(err)
	}
	f.drainRetries()

	record, _ := f.store.GetResume(context.Background(), f.resumeID)
	if record.Status != pipeline.StatusCompleted {
		t.Fatalf("want completed, got %s", record.Status)
	}
}

func TestPermanentMarker(t *testing.T) {
	base := errors.New("boom")
	if !pipeline.IsPermanent(pipeline.Permanent(base)) {
		t.Fatal("Permanent() should mark errors")
	}
	if pipeline.IsPermanent(base) {
		t.Fatal("plain errors are transient")
	}
	if pipeline.IsPermanent(nil) {
		t.Fatal("nil is not permanent")
	}
	wrapped := fmt.Errorf("context: %w", pipeline.Permanent(base))
	if !pipeline.IsPermanent(wrapped) {
		t.Fatal("marker should survive wrapping")
	}
}
