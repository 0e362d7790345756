package extract

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type stubGenerator struct {
	response string
	err      error
	lastMsg  string
}

func (s *stubGenerator) Generate(_ context.Context, _, msg string) (string, error) {
	s.lastMsg = msg
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestExtractJD(t *testing.T) {
	stub := &stubGenerator{response: "```json\n" + `{
		"required_skills": [{"name": "Go", "weight": 1}, {"name": "SQL", "weight": 0.5}],
		"experience_years": {"min": 3, "max": 5},
		"education_level": "bachelor",
		"soft_skills": ["communication"]
	}` + "\n```"}
	e := NewWithGenerators(stub, nil)

	jd, err := e.ExtractJD(context.Background(), "job-1", "Backend Engineer", "We need Go and SQL.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(jd.RequiredSkills) != 2 || jd.RequiredSkills[0].Name != "Go" {
		t.Fatalf("unexpected skills: %+v", jd.RequiredSkills)
	}
	if jd.ExperienceYears.Min != 3 || jd.ExperienceYears.Max != 5 {
		t.Fatalf("unexpected experience range: %+v", jd.ExperienceYears)
	}
	if string(jd.EducationLevel) != "bachelor" {
		t.Fatalf("unexpected education level: %s", jd.EducationLevel)
	}
	if !strings.Contains(stub.lastMsg, "Backend Engineer") {
		t.Fatalf("prompt missing job title: %s", stub.lastMsg)
	}
}

func TestExtractJDRejectsInvalidShape(t *testing.T) {
	cases := []struct {
		name     string
		response string
	}{
		{"missing required_skills", `{"experience_years": {"min": 1, "max": 2}, "education_level": "none"}`},
		{"bad education enum", `{"required_skills": [], "experience_years": {"min": 1, "max": 2}, "education_level": "diploma"}`},
		{"weight out of range", `{"required_skills": [{"name": "Go", "weight": 2}], "experience_years": {"min": 0, "max": 0}, "education_level": "none"}`},
		{"not json at all", `the candidate should know Go`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := NewWithGenerators(&stubGenerator{response: tc.response}, nil)
			if _, err := e.ExtractJD(context.Background(), "j", "t", "text"); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}

func TestExtractResume(t *testing.T) {
	stub := &stubGenerator{response: `{
		"contact": {"name": "Ada", "email": "ada@example.com"},
		"skills": ["go", "sql"],
		"work_experience": [{"company": "Acme", "position": "Dev", "start_date": "2020-01-01", "end_date": "present", "summary": "Built things."}],
		"education": [{"school": "State", "degree": "BSc", "major": "CS"}]
	}`}
	e := NewWithGenerators(nil, stub)

	resume, err := e.ExtractResume(context.Background(), "r1", "some resume text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resume.Contact.Name != "Ada" || len(resume.Skills) != 2 {
		t.Fatalf("unexpected resume: %+v", resume)
	}
	if resume.WorkExperience[0].EndDate != "present" {
		t.Fatalf("unexpected work experience: %+v", resume.WorkExperience)
	}
}

func TestExtractResumeToleratesMissingFields(t *testing.T) {
	e := NewWithGenerators(nil, &stubGenerator{response: `{"skills": ["go"]}`})
	resume, err := e.ExtractResume(context.Background(), "r1", "text")
	if err != nil {
		t.Fatalf("partial extraction should be tolerated: %v", err)
	}
	if resume.Empty() {
		t.Fatal("resume should not be empty")
	}
}

func TestExtractResumePropagatesGeneratorError(t *testing.T) {
	e := NewWithGenerators(nil, &stubGenerator{err: errors.New("rate limited")})
	if _, err := e.ExtractResume(context.Background(), "r1", "text"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCleanJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{`{"a":1}`, `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := CleanJSON(tc.in); got != tc.want {
			t.Fatalf("CleanJSON(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestTextUnsupportedMime(t *testing.T) {
	_, err := Text("image/png", []byte{1, 2, 3})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("want ErrUnsupportedType, got %v", err)
	}
}

func TestTextPlain(t *testing.T) {
	got, err := Text("text/plain", []byte("hello"))
	if err != nil || got != "hello" {
		t.Fatalf("got %q, %v", got, err)
	}
}
