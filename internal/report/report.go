// Package report renders the human-readable match report for one resume.
package report

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/muhammadolammi/resumepipeline/internal/match"
)

// Input is everything the renderer needs; it all comes from the MatchScored
// event, never from a synchronous read.
type Input struct {
	JobID    string
	ResumeID string
	Resume   match.StructuredResume
	Score    match.ScoreResult
}

const reportTemplate = `# Match Report

- Job: {{.JobID}}
- Resume: {{.ResumeID}}
{{- if .CandidateName}}
- Candidate: {{.CandidateName}}
{{- end}}

## Overall Score: {{.Overall}}/100

| Dimension | Score | Details |
|---|---|---|
| Skills | {{printf "%.2f" .Score.Skill.Score}} | {{.Score.Skill.Details}} |
| Experience | {{printf "%.2f" .Score.Experience.Score}} | {{.Score.Experience.Details}} |
| Education | {{printf "%.2f" .Score.Education.Score}} | {{.Score.Education.Details}} |

## Strengths
{{range .Strengths}}
- {{.}}
{{- else}}
- No notable strengths identified against this job's requirements.
{{- end}}

## Gaps
{{range .Gaps}}
- {{.}}
{{- else}}
- No significant gaps identified.
{{- end}}

## Suggested Interview Questions
{{range $i, $q := .Questions}}
{{inc $i}}. {{$q}}
{{- end}}
`

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(reportTemplate))

type reportData struct {
	Input
	CandidateName string
	Overall       int
	Strengths     []string
	Gaps          []string
	Questions     []string
}

// Render produces the markdown artifact. It is deterministic for a given
// input so a redelivered MatchScored writes the same blob.
func Render(in Input) ([]byte, error) {
	data := reportData{
		Input:         in,
		CandidateName: in.Resume.Contact.Name,
		Overall:       in.Score.OverallScore,
		Strengths:     strengths(in),
		Gaps:          gaps(in),
		Questions:     questions(in),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func strengths(in Input) []string {
	var out []string
	if len(in.Score.MatchedSkills) > 0 {
		out = append(out, "Required skills covered: "+strings.Join(in.Score.MatchedSkills, ", "))
	}
	if in.Score.Experience.Score >= 1 {
		out = append(out, "Meets the experience requirement ("+in.Score.Experience.Details+")")
	}
	if in.Score.Education.Score >= 1 && len(in.Resume.Education) > 0 {
		out = append(out, "Meets the education requirement")
	}
	return out
}

func gaps(in Input) []string {
	var out []string
	if len(in.Score.MissingSkills) > 0 {
		out = append(out, "Missing required skills: "+strings.Join(in.Score.MissingSkills, ", "))
	}
	if in.Score.Experience.Score < 1 {
		out = append(out, "Below the experience requirement ("+in.Score.Experience.Details+")")
	}
	if in.Score.Education.Score < 1 {
		out = append(out, "Below the education requirement ("+in.Score.Education.Details+")")
	}
	return out
}

func questions(in Input) []string {
	var out []string
	for _, skill := range in.Score.MissingSkills {
		out = append(out, fmt.Sprintf("The role requires %s, which the resume does not mention. What exposure have you had to it?", skill))
	}
	for _, skill := range in.Score.MatchedSkills {
		out = append(out, fmt.Sprintf("Walk me through the most challenging problem you solved with %s.", skill))
		if len(out) >= 8 {
			break
		}
	}
	if len(in.Resume.WorkExperience) > 0 {
		last := in.Resume.WorkExperience[0]
		if last.Company != "" {
			out = append(out, fmt.Sprintf("What was your biggest contribution at %s?", last.Company))
		}
	}
	if len(out) == 0 {
		out = append(out, "Tell me about a recent project you are proud of.")
	}
	return out
}
