// Package extract turns uploaded documents into the typed structures the rest
// of the pipeline works with. The model's JSON is validated against a schema
// at this boundary so no untyped data leaks inward.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/muhammadolammi/resumepipeline/internal/match"
)

const jdSchema = `{
	"type": "object",
	"required": ["required_skills", "experience_years", "education_level"],
	"properties": {
		"required_skills": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name", "weight"],
				"properties": {
					"name": {"type": "string"},
					"weight": {"type": "number", "minimum": 0, "maximum": 1}
				}
			}
		},
		"experience_years": {
			"type": "object",
			"required": ["min", "max"],
			"properties": {
				"min": {"type": "integer", "minimum": 0},
				"max": {"type": "integer", "minimum": 0}
			}
		},
		"education_level": {"enum": ["none", "bachelor", "master", "phd"]},
		"soft_skills": {"type": "array", "items": {"type": "string"}}
	}
}`

const resumeSchema = `{
	"type": "object",
	"properties": {
		"contact": {
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"email": {"type": "string"},
				"phone": {"type": "string"}
			}
		},
		"skills": {"type": "array", "items": {"type": "string"}},
		"work_experience": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["start_date", "end_date"],
				"properties": {
					"company": {"type": "string"},
					"position": {"type": "string"},
					"start_date": {"type": "string"},
					"end_date": {"type": "string"},
					"summary": {"type": "string"}
				}
			}
		},
		"education": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"school": {"type": "string"},
					"degree": {"type": "string"},
					"major": {"type": "string"}
				}
			}
		}
	}
}`

// Generator is the model call behind both extractors. *Agent satisfies it;
// tests supply stubs.
type Generator interface {
	Generate(ctx context.Context, userID, msg string) (string, error)
}

// Extractor is the document-understanding boundary: text in, validated
// structures out.
type Extractor struct {
	jd     Generator
	resume Generator
}

func New(apiKey string) (*Extractor, error) {
	jdAgent, err := NewAgent(apiKey, "jd extractor", jdPrompt())
	if err != nil {
		return nil, fmt.Errorf("jd agent: %w", err)
	}
	resumeAgent, err := NewAgent(apiKey, "resume extractor", resumePrompt())
	if err != nil {
		return nil, fmt.Errorf("resume agent: %w", err)
	}
	return &Extractor{jd: jdAgent, resume: resumeAgent}, nil
}

// NewWithGenerators wires explicit generators, for tests.
func NewWithGenerators(jd, resume Generator) *Extractor {
	return &Extractor{jd: jd, resume: resume}
}

func (e *Extractor) ExtractJD(ctx context.Context, jobID, title, jdText string) (match.StructuredJD, error) {
	msg := fmt.Sprintf("Job Title:\n%s\n\nJob Description:\n%s", title, jdText)
	raw, err := e.jd.Generate(ctx, jobID, msg)
	if err != nil {
		return match.StructuredJD{}, fmt.Errorf("jd extraction: %w", err)
	}

	cleaned := CleanJSON(raw)
	if err := validate(jdSchema, cleaned); err != nil {
		return match.StructuredJD{}, fmt.Errorf("jd extraction returned invalid structure: %w", err)
	}

	var jd match.StructuredJD
	if err := json.Unmarshal([]byte(cleaned), &jd); err != nil {
		return match.StructuredJD{}, fmt.Errorf("jd unmarshal: %w", err)
	}
	return jd, nil
}

func (e *Extractor) ExtractResume(ctx context.Context, resumeID, resumeText string) (match.StructuredResume, error) {
	msg := fmt.Sprintf("Resume:\n%s", resumeText)
	raw, err := e.resume.Generate(ctx, resumeID, msg)
	if err != nil {
		return match.StructuredResume{}, fmt.Errorf("resume extraction: %w", err)
	}

	cleaned := CleanJSON(raw)
	if err := validate(resumeSchema, cleaned); err != nil {
		return match.StructuredResume{}, fmt.Errorf("resume extraction returned invalid structure: %w", err)
	}

	var resume match.StructuredResume
	if err := json.Unmarshal([]byte(cleaned), &resume); err != nil {
		return match.StructuredResume{}, fmt.Errorf("resume unmarshal: %w", err)
	}
	return resume, nil
}

func validate(schema, doc string) error {
	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schema), gojsonschema.NewStringLoader(doc))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return fmt.Errorf("schema violations: %s", strings.Join(msgs, "; "))
}
