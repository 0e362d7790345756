package match

// EducationLevel is the highest degree a JD requires or a candidate holds.
type EducationLevel string

const (
	EducationNone     EducationLevel = "none"
	EducationBachelor EducationLevel = "bachelor"
	EducationMaster   EducationLevel = "master"
	EducationPhd      EducationLevel = "phd"
)

// Rank maps an education level to its ordinal for comparison.
// Unknown strings rank as none.
func (e EducationLevel) Rank() int {
	switch e {
	case EducationBachelor:
		return 1
	case EducationMaster:
		return 2
	case EducationPhd:
		return 3
	default:
		return 0
	}
}

type RequiredSkill struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

type ExperienceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// StructuredJD is the typed extraction of a job description. It is immutable
// once produced; the scorer only ever reads it.
type StructuredJD struct {
	RequiredSkills  []RequiredSkill `json:"required_skills"`
	ExperienceYears ExperienceRange `json:"experience_years"`
	EducationLevel  EducationLevel  `json:"education_level"`
	SoftSkills      []string        `json:"soft_skills"`
}

type Contact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// WorkExperience is one employment interval. EndDate is "present" for a
// current position; dates are "2006-01-02".
type WorkExperience struct {
	Company   string `json:"company"`
	Position  string `json:"position"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Summary   string `json:"summary,omitempty"`
}

type Education struct {
	School string `json:"school"`
	Degree string `json:"degree"`
	Major  string `json:"major,omitempty"`
}

// StructuredResume is the typed extraction of one candidate document.
// Every field is best-effort: the extractor may leave any of them empty.
type StructuredResume struct {
	Contact        Contact          `json:"contact"`
	Skills         []string         `json:"skills"`
	WorkExperience []WorkExperience `json:"work_experience"`
	Education      []Education      `json:"education"`
}

// Empty reports whether the extraction produced nothing usable at all.
func (r StructuredResume) Empty() bool {
	return r.Contact.Name == "" && r.Contact.Email == "" && r.Contact.Phone == "" &&
		len(r.Skills) == 0 && len(r.WorkExperience) == 0 && len(r.Education) == 0
}

type DimensionScore struct {
	Score   float64 `json:"score"`
	Details string  `json:"details"`
}

// ScoreResult is the scorer's output for one (job, resume) pair. The skill
// lists are normalized names; the report generator builds its strengths and
// gaps sections from them without reading the JD back.
type ScoreResult struct {
	OverallScore  int            `json:"overall_score"`
	Skill         DimensionScore `json:"skill"`
	Experience    DimensionScore `json:"experience"`
	Education     DimensionScore `json:"education"`
	MatchedSkills []string       `json:"matched_skills,omitempty"`
	MissingSkills []string       `json:"missing_skills,omitempty"`
}
