package match

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Weights are the dimension weights of the overall score. The defaults are a
// product decision report consumers rely on; override only with intent.
type Weights struct {
	Skill      float64
	Experience float64
	Education  float64
}

func DefaultWeights() Weights {
	return Weights{Skill: 0.5, Experience: 0.3, Education: 0.2}
}

const daysPerYear = 365.25

// Score computes the match between a JD and a resume. It is a pure function:
// for the same inputs and evaluation time it always returns the same result.
// now resolves "present" end dates.
func Score(jd StructuredJD, resume StructuredResume, now time.Time, w Weights) ScoreResult {
	skill := scoreSkills(jd, resume)
	exp := scoreExperience(jd, resume, now)
	edu := scoreEducation(jd, resume)

	overall := math.Round(100 * (w.Skill*skill.Score + w.Experience*exp.Score + w.Education*edu.Score))
	if overall < 0 {
		overall = 0
	}
	if overall > 100 {
		overall = 100
	}

	matched, missing := MatchedSkills(jd, resume)
	return ScoreResult{
		OverallScore:  int(overall),
		Skill:         skill,
		Experience:    exp,
		Education:     edu,
		MatchedSkills: matched,
		MissingSkills: missing,
	}
}

// MatchedSkills returns the JD skills the candidate has and the ones missing,
// both in normalized form, in a stable order. The report generator builds its
// strengths and gaps sections from these.
func MatchedSkills(jd StructuredJD, resume StructuredResume) (matched, missing []string) {
	have := make(map[string]bool, len(resume.Skills))
	for _, s := range resume.Skills {
		have[normalizeSkill(s)] = true
	}
	seen := make(map[string]bool, len(jd.RequiredSkills))
	for _, rs := range jd.RequiredSkills {
		name := normalizeSkill(rs.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		if have[name] {
			matched = append(matched, name)
		} else {
			missing = append(missing, name)
		}
	}
	sort.Strings(matched)
	sort.Strings(missing)
	return matched, missing
}

func normalizeSkill(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func scoreSkills(jd StructuredJD, resume StructuredResume) DimensionScore {
	matched, missing := MatchedSkills(jd, resume)
	total := len(matched) + len(missing)
	if total == 0 {
		return DimensionScore{Score: 0, Details: "no required skills listed"}
	}
	score := float64(len(matched)) / float64(total)
	return DimensionScore{
		Score:   score,
		Details: fmt.Sprintf("matched %d of %d required skills", len(matched), total),
	}
}

// TotalExperienceYears sums the candidate's work intervals in years. Each
// interval is clipped to non-negative; unparsable dates contribute nothing.
func TotalExperienceYears(resume StructuredResume, now time.Time) float64 {
	var days float64
	for _, we := range resume.WorkExperience {
		start, ok := parseResumeDate(we.StartDate, now)
		if !ok {
			continue
		}
		end, ok := parseResumeDate(we.EndDate, now)
		if !ok {
			continue
		}
		if d := end.Sub(start).Hours() / 24; d > 0 {
			days += d
		}
	}
	return days / daysPerYear
}

func parseResumeDate(s string, now time.Time) (time.Time, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "present" || s == "now" || s == "current" {
		return now, true
	}
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func scoreExperience(jd StructuredJD, resume StructuredResume, now time.Time) DimensionScore {
	years := TotalExperienceYears(resume, now)
	min := jd.ExperienceYears.Min
	details := fmt.Sprintf("%.1f years of experience, %d required", years, min)
	if min <= 0 || years >= float64(min) {
		return DimensionScore{Score: 1, Details: details}
	}
	return DimensionScore{Score: clamp01(years / float64(min)), Details: details}
}

// HighestDegree returns the best education level found among the candidate's
// degrees. Degree strings are free text; matching is substring-based.
func HighestDegree(resume StructuredResume) EducationLevel {
	best := EducationNone
	for _, edu := range resume.Education {
		if lvl := degreeLevel(edu.Degree); lvl.Rank() > best.Rank() {
			best = lvl
		}
	}
	return best
}

func degreeLevel(degree string) EducationLevel {
	d := strings.ToLower(degree)
	switch {
	case strings.Contains(d, "phd") || strings.Contains(d, "ph.d") || strings.Contains(d, "doctor"):
		return EducationPhd
	case strings.Contains(d, "master") || strings.Contains(d, "msc") || strings.Contains(d, "m.s") || strings.Contains(d, "mba"):
		return EducationMaster
	case strings.Contains(d, "bachelor") || strings.Contains(d, "bsc") || strings.Contains(d, "b.s") || strings.Contains(d, "b.a"):
		return EducationBachelor
	default:
		return EducationNone
	}
}

func scoreEducation(jd StructuredJD, resume StructuredResume) DimensionScore {
	required := jd.EducationLevel.Rank()
	candidate := HighestDegree(resume).Rank()
	details := fmt.Sprintf("candidate level %d, required level %d", candidate, required)
	if required == 0 || candidate >= required {
		return DimensionScore{Score: 1, Details: details}
	}
	return DimensionScore{Score: clamp01(float64(candidate) / float64(required)), Details: details}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
