package model

// RuleCategory is one of the independently graded validation categories.
type RuleCategory string

const (
	CategorySafety              RuleCategory = "safety"
	CategoryAgeAppropriateness  RuleCategory = "age-appropriateness"
	CategoryCulturalSensitivity RuleCategory = "cultural-sensitivity"
	CategoryCompleteness        RuleCategory = "personalization-completeness"
)

// FatalClass reports whether a failure in this category must abort the
// pipeline. Only safety failures are fatal-class; everything else is
// warning-class and triggers a bounded writer retry.
func (c RuleCategory) FatalClass() bool {
	return c == CategorySafety
}

// Violation is a single rule breach found by the validator.
type Violation struct {
	Category RuleCategory `json:"category"`
	Detail   string       `json:"detail"`
	Term     string       `json:"term,omitempty"` // matched lexicon term, when applicable
}

// ValidationReport is the validator's verdict on one narrative draft.
// Categories are graded independently; a missing category means it passed.
type ValidationReport struct {
	Attempt    int         `json:"attempt"`
	Violations []Violation `json:"violations,omitempty"`
}

// Passed reports whether the draft cleared every category.
func (r *ValidationReport) Passed() bool {
	return len(r.Violations) == 0
}

// SafetyFailed reports whether any fatal-class violation is present.
func (r *ValidationReport) SafetyFailed() bool {
	for _, v := range r.Violations {
		if v.Category.FatalClass() {
			return true
		}
	}
	return false
}

// WarningViolations returns the warning-class violations only.
func (r *ValidationReport) WarningViolations() []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if !v.Category.FatalClass() {
			out = append(out, v)
		}
	}
	return out
}

// FailedCategories lists the distinct categories with at least one violation,
// in the fixed grading order.
func (r *ValidationReport) FailedCategories() []RuleCategory {
	order := []RuleCategory{CategorySafety, CategoryAgeAppropriateness, CategoryCulturalSensitivity, CategoryCompleteness}
	var out []RuleCategory
	for _, cat := range order {
		for _, v := range r.Violations {
			if v.Category == cat {
				out = append(out, cat)
				break
			}
		}
	}
	return out
}
