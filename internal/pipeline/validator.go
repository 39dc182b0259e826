package pipeline

import (
	"fmt"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"taleweaver/internal/model"
)

// Validator grades a narrative draft against the four rule categories. It is
// deterministic and model-free; every rule is a lexicon or structural check.
type Validator struct {
	logger *zap.Logger
}

func NewValidator(logger *zap.Logger) *Validator {
	return &Validator{logger: logger.Named("Validator")}
}

// safetyRule bans a term for readers younger than MinAge. MinAge above the
// profile ceiling means the term is banned outright.
type safetyRule struct {
	Term   string
	MinAge int
}

const bannedOutright = model.MaxProfileAge + 1

var safetyLexicon = []safetyRule{
	{"kill", bannedOutright},
	{"killed", bannedOutright},
	{"murder", bannedOutright},
	{"gun", bannedOutright},
	{"rifle", bannedOutright},
	{"suicide", bannedOutright},
	{"corpse", bannedOutright},
	{"drugs", bannedOutright},
	{"alcohol", bannedOutright},
	{"cigarette", bannedOutright},
	{"naked", bannedOutright},
	{"blood", 8},
	{"death", 8},
	{"died", 8},
	{"weapon", 8},
	{"war", 8},
	{"demon", 8},
	{"horror", 8},
	{"terrifying", 6},
	{"nightmare", 6},
	{"ghost", 6},
}

// stereotypePhrases flag othering language around a cultural setting. Graded
// only when the plan carries a cultural motif.
var stereotypePhrases = []string{
	"exotic",
	"primitive",
	"savage",
	"backward",
	"strange customs",
	"mystical land of",
	"all the people there",
	"those people",
}

// sentence-length ceilings per reading level, in average words per sentence.
var maxAvgSentenceLen = map[model.ReadingLevel]float64{
	model.ReadingLevelSimple:   12,
	model.ReadingLevelMedium:   18,
	model.ReadingLevelAdvanced: 26,
}

// Review grades every category independently and returns the full report, so
// a revision attempt can fix all problems at once instead of one per round.
func (v *Validator) Review(draft *model.NarrativeDraft, plan *model.StoryPlan, pctx *model.PersonalizationContext) *model.ValidationReport {
	report := &model.ValidationReport{Attempt: draft.Attempt}

	textLower := strings.ToLower(draft.Text)
	words := tokenizeWords(textLower)

	report.Violations = append(report.Violations, v.checkSafety(words, textLower, pctx.Age)...)
	report.Violations = append(report.Violations, v.checkAgeAppropriateness(draft, plan)...)
	report.Violations = append(report.Violations, v.checkCulturalSensitivity(textLower, plan)...)
	report.Violations = append(report.Violations, v.checkCompleteness(textLower, plan)...)

	if !report.Passed() {
		v.logger.Info("Draft failed validation",
			zap.Int("attempt", draft.Attempt),
			zap.Int("violations", len(report.Violations)),
			zap.Bool("safetyFailed", report.SafetyFailed()),
		)
	}
	return report
}

func (v *Validator) checkSafety(words map[string]bool, textLower string, age int) []model.Violation {
	var out []model.Violation
	for _, rule := range safetyLexicon {
		if age >= rule.MinAge {
			continue
		}
		matched := false
		if strings.ContainsRune(rule.Term, ' ') {
			matched = strings.Contains(textLower, rule.Term)
		} else {
			matched = words[rule.Term]
		}
		if matched {
			out = append(out, model.Violation{
				Category: model.CategorySafety,
				Detail:   fmt.Sprintf("contains the term %q, not allowed for age %d", rule.Term, age),
				Term:     rule.Term,
			})
		}
	}
	return out
}

func (v *Validator) checkAgeAppropriateness(draft *model.NarrativeDraft, plan *model.StoryPlan) []model.Violation {
	var out []model.Violation

	avg := averageSentenceLength(draft.Text)
	if ceiling, ok := maxAvgSentenceLen[plan.ReadingLevel]; ok && avg > ceiling {
		out = append(out, model.Violation{
			Category: model.CategoryAgeAppropriateness,
			Detail: fmt.Sprintf("average sentence length %.1f words exceeds the %s-level ceiling of %.0f",
				avg, plan.ReadingLevel, ceiling),
		})
	}

	if plan.ReadingLevel == model.ReadingLevelSimple {
		if ratio := longWordRatio(draft.Text); ratio > 0.15 {
			out = append(out, model.Violation{
				Category: model.CategoryAgeAppropriateness,
				Detail:   fmt.Sprintf("%.0f%% of words have 10+ letters, too complex for a simple-level reader", ratio*100),
			})
		}
	}
	return out
}

func (v *Validator) checkCulturalSensitivity(textLower string, plan *model.StoryPlan) []model.Violation {
	if plan.Setting.CulturalMotif == "" {
		return nil
	}
	var out []model.Violation
	for _, phrase := range stereotypePhrases {
		if strings.Contains(textLower, phrase) {
			out = append(out, model.Violation{
				Category: model.CategoryCulturalSensitivity,
				Detail:   fmt.Sprintf("uses the othering phrase %q about the story's setting", phrase),
				Term:     phrase,
			})
		}
	}
	return out
}

func (v *Validator) checkCompleteness(textLower string, plan *model.StoryPlan) []model.Violation {
	var out []model.Violation

	if protagonist, ok := plan.Protagonist(); ok {
		if !strings.Contains(textLower, strings.ToLower(protagonist.Name)) {
			out = append(out, model.Violation{
				Category: model.CategoryCompleteness,
				Detail:   fmt.Sprintf("the protagonist %q never appears by name", protagonist.Name),
			})
		}
	}

	found := false
	for _, element := range plan.PersonalizationElements {
		if strings.Contains(textLower, strings.ToLower(element)) {
			found = true
			break
		}
	}
	if !found && len(plan.PersonalizationElements) > 0 {
		out = append(out, model.Violation{
			Category: model.CategoryCompleteness,
			Detail:   fmt.Sprintf("none of the personal interests (%s) appear in the story", strings.Join(plan.PersonalizationElements, ", ")),
		})
	}

	if motif := plan.Setting.CulturalMotif; motif != "" {
		if !strings.Contains(textLower, strings.ToLower(motif)) {
			out = append(out, model.Violation{
				Category: model.CategoryCompleteness,
				Detail:   fmt.Sprintf("the setting detail %q is missing from the story", motif),
			})
		}
	}
	return out
}

func tokenizeWords(textLower string) map[string]bool {
	words := strings.FieldsFunc(textLower, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	set := make(map[string]bool, len(words))
	for _, w := range words {
		set[strings.Trim(w, "'")] = true
	}
	return set
}

func averageSentenceLength(text string) float64 {
	sentences := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	totalWords := 0
	sentenceCount := 0
	for _, s := range sentences {
		n := len(strings.Fields(s))
		if n == 0 {
			continue
		}
		totalWords += n
		sentenceCount++
	}
	if sentenceCount == 0 {
		return 0
	}
	return float64(totalWords) / float64(sentenceCount)
}

func longWordRatio(text string) float64 {
	words := strings.Fields(text)
	if len(words) == 0 {
		return 0
	}
	long := 0
	for _, w := range words {
		letters := 0
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
			}
		}
		if letters >= 10 {
			long++
		}
	}
	return float64(long) / float64(len(words))
}
