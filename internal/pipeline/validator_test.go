package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taleweaver/internal/model"
)

const cleanStoryText = "Asha loved painting. One morning she walked to the Gateway of India. " +
	"The sea wind was soft. Asha painted the big arch with bright colors. " +
	"A little boat waved at her. She smiled and waved back. " +
	"Her painting was full of joy. Asha carried it home to show maa."

func testValidator() *Validator {
	return NewValidator(zap.NewNop())
}

func testPlanFor(t *testing.T, pctx *model.PersonalizationContext) *model.StoryPlan {
	t.Helper()
	plan, err := testPlanner().Plan(t.Context(), "a day of painting by the sea", pctx)
	require.NoError(t, err)
	return plan
}

func draftWith(text string) *model.NarrativeDraft {
	return &model.NarrativeDraft{
		Text:         text,
		ReadingLevel: model.ReadingLevelSimple,
		Language:     "english",
		Attempt:      1,
	}
}

func TestValidator_CleanDraftPasses(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)

	report := testValidator().Review(draftWith(cleanStoryText), plan, &pctx)

	assert.True(t, report.Passed(), "violations: %+v", report.Violations)
}

func TestValidator_SafetyTermIsFatal(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	text := cleanStoryText + " The dragon wanted to kill everyone."

	report := testValidator().Review(draftWith(text), plan, &pctx)

	assert.True(t, report.SafetyFailed())
	categories := report.FailedCategories()
	require.NotEmpty(t, categories)
	assert.Equal(t, model.CategorySafety, categories[0])
}

func TestValidator_SafetyTermsAreAgeDependent(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	text := cleanStoryText + " A ghost lived in the old house."

	// Age 5: "ghost" is out of bounds.
	report := testValidator().Review(draftWith(text), plan, &pctx)
	assert.True(t, report.SafetyFailed())

	// Age 9: the same word is fine.
	older := testContext()
	older.Age = 9
	report = testValidator().Review(draftWith(text), plan, &older)
	assert.False(t, report.SafetyFailed())
}

func TestValidator_SafetyMatchesWholeWordsOnly(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	// "skill" contains "kill" but is not a violation.
	text := cleanStoryText + " Asha showed great skill."

	report := testValidator().Review(draftWith(text), plan, &pctx)
	assert.False(t, report.SafetyFailed())
}

func TestValidator_SentenceLengthForSimpleLevel(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	longSentence := "Asha went painting near the Gateway of India while the wind was blowing gently over the water and the boats were bobbing slowly up and down in the bright warm morning sun"

	report := testValidator().Review(draftWith(longSentence), plan, &pctx)

	require.False(t, report.Passed())
	assert.Contains(t, report.FailedCategories(), model.CategoryAgeAppropriateness)
	assert.False(t, report.SafetyFailed())
}

func TestValidator_StereotypePhraseFlagged(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	require.NotEmpty(t, plan.Setting.CulturalMotif)
	text := cleanStoryText + " It was an exotic place."

	report := testValidator().Review(draftWith(text), plan, &pctx)

	assert.Contains(t, report.FailedCategories(), model.CategoryCulturalSensitivity)
	assert.False(t, report.SafetyFailed())
}

func TestValidator_StereotypeCheckSkippedWithoutCulturalMotif(t *testing.T) {
	pctx := testContext()
	pctx.City = ""
	pctx.MotherTongue = ""
	plan := testPlanFor(t, &pctx)
	require.Empty(t, plan.Setting.CulturalMotif)

	text := "Asha loved painting. It was an exotic day. Asha smiled."
	report := testValidator().Review(draftWith(text), plan, &pctx)

	assert.NotContains(t, report.FailedCategories(), model.CategoryCulturalSensitivity)
}

func TestValidator_CompletenessMissingProtagonist(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	text := "A girl loved painting near the Gateway of India. She smiled all day."

	report := testValidator().Review(draftWith(text), plan, &pctx)

	assert.Contains(t, report.FailedCategories(), model.CategoryCompleteness)
}

func TestValidator_CompletenessMissingCulturalMotif(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	text := "Asha loved painting at home. She smiled all day. Asha was happy."

	report := testValidator().Review(draftWith(text), plan, &pctx)

	assert.Contains(t, report.FailedCategories(), model.CategoryCompleteness)
}

func TestValidator_WarningViolationsExcludeSafety(t *testing.T) {
	report := &model.ValidationReport{
		Violations: []model.Violation{
			{Category: model.CategorySafety, Detail: "bad term"},
			{Category: model.CategoryCompleteness, Detail: "missing name"},
		},
	}
	warnings := report.WarningViolations()
	require.Len(t, warnings, 1)
	assert.Equal(t, model.CategoryCompleteness, warnings[0].Category)
}
