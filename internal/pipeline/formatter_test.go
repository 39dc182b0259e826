package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taleweaver/internal/model"
)

func TestFormatter_FillsAllMandatorySlots(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	draft := draftWith(cleanStoryText)

	prompt, err := NewFormatter(zap.NewNop()).Format(plan, draft)
	require.NoError(t, err)

	assert.NoError(t, prompt.Validate())
	assert.Equal(t, "the Gateway of India", prompt.CulturalMotif)
	assert.Equal(t, "painting", prompt.InterestMotif)
	assert.NotEmpty(t, prompt.CompanionDescriptor)
	assert.NotEmpty(t, prompt.EmotionalTone)
}

func TestFormatter_Deterministic(t *testing.T) {
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	draft := draftWith(cleanStoryText)
	formatter := NewFormatter(zap.NewNop())

	first, err := formatter.Format(plan, draft)
	require.NoError(t, err)
	second, err := formatter.Format(plan, draft)
	require.NoError(t, err)

	assert.Equal(t, first.Render(), second.Render())
}

func TestFormatter_MissingProtagonistFails(t *testing.T) {
	plan := &model.StoryPlan{
		Characters: []model.Character{
			{Name: "Teddy", Role: model.RoleCompanion},
		},
		Setting: model.Setting{VisualMotif: "a meadow"},
		Theme:   "friendship",
	}

	_, err := NewFormatter(zap.NewNop()).Format(plan, draftWith("some text"))
	assert.ErrorIs(t, err, model.ErrPlanMissingProtagonist)
}

func TestFormatter_FallbacksForSparseProfile(t *testing.T) {
	pctx := testContext()
	pctx.City = ""
	pctx.MotherTongue = ""
	pctx.FavoriteToy = ""
	plan := testPlanFor(t, &pctx)
	require.Empty(t, plan.Setting.CulturalMotif)
	require.Empty(t, plan.Companions())

	prompt, err := NewFormatter(zap.NewNop()).Format(plan, draftWith(cleanStoryText))
	require.NoError(t, err)

	// Every slot is still non-empty: the setting motif stands in for the
	// cultural one and the companion slot states there are none.
	assert.NoError(t, prompt.Validate())
	assert.Equal(t, plan.Setting.VisualMotif, prompt.CulturalMotif)
	assert.Contains(t, prompt.CompanionDescriptor, "no companions")
}

func TestFormatter_UnknownThemeGetsDefaultTone(t *testing.T) {
	pctx := testContext()
	pctx.Theme = "something unusual"
	plan := testPlanFor(t, &pctx)

	prompt, err := NewFormatter(zap.NewNop()).Format(plan, draftWith(cleanStoryText))
	require.NoError(t, err)
	assert.Equal(t, defaultTone, prompt.EmotionalTone)
}

func TestSceneFromDraft(t *testing.T) {
	assert.Equal(t, "Asha loved painting", sceneFromDraft("Asha loved painting. The rest follows."))
	assert.NotEmpty(t, sceneFromDraft(""))
}
