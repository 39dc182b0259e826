package pipeline

import (
	"strings"

	"go.uber.org/zap"

	"taleweaver/internal/model"
)

// Formatter assembles the structured illustration prompt from an approved
// plan and draft. It is deterministic: no model calls, identical inputs
// yield a byte-identical rendered prompt.
type Formatter struct {
	logger *zap.Logger
}

func NewFormatter(logger *zap.Logger) *Formatter {
	return &Formatter{logger: logger.Named("Formatter")}
}

// themeTones maps plan themes onto the mood slot. Unknown themes fall back
// to the default tone.
var themeTones = map[string]string{
	"courage":           "brave and uplifting",
	"friendship":        "warm and companionable",
	"kindness":          "tender and gentle",
	"curiosity":         "bright and wondering",
	"sharing":           "generous and cozy",
	"teamwork":          "lively and cooperative",
	"honesty":           "calm and sincere",
	"perseverance":      "determined and hopeful",
	"responsibility":    "steady and proud",
	"empathy":           "soft and caring",
	"self-belief":       "confident and glowing",
	"bedtime wonder":    "dreamy and soothing",
	"trying new things": "playful and encouraging",
}

const defaultTone = "warm and joyful"

// Format builds the image prompt. Missing protagonist is an
// internal-consistency fault, not a user error; the planner guarantees one.
func (f *Formatter) Format(plan *model.StoryPlan, draft *model.NarrativeDraft) (*model.ImagePrompt, error) {
	protagonist, ok := plan.Protagonist()
	if !ok {
		return nil, model.ErrPlanMissingProtagonist
	}

	motif := plan.Setting.CulturalMotif
	if motif == "" {
		motif = plan.Setting.VisualMotif
	}

	interest := "playful discovery"
	if len(plan.PersonalizationElements) > 0 {
		interest = plan.PersonalizationElements[0]
	}

	companion := "no companions, adventuring alone"
	if companions := plan.Companions(); len(companions) > 0 {
		companion = companions[0].VisualAppearance
	}

	prompt := &model.ImagePrompt{
		AgeGenderDescriptor: protagonist.VisualAppearance,
		CulturalMotif:       motif,
		InterestMotif:       interest,
		CompanionDescriptor: companion,
		EmotionalTone:       toneForTheme(plan.Theme),
		Scene:               sceneFromDraft(draft.Text),
	}
	if err := prompt.Validate(); err != nil {
		f.logger.Error("Formatter produced an incomplete image prompt", zap.Error(err))
		return nil, err
	}
	return prompt, nil
}

func toneForTheme(theme string) string {
	if tone, ok := themeTones[strings.ToLower(theme)]; ok {
		return tone
	}
	return defaultTone
}

// sceneFromDraft takes the opening sentence of the approved draft as the
// scene description, capped so the rendered prompt stays compact.
func sceneFromDraft(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "standing at the start of an adventure"
	}
	end := len(text)
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			end = i
			break
		}
	}
	scene := strings.TrimSpace(text[:end])
	const maxSceneLen = 140
	if len(scene) > maxSceneLen {
		cut := strings.LastIndex(scene[:maxSceneLen], " ")
		if cut <= 0 {
			cut = maxSceneLen
		}
		scene = scene[:cut]
	}
	return scene
}
