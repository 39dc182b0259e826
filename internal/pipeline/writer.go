package pipeline

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"taleweaver/internal/model"
	"taleweaver/internal/service"
)

// Writer expands a story plan into narrative prose through the text backend.
// One call is one attempt; retry and revision policy live in the pipeline.
type Writer struct {
	textGen service.TextGenerator
	logger  *zap.Logger
}

func NewWriter(textGen service.TextGenerator, logger *zap.Logger) *Writer {
	return &Writer{
		textGen: textGen,
		logger:  logger.Named("Writer"),
	}
}

// vocabularyGuidelines per reading level, sent verbatim in the system prompt.
var vocabularyGuidelines = map[model.ReadingLevel]string{
	model.ReadingLevelSimple: "Use very short sentences (under 10 words). Use only common, everyday words. " +
		"Repeat key words so young listeners can follow. No subordinate clauses.",
	model.ReadingLevelMedium: "Use clear sentences of moderate length (10-15 words). Introduce a few new words " +
		"and explain them naturally in the story. Simple dialogue is welcome.",
	model.ReadingLevelAdvanced: "Use varied sentence structure and richer vocabulary. Light figurative language " +
		"is fine. Keep the plot easy to follow even when the language is ambitious.",
}

// motherTongueHints lists a handful of warm everyday words per language that
// the writer may sprinkle in, always with inline translation.
var motherTongueHints = map[string][]string{
	"hindi":   {"maa (mother)", "dost (friend)", "chalo (let's go)", "shabash (well done)"},
	"marathi": {"aai (mother)", "mitra (friend)", "chala (let's go)", "chhan (lovely)"},
	"punjabi": {"bebe (mother)", "yaar (friend)", "challo (let's go)", "shabash (well done)"},
	"tamil":   {"amma (mother)", "nanban (friend)", "vaa (come)", "super (great)"},
	"bengali": {"maa (mother)", "bondhu (friend)", "cholo (let's go)", "darun (wonderful)"},
}

const writerTemperature = 0.8

// Write performs one generation attempt. revisionNotes from a prior
// validation report are folded into the instructions so the retry actually
// addresses what failed.
func (w *Writer) Write(ctx context.Context, plan *model.StoryPlan, pctx *model.PersonalizationContext, attempt int, revisionNotes []string) (*model.NarrativeDraft, error) {
	system := w.systemPrompt(plan, pctx)
	user := w.userPrompt(plan, pctx, revisionNotes)

	temp := float64(writerTemperature)
	maxTokens := plan.TargetWordCount * 3

	text, usage, err := w.textGen.GenerateText(ctx, system, user, service.GenerationParams{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, err
	}

	w.logger.Debug("Draft generated",
		zap.Int("attempt", attempt),
		zap.Int("promptTokens", usage.PromptTokens),
		zap.Int("completionTokens", usage.CompletionTokens),
	)

	return &model.NarrativeDraft{
		Text:         strings.TrimSpace(text),
		ReadingLevel: plan.ReadingLevel,
		Language:     plan.Language,
		Attempt:      attempt,
	}, nil
}

func (w *Writer) systemPrompt(plan *model.StoryPlan, pctx *model.PersonalizationContext) string {
	var b strings.Builder
	b.WriteString("You are a gifted children's storyteller. Write one complete story in ")
	b.WriteString(plan.Language)
	b.WriteString(fmt.Sprintf(" for a %d-year-old reader.\n\n", pctx.Age))
	b.WriteString("Language guidelines: ")
	b.WriteString(vocabularyGuidelines[plan.ReadingLevel])
	b.WriteString("\n\nRules:\n")
	b.WriteString(fmt.Sprintf("- Aim for about %d words.\n", plan.TargetWordCount))
	b.WriteString("- The story must be gentle, safe and age-appropriate: no violence, no fear beyond mild suspense, no adult topics.\n")
	b.WriteString("- The protagonist must appear by name throughout the story.\n")
	b.WriteString("- Weave the listed personal interests into the plot naturally; never as a checklist.\n")
	b.WriteString("- End on a warm, reassuring note.\n")
	b.WriteString("- Return only the story text, no title and no commentary.\n")

	if hints, ok := motherTongueHints[strings.ToLower(pctx.MotherTongue)]; ok && !strings.EqualFold(pctx.MotherTongue, plan.Language) {
		b.WriteString(fmt.Sprintf("- You may warmly use a few %s words such as %s.\n",
			pctx.MotherTongue, strings.Join(hints, ", ")))
	}
	return b.String()
}

func (w *Writer) userPrompt(plan *model.StoryPlan, pctx *model.PersonalizationContext, revisionNotes []string) string {
	var b strings.Builder
	b.WriteString("Story subject: ")
	b.WriteString(plan.Subject)
	b.WriteString("\nTheme: ")
	b.WriteString(plan.Theme)
	b.WriteString("\n\nCharacters:\n")
	for _, c := range plan.Characters {
		b.WriteString(fmt.Sprintf("- %s (%s): %s\n", c.Name, c.Role, c.Description))
	}
	b.WriteString("\nSetting: ")
	b.WriteString(plan.Setting.Description)
	if plan.Setting.CulturalMotif != "" {
		b.WriteString(fmt.Sprintf("\nInclude this setting detail in the story: %s. Treat it with warmth and respect, as part of everyday life.", plan.Setting.CulturalMotif))
	}
	b.WriteString("\n\nPersonal interests to weave in: ")
	b.WriteString(strings.Join(plan.PersonalizationElements, ", "))
	b.WriteString("\n")

	if len(revisionNotes) > 0 {
		b.WriteString("\nThe previous draft had problems. Fix all of the following in this version:\n")
		for _, note := range revisionNotes {
			b.WriteString("- ")
			b.WriteString(note)
			b.WriteString("\n")
		}
	}
	return b.String()
}
