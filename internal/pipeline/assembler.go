package pipeline

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taleweaver/internal/model"
	"taleweaver/internal/repository"
)

// EventPublisher announces completed stories to interested consumers.
// Publishing is best-effort; a broker outage never fails a request.
type EventPublisher interface {
	PublishStoryCreated(ctx context.Context, story *model.Story) error
}

// Assembler builds the final Story from the pipeline outputs, appends it to
// history and announces it. History failure degrades to a warning on the
// returned story; the generated result is never thrown away at this stage.
type Assembler struct {
	history        repository.HistoryRepository
	events         EventPublisher
	placeholderURL string
	appendAttempts int
	logger         *zap.Logger
}

func NewAssembler(history repository.HistoryRepository, events EventPublisher, placeholderURL string, logger *zap.Logger) *Assembler {
	return &Assembler{
		history:        history,
		events:         events,
		placeholderURL: placeholderURL,
		appendAttempts: 2,
		logger:         logger.Named("Assembler"),
	}
}

// AssembleInput carries everything the final story is built from. ImageURL
// empty means illustration was exhausted and the placeholder applies.
type AssembleInput struct {
	OwnerID  string
	Prompt   string
	Plan     *model.StoryPlan
	Draft    *model.NarrativeDraft
	ImageURL string
	Warning  string
}

// Assemble builds, persists and announces the story. The returned story is
// complete even when persistence failed; the failure is folded into the
// Warning field.
func (a *Assembler) Assemble(ctx context.Context, in AssembleInput) *model.Story {
	wordCount := in.Draft.WordCount()

	story := &model.Story{
		ID:             uuid.New(),
		OwnerID:        in.OwnerID,
		Prompt:         in.Prompt,
		Title:          titleFor(in.Plan),
		Text:           in.Draft.Text,
		ImageURL:       in.ImageURL,
		Theme:          in.Plan.Theme,
		Language:       in.Plan.Language,
		ReadingLevel:   in.Plan.ReadingLevel,
		WordCount:      wordCount,
		ReadingTimeMin: model.EstimateReadingTime(wordCount, in.Plan.ReadingLevel),
		Warning:        in.Warning,
		CreatedAt:      time.Now().UTC(),
	}
	if story.ImageURL == "" {
		story.ImageURL = a.placeholderURL
		story.Degraded = true
	}

	if err := a.appendWithRetry(ctx, story); err != nil {
		a.logger.Error("Story could not be saved to history",
			zap.String("storyID", story.ID.String()),
			zap.String("ownerID", story.OwnerID),
			zap.Error(err),
		)
		story.Warning = joinWarnings(story.Warning, "the story could not be saved to your history")
		return story
	}

	if a.events != nil {
		if err := a.events.PublishStoryCreated(ctx, story); err != nil {
			a.logger.Warn("Failed to publish story event",
				zap.String("storyID", story.ID.String()),
				zap.Error(err),
			)
		}
	}
	return story
}

func (a *Assembler) appendWithRetry(ctx context.Context, story *model.Story) error {
	var lastErr error
	for attempt := 1; attempt <= a.appendAttempts; attempt++ {
		lastErr = a.history.Append(ctx, story)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		a.logger.Warn("History append failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
	}
	return lastErr
}

func joinWarnings(existing, added string) string {
	if existing == "" {
		return added
	}
	return existing + "; " + added
}

// titleFor derives a short display title from the plan: the protagonist's
// name joined with the capped prompt subject.
func titleFor(plan *model.StoryPlan) string {
	subject := plan.Subject
	const maxSubjectLen = 60
	if len(subject) > maxSubjectLen {
		cut := strings.LastIndex(subject[:maxSubjectLen], " ")
		if cut <= 0 {
			cut = maxSubjectLen
		}
		subject = subject[:cut]
	}
	subject = capitalizeFirst(subject)

	if protagonist, ok := plan.Protagonist(); ok {
		return protagonist.Name + ": " + subject
	}
	return subject
}

func capitalizeFirst(s string) string {
	for i, r := range s {
		return string(unicode.ToUpper(r)) + s[i+len(string(r)):]
	}
	return s
}
