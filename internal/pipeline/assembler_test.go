package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taleweaver/internal/mocks"
	"taleweaver/internal/model"
)

const placeholderURL = "/static/placeholder_story.png"

func assembleInput(t *testing.T, imageURL string) AssembleInput {
	t.Helper()
	pctx := testContext()
	plan := testPlanFor(t, &pctx)
	return AssembleInput{
		OwnerID:  pctx.ProfileID,
		Prompt:   "a day of painting by the sea",
		Plan:     plan,
		Draft:    draftWith(cleanStoryText),
		ImageURL: imageURL,
	}
}

func TestAssembler_BuildsCompleteStory(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("Append", mock.Anything, mock.Anything).Return(nil)

	assembler := NewAssembler(history, nil, placeholderURL, zap.NewNop())
	story := assembler.Assemble(context.Background(), assembleInput(t, "http://images/story.png"))

	assert.Equal(t, "asha@example.com", story.OwnerID)
	assert.Equal(t, cleanStoryText, story.Text)
	assert.Equal(t, "http://images/story.png", story.ImageURL)
	assert.False(t, story.Degraded)
	assert.Empty(t, story.Warning)
	assert.Greater(t, story.WordCount, 0)
	assert.GreaterOrEqual(t, story.ReadingTimeMin, 1)
	assert.Contains(t, story.Title, "Asha")
	history.AssertExpectations(t)
}

func TestAssembler_EmptyImageMeansPlaceholderAndDegraded(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("Append", mock.Anything, mock.Anything).Return(nil)

	assembler := NewAssembler(history, nil, placeholderURL, zap.NewNop())
	story := assembler.Assemble(context.Background(), assembleInput(t, ""))

	assert.True(t, story.Degraded)
	assert.Equal(t, placeholderURL, story.ImageURL)
	assert.Equal(t, cleanStoryText, story.Text)
}

func TestAssembler_HistoryFailureBecomesWarning(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("Append", mock.Anything, mock.Anything).Return(model.ErrHistoryWrite)

	assembler := NewAssembler(history, nil, placeholderURL, zap.NewNop())
	story := assembler.Assemble(context.Background(), assembleInput(t, "http://images/story.png"))

	require.NotNil(t, story)
	assert.Contains(t, story.Warning, "history")
	// The append was retried before giving up.
	history.AssertNumberOfCalls(t, "Append", 2)
}

func TestAssembler_HistoryFailureKeepsExistingWarning(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("Append", mock.Anything, mock.Anything).Return(model.ErrHistoryWrite)

	in := assembleInput(t, "http://images/story.png")
	in.Warning = "personalization incomplete"

	assembler := NewAssembler(history, nil, placeholderURL, zap.NewNop())
	story := assembler.Assemble(context.Background(), in)

	assert.Contains(t, story.Warning, "personalization incomplete")
	assert.Contains(t, story.Warning, "history")
}

func TestAssembler_PublishesEventAfterAppend(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("Append", mock.Anything, mock.Anything).Return(nil)
	events := new(mocks.EventPublisher)
	events.On("PublishStoryCreated", mock.Anything, mock.Anything).Return(nil)

	assembler := NewAssembler(history, events, placeholderURL, zap.NewNop())
	assembler.Assemble(context.Background(), assembleInput(t, "http://images/story.png"))

	events.AssertExpectations(t)
}

func TestAssembler_NoEventWhenAppendFailed(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("Append", mock.Anything, mock.Anything).Return(model.ErrHistoryWrite)
	events := new(mocks.EventPublisher)

	assembler := NewAssembler(history, events, placeholderURL, zap.NewNop())
	assembler.Assemble(context.Background(), assembleInput(t, "http://images/story.png"))

	events.AssertNotCalled(t, "PublishStoryCreated", mock.Anything, mock.Anything)
}

func TestAssembler_PublishFailureDoesNotAffectStory(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("Append", mock.Anything, mock.Anything).Return(nil)
	events := new(mocks.EventPublisher)
	events.On("PublishStoryCreated", mock.Anything, mock.Anything).Return(assert.AnError)

	assembler := NewAssembler(history, events, placeholderURL, zap.NewNop())
	story := assembler.Assemble(context.Background(), assembleInput(t, "http://images/story.png"))

	assert.Empty(t, story.Warning)
}
