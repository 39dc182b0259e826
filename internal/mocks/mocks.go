// Package mocks holds hand-written testify mocks for the pipeline's
// collaborator interfaces.
package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"taleweaver/internal/model"
	"taleweaver/internal/service"
)

// TextGenerator mocks service.TextGenerator.
type TextGenerator struct {
	mock.Mock
}

func (m *TextGenerator) GenerateText(ctx context.Context, systemPrompt string, userInput string, params service.GenerationParams) (string, service.UsageInfo, error) {
	args := m.Called(ctx, systemPrompt, userInput, params)
	return args.String(0), args.Get(1).(service.UsageInfo), args.Error(2)
}

// ImageGenerator mocks service.ImageGenerator.
type ImageGenerator struct {
	mock.Mock
}

func (m *ImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

// ProfileRepository mocks repository.ProfileRepository.
type ProfileRepository struct {
	mock.Mock
}

func (m *ProfileRepository) GetByID(ctx context.Context, id string) (*model.UserProfile, error) {
	args := m.Called(ctx, id)
	if profile, ok := args.Get(0).(*model.UserProfile); ok {
		return profile, args.Error(1)
	}
	return nil, args.Error(1)
}

// HistoryRepository mocks repository.HistoryRepository.
type HistoryRepository struct {
	mock.Mock
}

func (m *HistoryRepository) Append(ctx context.Context, story *model.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}

func (m *HistoryRepository) ListByOwner(ctx context.Context, ownerID string) ([]model.Story, error) {
	args := m.Called(ctx, ownerID)
	if stories, ok := args.Get(0).([]model.Story); ok {
		return stories, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *HistoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Story, error) {
	args := m.Called(ctx, id)
	if story, ok := args.Get(0).(*model.Story); ok {
		return story, args.Error(1)
	}
	return nil, args.Error(1)
}

// PlanCache mocks repository.PlanCache.
type PlanCache struct {
	mock.Mock
}

func (m *PlanCache) Get(ctx context.Context, topic string) (*model.PlanSkeleton, error) {
	args := m.Called(ctx, topic)
	if skeleton, ok := args.Get(0).(*model.PlanSkeleton); ok {
		return skeleton, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *PlanCache) Set(ctx context.Context, topic string, skeleton model.PlanSkeleton) error {
	args := m.Called(ctx, topic, skeleton)
	return args.Error(0)
}

// EventPublisher mocks pipeline.EventPublisher.
type EventPublisher struct {
	mock.Mock
}

func (m *EventPublisher) PublishStoryCreated(ctx context.Context, story *model.Story) error {
	args := m.Called(ctx, story)
	return args.Error(0)
}
