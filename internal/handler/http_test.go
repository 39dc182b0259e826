package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taleweaver/internal/mocks"
	"taleweaver/internal/model"
	"taleweaver/internal/pipeline"
)

type runnerMock struct {
	mock.Mock
}

func (m *runnerMock) Run(ctx context.Context, req pipeline.Request) (*model.Story, error) {
	args := m.Called(ctx, req)
	if story, ok := args.Get(0).(*model.Story); ok {
		return story, args.Error(1)
	}
	return nil, args.Error(1)
}

func setupRouter(runner StoryRunner, history *mocks.HistoryRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewStoryHandler(runner, history, zap.NewNop()).RegisterRoutes(router)
	return router
}

func performJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func sampleStory() *model.Story {
	return &model.Story{
		ID:      uuid.New(),
		OwnerID: "asha@example.com",
		Title:   "Asha: A day by the sea",
		Text:    "Asha smiled.",
	}
}

func TestGenerateStory_Success(t *testing.T) {
	runner := new(runnerMock)
	runner.On("Run", mock.Anything, pipeline.Request{
		ProfileID: "asha@example.com",
		Prompt:    "a day by the sea",
	}).Return(sampleStory(), nil)

	router := setupRouter(runner, new(mocks.HistoryRepository))
	w := performJSON(router, http.MethodPost, "/stories/generate", gin.H{
		"userId": "asha@example.com",
		"prompt": "a day by the sea",
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	var story model.Story
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &story))
	assert.Equal(t, "asha@example.com", story.OwnerID)
	runner.AssertExpectations(t)
}

func TestGenerateStory_MissingFields(t *testing.T) {
	router := setupRouter(new(runnerMock), new(mocks.HistoryRepository))

	w := performJSON(router, http.MethodPost, "/stories/generate", gin.H{"prompt": "hi"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = performJSON(router, http.MethodPost, "/stories/generate", gin.H{"userId": "a@b.c"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerateStory_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"profile not found", model.ErrProfileNotFound, http.StatusNotFound},
		{"prompt too long", model.ErrPromptTooLong, http.StatusBadRequest},
		{"safety", model.ErrSafetyValidation, http.StatusUnprocessableEntity},
		{"timeout", model.ErrGenerationTimeout, http.StatusGatewayTimeout},
		{"generation failed", model.ErrGenerationFailed, http.StatusBadGateway},
		{"unknown", assert.AnError, http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			runner := new(runnerMock)
			runner.On("Run", mock.Anything, mock.Anything).Return(nil, tc.err)

			router := setupRouter(runner, new(mocks.HistoryRepository))
			w := performJSON(router, http.MethodPost, "/stories/generate", gin.H{
				"userId": "a@b.c",
				"prompt": "hello",
			})
			assert.Equal(t, tc.code, w.Code)

			var apiErr APIError
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
			assert.NotEmpty(t, apiErr.Message)
		})
	}
}

func TestListStories_RequiresUserID(t *testing.T) {
	router := setupRouter(new(runnerMock), new(mocks.HistoryRepository))
	w := performJSON(router, http.MethodGet, "/stories", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListStories_ReturnsOwnerStories(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("ListByOwner", mock.Anything, "asha@example.com").
		Return([]model.Story{*sampleStory(), *sampleStory()}, nil)

	router := setupRouter(new(runnerMock), history)
	w := performJSON(router, http.MethodGet, "/stories?userId=asha%40example.com", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var stories []model.Story
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stories))
	assert.Len(t, stories, 2)
}

func TestListStories_EmptyHistoryIsEmptyArray(t *testing.T) {
	history := new(mocks.HistoryRepository)
	history.On("ListByOwner", mock.Anything, "new@example.com").Return(nil, nil)

	router := setupRouter(new(runnerMock), history)
	w := performJSON(router, http.MethodGet, "/stories?userId=new%40example.com", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestGetStory_InvalidID(t *testing.T) {
	router := setupRouter(new(runnerMock), new(mocks.HistoryRepository))
	w := performJSON(router, http.MethodGet, "/stories/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetStory_NotFound(t *testing.T) {
	id := uuid.New()
	history := new(mocks.HistoryRepository)
	history.On("GetByID", mock.Anything, id).Return(nil, model.ErrStoryNotFound)

	router := setupRouter(new(runnerMock), history)
	w := performJSON(router, http.MethodGet, "/stories/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthz(t *testing.T) {
	router := setupRouter(new(runnerMock), new(mocks.HistoryRepository))
	w := performJSON(router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
