package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"taleweaver/internal/model"
	"taleweaver/internal/pipeline"
	"taleweaver/internal/repository"
)

// StoryRunner is the pipeline surface the HTTP layer depends on.
type StoryRunner interface {
	Run(ctx context.Context, req pipeline.Request) (*model.Story, error)
}

// APIError is the uniform error body of the service.
type APIError struct {
	Message string `json:"message"`
}

// GenerateStoryRequest is the body of POST /stories/generate.
type GenerateStoryRequest struct {
	UserID   string `json:"userId" binding:"required"`
	Prompt   string `json:"prompt" binding:"required"`
	Language string `json:"language"`
	Theme    string `json:"theme"`
}

// StoryHandler exposes the story pipeline and history over HTTP.
type StoryHandler struct {
	runner  StoryRunner
	history repository.HistoryRepository
	logger  *zap.Logger
}

func NewStoryHandler(runner StoryRunner, history repository.HistoryRepository, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{
		runner:  runner,
		history: history,
		logger:  logger.Named("StoryHandler"),
	}
}

// RegisterRoutes attaches all story routes to the router.
func (h *StoryHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/healthz", h.health)

	stories := router.Group("/stories")
	{
		stories.POST("/generate", h.generateStory)
		stories.GET("", h.listStories)
		stories.GET("/:id", h.getStory)
	}
}

func (h *StoryHandler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *StoryHandler) generateStory(c *gin.Context) {
	var req GenerateStoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "userId and prompt are required"})
		return
	}

	story, err := h.runner.Run(c.Request.Context(), pipeline.Request{
		ProfileID: req.UserID,
		Prompt:    req.Prompt,
		Language:  req.Language,
		Theme:     req.Theme,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, story)
}

func (h *StoryHandler) listStories(c *gin.Context) {
	userID := c.Query("userId")
	if userID == "" {
		c.JSON(http.StatusBadRequest, APIError{Message: "userId query parameter is required"})
		return
	}

	stories, err := h.history.ListByOwner(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	if stories == nil {
		stories = []model.Story{}
	}
	c.JSON(http.StatusOK, stories)
}

func (h *StoryHandler) getStory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, APIError{Message: "invalid story id"})
		return
	}

	story, err := h.history.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, story)
}

// respondError maps domain errors onto HTTP statuses. Unknown errors are
// logged in full and answered with a generic 500 body.
func (h *StoryHandler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, APIError{Message: "profile not found"})
	case errors.Is(err, model.ErrStoryNotFound):
		c.JSON(http.StatusNotFound, APIError{Message: "story not found"})
	case errors.Is(err, model.ErrEmptyPrompt), errors.Is(err, model.ErrPromptTooLong), errors.Is(err, model.ErrBadRequest):
		c.JSON(http.StatusBadRequest, APIError{Message: err.Error()})
	case errors.Is(err, model.ErrSafetyValidation):
		c.JSON(http.StatusUnprocessableEntity, APIError{Message: "the generated story did not pass safety checks; please try a different prompt"})
	case errors.Is(err, model.ErrGenerationTimeout), errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, APIError{Message: "story generation timed out"})
	case errors.Is(err, model.ErrGenerationFailed):
		c.JSON(http.StatusBadGateway, APIError{Message: "story generation is temporarily unavailable"})
	default:
		h.logger.Error("Unhandled error in HTTP handler", zap.Error(err))
		c.JSON(http.StatusInternalServerError, APIError{Message: "internal server error"})
	}
}
