package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"taleweaver/internal/model"
	"taleweaver/internal/repository"
	"taleweaver/internal/service"
)

// State names a pipeline stage. Transitions are strictly forward; a failed
// stage moves to StateFailed and the run stops at the stage boundary.
type State string

const (
	StateResolvingProfile State = "resolving_profile"
	StatePlanning         State = "planning"
	StateWriting          State = "writing"
	StateValidating       State = "validating"
	StateFormatting       State = "formatting"
	StateIllustrating     State = "illustrating"
	StateAssembling       State = "assembling"
	StateDone             State = "done"
	StateFailed           State = "failed"
)

// Options bound the pipeline's retry behavior.
type Options struct {
	// MaxRevisions is how many extra writer attempts a warning-class
	// validation failure may trigger. 0 disables revision retries.
	MaxRevisions int
	// TextMaxAttempts bounds transport-level retries per writer call.
	TextMaxAttempts int
	// TextBaseRetryDelay seeds the exponential backoff between text retries.
	TextBaseRetryDelay time.Duration
	// TextTimeout caps one text generation call.
	TextTimeout time.Duration
	// ImageMaxAttempts bounds illustration retries before degrading.
	ImageMaxAttempts int
	// ImageBaseRetryDelay seeds the backoff between illustration retries.
	ImageBaseRetryDelay time.Duration
}

// Request is one story generation request.
type Request struct {
	ProfileID string
	Prompt    string
	// Language and Theme override the profile defaults when set.
	Language string
	Theme    string
}

// Pipeline runs the full generation flow: profile context, plan, bounded
// write/validate loop, illustration and assembly.
type Pipeline struct {
	profiles  repository.ProfileRepository
	imageGen  service.ImageGenerator
	planner   *Planner
	writer    *Writer
	validator *Validator
	formatter *Formatter
	assembler *Assembler
	opts      Options
	logger    *zap.Logger
}

func New(
	profiles repository.ProfileRepository,
	imageGen service.ImageGenerator,
	planner *Planner,
	writer *Writer,
	validator *Validator,
	formatter *Formatter,
	assembler *Assembler,
	opts Options,
	logger *zap.Logger,
) *Pipeline {
	if opts.TextMaxAttempts < 1 {
		opts.TextMaxAttempts = 1
	}
	if opts.ImageMaxAttempts < 1 {
		opts.ImageMaxAttempts = 1
	}
	return &Pipeline{
		profiles:  profiles,
		imageGen:  imageGen,
		planner:   planner,
		writer:    writer,
		validator: validator,
		formatter: formatter,
		assembler: assembler,
		opts:      opts,
		logger:    logger.Named("Pipeline"),
	}
}

// Run executes the pipeline for one request. Fatal errors return (nil, err);
// degraded outcomes return a story with Degraded or Warning set.
func (p *Pipeline) Run(ctx context.Context, req Request) (*model.Story, error) {
	state := StateResolvingProfile
	p.logger.Info("Pipeline started",
		zap.String("profileID", req.ProfileID),
		zap.Int("promptChars", len(req.Prompt)),
	)

	// Profile resolution comes first so a missing profile costs no
	// generation call.
	profile, err := p.profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		return nil, p.fail(state, err)
	}
	pctx := BuildContext(profile, Overrides{Language: req.Language, Theme: req.Theme})

	state = StatePlanning
	if err := ctx.Err(); err != nil {
		return nil, p.fail(state, err)
	}
	planStart := time.Now()
	plan, err := p.planner.Plan(ctx, req.Prompt, &pctx)
	if err != nil {
		return nil, p.fail(state, err)
	}
	stageDuration.With(prometheus.Labels{"stage": "planning"}).Observe(time.Since(planStart).Seconds())

	draft, warning, err := p.writeAndValidate(ctx, plan, &pctx, &state)
	if err != nil {
		return nil, p.fail(state, err)
	}

	state = StateFormatting
	imgPrompt, err := p.formatter.Format(plan, draft)
	if err != nil {
		// The planner guarantees the invariants the formatter needs, so
		// this is an internal fault, not a user error.
		return nil, p.fail(state, fmt.Errorf("%w: %v", model.ErrInternalServer, err))
	}

	state = StateIllustrating
	imageURL, imgErr := p.illustrate(ctx, imgPrompt.Render())
	if imgErr != nil {
		if ctx.Err() != nil {
			return nil, p.fail(state, ctx.Err())
		}
		// Exhausted illustration degrades the story instead of failing it.
		p.logger.Warn("Illustration exhausted, delivering placeholder", zap.Error(imgErr))
		imageURL = ""
	}

	state = StateAssembling
	story := p.assembler.Assemble(ctx, AssembleInput{
		OwnerID:  pctx.ProfileID,
		Prompt:   req.Prompt,
		Plan:     plan,
		Draft:    draft,
		ImageURL: imageURL,
		Warning:  warning,
	})

	state = StateDone
	if story.Degraded {
		degradedTotal.Inc()
		runsTotal.With(prometheus.Labels{"status": "degraded"}).Inc()
	} else {
		runsTotal.With(prometheus.Labels{"status": "success"}).Inc()
	}
	revisionAttempts.Observe(float64(draft.Attempt))

	p.logger.Info("Pipeline finished",
		zap.String("state", string(state)),
		zap.String("storyID", story.ID.String()),
		zap.Int("attempts", draft.Attempt),
		zap.Bool("degraded", story.Degraded),
		zap.Bool("warning", story.Warning != ""),
	)
	return story, nil
}

// writeAndValidate runs the bounded revision loop: write a draft, grade it,
// feed the full report back as revision notes. Safety failures stop the loop
// immediately; exhausted warning-class failures let the last draft through
// with a warning.
func (p *Pipeline) writeAndValidate(ctx context.Context, plan *model.StoryPlan, pctx *model.PersonalizationContext, state *State) (*model.NarrativeDraft, string, error) {
	maxAttempts := p.opts.MaxRevisions + 1
	var draft *model.NarrativeDraft
	var report *model.ValidationReport
	var notes []string

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		*state = StateWriting
		if err := ctx.Err(); err != nil {
			return nil, "", err
		}

		writeStart := time.Now()
		var err error
		draft, err = p.writeWithRetry(ctx, plan, pctx, attempt, notes)
		if err != nil {
			return nil, "", err
		}
		stageDuration.With(prometheus.Labels{"stage": "writing"}).Observe(time.Since(writeStart).Seconds())

		*state = StateValidating
		report = p.validator.Review(draft, plan, pctx)
		for _, violation := range report.Violations {
			violationsTotal.With(prometheus.Labels{"category": string(violation.Category)}).Inc()
		}

		if report.SafetyFailed() {
			// Safety failures never re-prompt; the draft is discarded.
			return nil, "", fmt.Errorf("%w: attempt %d", model.ErrSafetyValidation, attempt)
		}
		if report.Passed() {
			return draft, "", nil
		}
		if attempt < maxAttempts {
			notes = revisionNotes(report)
			p.logger.Info("Scheduling revision",
				zap.Int("attempt", attempt),
				zap.Strings("notes", notes),
			)
		}
	}

	// Revisions exhausted on warning-class failures only: deliver the last
	// draft flagged, never silently.
	return draft, warningFromReport(report), nil
}

// writeWithRetry wraps one writer attempt with transport-level retries and a
// per-call timeout. Transient generation errors back off exponentially with
// jitter; anything else is returned as-is.
func (p *Pipeline) writeWithRetry(ctx context.Context, plan *model.StoryPlan, pctx *model.PersonalizationContext, attempt int, notes []string) (*model.NarrativeDraft, error) {
	var lastErr error
	for try := 1; try <= p.opts.TextMaxAttempts; try++ {
		draft, err := p.writeOnce(ctx, plan, pctx, attempt, notes)
		if err == nil {
			return draft, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, err
		}
		if !isTransient(err) {
			return nil, err
		}
		if try < p.opts.TextMaxAttempts {
			delay := backoffDelay(p.opts.TextBaseRetryDelay, try)
			p.logger.Warn("Text generation failed, retrying",
				zap.Int("try", try),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return nil, err
			}
		}
	}
	return nil, lastErr
}

// writeOnce runs a single writer call under the per-call timeout so each
// try's context is released as soon as the call returns.
func (p *Pipeline) writeOnce(ctx context.Context, plan *model.StoryPlan, pctx *model.PersonalizationContext, attempt int, notes []string) (*model.NarrativeDraft, error) {
	if p.opts.TextTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.TextTimeout)
		defer cancel()
	}
	return p.writer.Write(ctx, plan, pctx, attempt, notes)
}

// illustrate retries the image service with backoff. An empty result counts
// as a failed attempt. The caller decides what exhaustion means.
func (p *Pipeline) illustrate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for try := 1; try <= p.opts.ImageMaxAttempts; try++ {
		start := time.Now()
		url, err := p.imageGen.GenerateImage(ctx, prompt)
		stageDuration.With(prometheus.Labels{"stage": "illustrating"}).Observe(time.Since(start).Seconds())
		if err == nil {
			return url, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return "", err
		}
		if try < p.opts.ImageMaxAttempts {
			delay := backoffDelay(p.opts.ImageBaseRetryDelay, try)
			p.logger.Warn("Image generation failed, retrying",
				zap.Int("try", try),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			if err := sleepWithContext(ctx, delay); err != nil {
				return "", err
			}
		}
	}
	return "", lastErr
}

// isTransient reports whether a generation error is worth retrying at the
// transport level. Caller-correctable and validation errors are not.
func isTransient(err error) bool {
	return errors.Is(err, model.ErrGenerationFailed) || errors.Is(err, model.ErrGenerationTimeout)
}

// backoffDelay is base * 2^(try-1) with +/-10% jitter.
func backoffDelay(base time.Duration, try int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	delay := base << (try - 1)
	jitter := time.Duration(rand.Int63n(int64(delay)/5+1)) - delay/10
	return delay + jitter
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (p *Pipeline) fail(state State, err error) error {
	runsTotal.With(prometheus.Labels{"status": "failed"}).Inc()
	p.logger.Error("Pipeline failed",
		zap.String("state", string(state)),
		zap.Error(err),
	)
	return err
}

// revisionNotes flattens the full report into writer instructions so one
// revision can fix every problem at once.
func revisionNotes(report *model.ValidationReport) []string {
	var notes []string
	for _, v := range report.WarningViolations() {
		notes = append(notes, v.Detail)
	}
	return notes
}

func warningFromReport(report *model.ValidationReport) string {
	categories := report.FailedCategories()
	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, string(c))
	}
	return fmt.Sprintf("the story may be incompletely personalized (%s checks did not pass after revision)",
		strings.Join(names, ", "))
}
