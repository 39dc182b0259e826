package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taleweaver/internal/mocks"
	"taleweaver/internal/model"
	"taleweaver/internal/repository"
)

func testPlanner() *Planner {
	return NewPlanner(nil, 2000, zap.NewNop())
}

func testContext() model.PersonalizationContext {
	return BuildContext(&model.UserProfile{
		ID:            "asha@example.com",
		CharacterName: "Asha",
		Gender:        model.GenderFemale,
		Age:           5,
		City:          "Mumbai",
		MotherTongue:  "hindi",
		ReadingLevel:  model.ReadingLevelSimple,
		Language:      "english",
		FavoriteToy:   "teddy",
		Interests:     []string{"painting"},
	}, Overrides{})
}

func TestPlanner_EmptyPrompt(t *testing.T) {
	pctx := testContext()
	_, err := testPlanner().Plan(context.Background(), "   ", &pctx)
	assert.ErrorIs(t, err, model.ErrEmptyPrompt)
}

func TestPlanner_PromptTooLong(t *testing.T) {
	pctx := testContext()
	_, err := testPlanner().Plan(context.Background(), strings.Repeat("a", 2001), &pctx)
	assert.ErrorIs(t, err, model.ErrPromptTooLong)
}

func TestPlanner_ExactlyOneProtagonist(t *testing.T) {
	pctx := testContext()
	plan, err := testPlanner().Plan(context.Background(), "a day at the beach", &pctx)
	require.NoError(t, err)

	count := 0
	for _, c := range plan.Characters {
		if c.Role == model.RoleProtagonist {
			count++
		}
	}
	assert.Equal(t, 1, count)

	protagonist, ok := plan.Protagonist()
	require.True(t, ok)
	assert.Equal(t, "Asha", protagonist.Name)
}

func TestPlanner_ProtagonistDescriptorMatchesProfile(t *testing.T) {
	// A five-year-old girl must render as a young-child girl, never as a
	// generic child or a boy.
	pctx := testContext()
	plan, err := testPlanner().Plan(context.Background(), "a trip to the stars", &pctx)
	require.NoError(t, err)

	protagonist, ok := plan.Protagonist()
	require.True(t, ok)
	assert.Contains(t, protagonist.VisualAppearance, "young girl")
	assert.NotContains(t, protagonist.VisualAppearance, "boy")
}

func TestPlanner_GenderDescriptorsExhaustive(t *testing.T) {
	tests := []struct {
		gender model.Gender
		want   string
	}{
		{model.GenderMale, "boy"},
		{model.GenderFemale, "girl"},
		{model.GenderOther, "child"},
	}
	for _, tc := range tests {
		pctx := testContext()
		pctx.Gender = tc.gender
		plan, err := testPlanner().Plan(context.Background(), "the lost kite", &pctx)
		require.NoError(t, err)

		protagonist, _ := plan.Protagonist()
		assert.Contains(t, protagonist.Description, tc.want, "gender %s", tc.gender)
	}
}

func TestPlanner_CompanionsFromFavorites(t *testing.T) {
	pctx := testContext()
	pctx.FavoriteAnimal = "elephant"
	plan, err := testPlanner().Plan(context.Background(), "a rainy day", &pctx)
	require.NoError(t, err)

	companions := plan.Companions()
	require.Len(t, companions, 2) // toy + animal
	assert.Equal(t, "teddy", companions[0].Name)
	assert.Contains(t, companions[1].Description, "elephant")
}

func TestPlanner_CulturalMotif_KnownCity(t *testing.T) {
	pctx := testContext()
	plan, err := testPlanner().Plan(context.Background(), "a walk by the sea", &pctx)
	require.NoError(t, err)

	assert.Equal(t, "the Gateway of India", plan.Setting.CulturalMotif)
	assert.Contains(t, plan.Setting.Description, "the Gateway of India")
}

func TestPlanner_CulturalMotif_UnknownCityNeutralFallback(t *testing.T) {
	pctx := testContext()
	pctx.City = "Smallville"
	pctx.MotherTongue = ""
	plan, err := testPlanner().Plan(context.Background(), "a walk by the sea", &pctx)
	require.NoError(t, err)

	// Unknown keys never invent a landmark; the fallback is built from the
	// profile value itself.
	assert.Contains(t, plan.Setting.CulturalMotif, "Smallville")
}

func TestPlanner_NoCulturalContextNoMotif(t *testing.T) {
	pctx := testContext()
	pctx.City = ""
	pctx.MotherTongue = ""
	plan, err := testPlanner().Plan(context.Background(), "a walk by the sea", &pctx)
	require.NoError(t, err)

	assert.Empty(t, plan.Setting.CulturalMotif)
	assert.NotEmpty(t, plan.Setting.VisualMotif)
}

func TestPlanner_ThemeOverrideWins(t *testing.T) {
	pctx := testContext()
	pctx.Theme = "honesty"
	plan, err := testPlanner().Plan(context.Background(), "the missing coin", &pctx)
	require.NoError(t, err)
	assert.Equal(t, "honesty", plan.Theme)
}

func TestPlanner_Deterministic(t *testing.T) {
	pctx := testContext()
	first, err := testPlanner().Plan(context.Background(), "the brave little boat", &pctx)
	require.NoError(t, err)
	second, err := testPlanner().Plan(context.Background(), "the brave little boat", &pctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPlanner_PersonalizationElementsFallBackToFavorites(t *testing.T) {
	pctx := testContext()
	pctx.Interests = nil
	plan, err := testPlanner().Plan(context.Background(), "a quiet evening", &pctx)
	require.NoError(t, err)

	require.NotEmpty(t, plan.PersonalizationElements)
	assert.Equal(t, "teddy", plan.PersonalizationElements[0])
}

func TestPlanner_CacheHitSkipsRecomputation(t *testing.T) {
	cache := new(mocks.PlanCache)
	cache.On("Get", mock.Anything, "young child/the brave little boat").
		Return(&model.PlanSkeleton{Theme: "cached theme", VisualMotif: "cached motif"}, nil)

	planner := NewPlanner(cache, 2000, zap.NewNop())
	pctx := testContext()
	pctx.Theme = ""
	plan, err := planner.Plan(context.Background(), "The  Brave   Little Boat", &pctx)
	require.NoError(t, err)

	assert.Equal(t, "cached theme", plan.Theme)
	assert.Equal(t, "cached motif", plan.Setting.VisualMotif)
	cache.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything)
}

func TestPlanner_CacheMissComputesAndStores(t *testing.T) {
	cache := new(mocks.PlanCache)
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, repository.ErrCacheMiss)
	cache.On("Set", mock.Anything, "young child/the brave little boat", mock.Anything).Return(nil)

	planner := NewPlanner(cache, 2000, zap.NewNop())
	pctx := testContext()
	_, err := planner.Plan(context.Background(), "the brave little boat", &pctx)
	require.NoError(t, err)

	cache.AssertExpectations(t)
}

type memoryPlanCache struct {
	entries map[string]model.PlanSkeleton
}

func (c *memoryPlanCache) Get(_ context.Context, topic string) (*model.PlanSkeleton, error) {
	if s, ok := c.entries[topic]; ok {
		return &s, nil
	}
	return nil, repository.ErrCacheMiss
}

func (c *memoryPlanCache) Set(_ context.Context, topic string, skeleton model.PlanSkeleton) error {
	c.entries[topic] = skeleton
	return nil
}

func TestPlanner_CacheDoesNotShareThemesAcrossAgeBands(t *testing.T) {
	cache := &memoryPlanCache{entries: map[string]model.PlanSkeleton{}}
	planner := NewPlanner(cache, 2000, zap.NewNop())

	toddler := testContext()
	toddler.Age = 2
	toddler.AgeBand = model.AgeBandFor(2)
	first, err := planner.Plan(context.Background(), "a sleepy star", &toddler)
	require.NoError(t, err)
	assert.Contains(t, defaultThemes[model.AgeBandToddler], first.Theme)

	preTeen := testContext()
	preTeen.Age = 12
	preTeen.AgeBand = model.AgeBandFor(12)
	second, err := planner.Plan(context.Background(), "a sleepy star", &preTeen)
	require.NoError(t, err)
	assert.Contains(t, defaultThemes[model.AgeBandPreTeen], second.Theme)
	assert.NotContains(t, defaultThemes[model.AgeBandToddler], second.Theme)

	assert.Len(t, cache.entries, 2)
}

func TestPlanner_CacheErrorDoesNotFailRequest(t *testing.T) {
	cache := new(mocks.PlanCache)
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, assert.AnError)
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything).Return(assert.AnError)

	planner := NewPlanner(cache, 2000, zap.NewNop())
	pctx := testContext()
	plan, err := planner.Plan(context.Background(), "the brave little boat", &pctx)
	require.NoError(t, err)
	assert.NotNil(t, plan)
}

func TestTopicKey(t *testing.T) {
	assert.Equal(t, "a day at the beach", TopicKey("  A  Day   at THE beach "))
	long := strings.Repeat("word ", 40)
	assert.LessOrEqual(t, len(TopicKey(long)), 64)
}
