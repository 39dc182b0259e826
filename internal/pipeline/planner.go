package pipeline

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"taleweaver/internal/model"
	"taleweaver/internal/repository"
)

// Planner turns a free-form prompt plus the personalization context into a
// structured story plan. It is fully deterministic: no model calls, the same
// prompt and context always yield the same plan.
type Planner struct {
	cache           repository.PlanCache
	promptMaxLength int
	logger          *zap.Logger
}

// NewPlanner creates a Planner. cache may be nil; planning then always
// recomputes topic-derived fields.
func NewPlanner(cache repository.PlanCache, promptMaxLength int, logger *zap.Logger) *Planner {
	return &Planner{
		cache:           cache,
		promptMaxLength: promptMaxLength,
		logger:          logger.Named("Planner"),
	}
}

// genderDescriptors is exhaustive over the Gender enum. The neutral entry
// doubles as the fallback so an unexpected value never renders as the wrong
// gender.
var genderDescriptors = map[model.Gender]string{
	model.GenderMale:   "boy",
	model.GenderFemale: "girl",
	model.GenderOther:  "child",
}

// ageBandLooks carries the visual vocabulary per age band used for the
// protagonist's appearance.
var ageBandLooks = map[model.AgeBand]string{
	model.AgeBandToddler:    "a cheerful toddler with chubby cheeks and a wobbly, eager walk",
	model.AgeBandYoungChild: "a bright-eyed young %s with an infectious giggle",
	model.AgeBandChild:      "a curious %s with a confident stride and an explorer's grin",
	model.AgeBandPreTeen:    "a thoughtful pre-teen %s with an air of quiet determination",
}

// culturalMotifs maps known city/region/language keys onto a concrete,
// respectful visual landmark or craft. Unknown keys fall back to a neutral,
// non-stereotyped phrase built from the profile values themselves.
var culturalMotifs = map[string]string{
	"mumbai":      "the Gateway of India",
	"delhi":       "the sandstone arches of Humayun's Tomb",
	"jaipur":      "the pink lattice windows of Hawa Mahal",
	"pune":        "the old stone gates of Shaniwar Wada",
	"amritsar":    "the shimmering Golden Temple",
	"kolkata":     "the white marble dome of the Victoria Memorial",
	"chennai":     "the painted gopuram towers of Mylapore",
	"maharashtra": "delicate Warli art patterns",
	"rajasthan":   "bright mirror-work fabrics and desert forts",
	"punjab":      "golden wheat fields and phulkari embroidery",
	"kerala":      "backwater houseboats and coconut palms",
	"gujarat":     "dancing sticks and patterned bandhani cloth",
	"hindi":       "colorful rangoli patterns at the doorstep",
	"marathi":     "delicate Warli art patterns",
	"punjabi":     "bright phulkari embroidery",
	"tamil":       "intricate kolam designs drawn at dawn",
	"bengali":     "alpana patterns painted in rice paste",
	"gujarati":    "patterned bandhani cloth in festival colors",
}

// interestGarnishes gives the protagonist a small visual touch tied to a
// known interest. Unknown interests get a generic themed accessory.
var interestGarnishes = map[string]string{
	"space":     "wearing a star-patterned t-shirt",
	"dinosaurs": "carrying a little dinosaur backpack",
	"animals":   "with a tiny paw-print badge on the sleeve",
	"painting":  "with paint-speckled fingers and a brush tucked behind one ear",
	"drawing":   "with a sketchbook under one arm",
	"music":     "humming a tune, a small flute in hand",
	"dancing":   "in soft dancing shoes, mid-twirl",
	"cricket":   "with a small cricket bat over one shoulder",
	"football":  "with a scuffed football underfoot",
	"reading":   "clutching a well-loved storybook",
	"cooking":   "in a flour-dusted little apron",
	"robots":    "holding a hand-built toy robot",
	"trains":    "with a wooden toy engine peeking from a pocket",
	"gardening": "with a tiny watering can and soil-smudged knees",
}

// defaultThemes per age band, in fixed order so topic-hash selection is
// stable across runs.
var defaultThemes = map[model.AgeBand][]string{
	model.AgeBandToddler:    {"kindness", "bedtime wonder", "trying new things"},
	model.AgeBandYoungChild: {"friendship", "curiosity", "sharing", "courage"},
	model.AgeBandChild:      {"courage", "teamwork", "honesty", "perseverance"},
	model.AgeBandPreTeen:    {"perseverance", "responsibility", "empathy", "self-belief"},
}

// Plan validates the prompt and builds the deterministic story plan. The
// topic cache, when available, skips recomputation of the theme and the
// neutral setting motif for repeat topics within one age band;
// culturally-derived and character-derived elements are always recomputed
// from the context because they are profile-dependent.
func (p *Planner) Plan(ctx context.Context, prompt string, pctx *model.PersonalizationContext) (*model.StoryPlan, error) {
	subject := strings.TrimSpace(prompt)
	if subject == "" {
		return nil, model.ErrEmptyPrompt
	}
	if len(subject) > p.promptMaxLength {
		return nil, fmt.Errorf("%w: %d characters, limit %d", model.ErrPromptTooLong, len(subject), p.promptMaxLength)
	}

	topic := TopicKey(subject)
	cacheTopic := planCacheTopic(pctx.AgeBand, topic)
	skeleton := p.lookupSkeleton(ctx, cacheTopic)
	if skeleton == nil {
		computed := model.PlanSkeleton{
			Theme:       themeForTopic(topic, pctx.AgeBand),
			VisualMotif: fmt.Sprintf("a storybook scene about %s", subject),
		}
		skeleton = &computed
		p.storeSkeleton(ctx, cacheTopic, computed)
	}

	theme := pctx.Theme
	if theme == "" {
		theme = skeleton.Theme
	}

	characters := []model.Character{protagonistFor(pctx)}
	characters = append(characters, companionsFor(pctx)...)

	setting := settingFor(subject, skeleton.VisualMotif, pctx)

	return &model.StoryPlan{
		Characters:              characters,
		Setting:                 setting,
		PersonalizationElements: personalizationElements(pctx),
		Theme:                   theme,
		Subject:                 subject,
		Language:                pctx.Language,
		ReadingLevel:            pctx.ReadingLevel,
		TargetWordCount:         targetWordCount(pctx.Age),
	}, nil
}

// planCacheTopic scopes a topic key to one age band. The cached theme is
// picked from that band's theme list, so an entry must never be served
// across bands.
func planCacheTopic(band model.AgeBand, topic string) string {
	return string(band) + "/" + topic
}

// TopicKey normalizes a prompt into the cache key shared by requests about
// the same subject: lowercased, whitespace collapsed, capped in length.
func TopicKey(prompt string) string {
	fields := strings.Fields(strings.ToLower(prompt))
	key := strings.Join(fields, " ")
	const maxKeyLen = 64
	if len(key) > maxKeyLen {
		key = key[:maxKeyLen]
	}
	return key
}

func (p *Planner) lookupSkeleton(ctx context.Context, topic string) *model.PlanSkeleton {
	if p.cache == nil {
		return nil
	}
	skeleton, err := p.cache.Get(ctx, topic)
	if err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			// Cache trouble never fails a request.
			p.logger.Warn("Plan cache lookup failed", zap.String("topic", topic), zap.Error(err))
		}
		return nil
	}
	p.logger.Debug("Plan skeleton cache hit", zap.String("topic", topic))
	return skeleton
}

func (p *Planner) storeSkeleton(ctx context.Context, topic string, skeleton model.PlanSkeleton) {
	if p.cache == nil {
		return
	}
	if err := p.cache.Set(ctx, topic, skeleton); err != nil {
		p.logger.Warn("Plan cache write failed", zap.String("topic", topic), zap.Error(err))
	}
}

func protagonistFor(pctx *model.PersonalizationContext) model.Character {
	descriptor, ok := genderDescriptors[pctx.Gender]
	if !ok {
		descriptor = genderDescriptors[model.GenderOther]
	}

	look := ageBandLooks[pctx.AgeBand]
	if strings.Contains(look, "%s") {
		look = fmt.Sprintf(look, descriptor)
	} else {
		// The toddler phrase carries no gender slot.
		look = look + ", a " + descriptor
	}

	garnish := "in bright, comfortable play clothes"
	if len(pctx.Interests) > 0 {
		key := strings.ToLower(pctx.Interests[0])
		if g, ok := interestGarnishes[key]; ok {
			garnish = g
		} else {
			garnish = fmt.Sprintf("dressed for %s adventures", pctx.Interests[0])
		}
	}

	return model.Character{
		Name:             pctx.CharacterName,
		Role:             model.RoleProtagonist,
		Description:      fmt.Sprintf("%s, a %d-year-old %s who loves %s", pctx.CharacterName, pctx.Age, descriptor, interestsPhrase(pctx)),
		VisualAppearance: fmt.Sprintf("%s, %s", look, garnish),
	}
}

func interestsPhrase(pctx *model.PersonalizationContext) string {
	if len(pctx.Interests) == 0 {
		return "new adventures"
	}
	if len(pctx.Interests) == 1 {
		return pctx.Interests[0]
	}
	return strings.Join(pctx.Interests[:len(pctx.Interests)-1], ", ") + " and " + pctx.Interests[len(pctx.Interests)-1]
}

func companionsFor(pctx *model.PersonalizationContext) []model.Character {
	var out []model.Character
	if pctx.FavoriteToy != "" {
		out = append(out, model.Character{
			Name:             pctx.FavoriteToy,
			Role:             model.RoleCompanion,
			Description:      fmt.Sprintf("%s, the beloved toy that comes along on every adventure", pctx.FavoriteToy),
			VisualAppearance: fmt.Sprintf("a well-loved toy %s with soft, worn edges", pctx.FavoriteToy),
		})
	}
	if pctx.FavoriteAnimal != "" {
		out = append(out, model.Character{
			Name:             friendlyAnimalName(pctx.FavoriteAnimal),
			Role:             model.RoleCompanion,
			Description:      fmt.Sprintf("a friendly %s who follows faithfully", pctx.FavoriteAnimal),
			VisualAppearance: fmt.Sprintf("a gentle, bright-eyed %s", pctx.FavoriteAnimal),
		})
	}
	if pctx.FavoriteCartoon != "" {
		out = append(out, model.Character{
			Name:             pctx.FavoriteCartoon,
			Role:             model.RoleCompanion,
			Description:      fmt.Sprintf("a cheerful friend inspired by %s", pctx.FavoriteCartoon),
			VisualAppearance: fmt.Sprintf("a playful companion in the spirit of %s", pctx.FavoriteCartoon),
		})
	}
	return out
}

func friendlyAnimalName(animal string) string {
	lower := strings.ToLower(animal)
	runes := []rune(lower)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes) + " the " + lower
}

func settingFor(subject, baseMotif string, pctx *model.PersonalizationContext) model.Setting {
	setting := model.Setting{
		Description: fmt.Sprintf("A gentle adventure about %s", subject),
		VisualMotif: baseMotif,
	}
	if !pctx.HasCulturalContext() {
		return setting
	}

	setting.CulturalMotif = culturalMotifFor(pctx)
	setting.Description = fmt.Sprintf("%s, unfolding near %s", setting.Description, setting.CulturalMotif)
	return setting
}

// culturalMotifFor resolves the most specific known key first: city, then
// region, then mother tongue. Unknown values get a neutral phrase built from
// the profile itself rather than an invented landmark.
func culturalMotifFor(pctx *model.PersonalizationContext) string {
	for _, key := range []string{pctx.City, pctx.Region, pctx.MotherTongue} {
		if key == "" {
			continue
		}
		if motif, ok := culturalMotifs[strings.ToLower(key)]; ok {
			return motif
		}
	}
	if pctx.City != "" {
		return fmt.Sprintf("the familiar streets and friendly markets of %s", pctx.City)
	}
	return fmt.Sprintf("songs and signs in %s", pctx.MotherTongue)
}

// personalizationElements lists the motif terms the narrative is expected to
// weave in. Interests come first; favorites back them up; the generic motif
// keeps the list non-empty for sparse profiles.
func personalizationElements(pctx *model.PersonalizationContext) []string {
	var out []string
	out = append(out, pctx.Interests...)
	if len(out) == 0 {
		for _, fav := range []string{pctx.FavoriteAnimal, pctx.FavoriteToy, pctx.FavoriteCartoon} {
			if fav != "" {
				out = append(out, fav)
			}
		}
	}
	if len(out) == 0 {
		out = append(out, "playful discovery")
	}
	return out
}

func themeForTopic(topic string, band model.AgeBand) string {
	themes := defaultThemes[band]
	if len(themes) == 0 {
		themes = defaultThemes[model.AgeBandChild]
	}
	h := fnv.New32a()
	h.Write([]byte(topic))
	return themes[int(h.Sum32())%len(themes)]
}

func targetWordCount(age int) int {
	switch {
	case age <= 5:
		return 250
	case age <= 8:
		return 400
	default:
		return 600
	}
}
