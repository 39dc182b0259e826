package pipeline

import (
	"strings"

	"taleweaver/internal/model"
)

// Overrides are the request-scoped knobs a caller may set on top of the
// stored profile.
type Overrides struct {
	Language string
	Theme    string
}

const defaultCharacterName = "Hero"

// BuildContext normalizes a stored profile plus request overrides into the
// canonical PersonalizationContext used by every downstream stage. Pure
// function, no side effects; profile resolution happens before this is
// called.
func BuildContext(profile *model.UserProfile, overrides Overrides) model.PersonalizationContext {
	name := strings.TrimSpace(profile.CharacterName)
	if name == "" {
		name = defaultCharacterName
	}

	age := profile.Age
	if age < model.MinProfileAge {
		age = model.MinProfileAge
	}
	if age > model.MaxProfileAge {
		age = model.MaxProfileAge
	}

	gender := profile.Gender
	switch gender {
	case model.GenderMale, model.GenderFemale, model.GenderOther:
	default:
		gender = model.GenderOther
	}

	level := profile.ReadingLevel
	switch level {
	case model.ReadingLevelSimple, model.ReadingLevelMedium, model.ReadingLevelAdvanced:
	default:
		level = model.ReadingLevelMedium
	}

	language := strings.TrimSpace(overrides.Language)
	if language == "" {
		language = strings.TrimSpace(profile.Language)
	}
	if language == "" {
		language = "english"
	}

	var interests []string
	for _, raw := range profile.Interests {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			interests = append(interests, trimmed)
		}
	}

	return model.PersonalizationContext{
		ProfileID:       profile.ID,
		CharacterName:   name,
		Gender:          gender,
		Age:             age,
		AgeBand:         model.AgeBandFor(age),
		City:            strings.TrimSpace(profile.City),
		Region:          strings.TrimSpace(profile.Region),
		MotherTongue:    strings.TrimSpace(profile.MotherTongue),
		ReadingLevel:    level,
		Language:        strings.ToLower(language),
		Theme:           strings.TrimSpace(overrides.Theme),
		FavoriteToy:     strings.TrimSpace(profile.FavoriteToy),
		FavoriteAnimal:  strings.TrimSpace(profile.FavoriteAnimal),
		FavoriteCartoon: strings.TrimSpace(profile.FavoriteCartoon),
		Interests:       interests,
	}
}
