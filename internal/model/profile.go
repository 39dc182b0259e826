package model

import "time"

// Gender of the child a profile describes.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// ReadingLevel controls vocabulary and sentence complexity of the narrative.
type ReadingLevel string

const (
	ReadingLevelSimple   ReadingLevel = "simple"
	ReadingLevelMedium   ReadingLevel = "medium"
	ReadingLevelAdvanced ReadingLevel = "advanced"
)

// AgeBand groups profile ages into the fixed descriptor set used for
// planning and illustration prompts.
type AgeBand string

const (
	AgeBandToddler    AgeBand = "toddler"     // 1-3
	AgeBandYoungChild AgeBand = "young child" // 4-6
	AgeBandChild      AgeBand = "child"       // 7-9
	AgeBandPreTeen    AgeBand = "pre-teen"    // 10-12
)

const (
	MinProfileAge = 1
	MaxProfileAge = 12
)

// AgeBandFor maps a profile age onto its band. Ages outside [1,12] are
// clamped; profiles are validated at creation so this is a safety net only.
func AgeBandFor(age int) AgeBand {
	switch {
	case age <= 3:
		return AgeBandToddler
	case age <= 6:
		return AgeBandYoungChild
	case age <= 9:
		return AgeBandChild
	default:
		return AgeBandPreTeen
	}
}

// UserProfile is the durable set of a child's preferences, keyed by the
// owner's email. Owned by the profile store; the pipeline only reads it.
type UserProfile struct {
	ID              string       `db:"id" json:"id"` // email
	CharacterName   string       `db:"character_name" json:"characterName"`
	Gender          Gender       `db:"gender" json:"gender"`
	Age             int          `db:"age" json:"age"`
	City            string       `db:"city" json:"city"`
	Region          string       `db:"region" json:"region"`
	MotherTongue    string       `db:"mother_tongue" json:"motherTongue"`
	ReadingLevel    ReadingLevel `db:"reading_level" json:"readingLevel"`
	Language        string       `db:"language" json:"language"`
	FavoriteToy     string       `db:"favorite_toy" json:"favoriteToy"`
	FavoriteAnimal  string       `db:"favorite_animal" json:"favoriteAnimal"`
	FavoriteCartoon string       `db:"favorite_cartoon" json:"favoriteCartoon"`
	Interests       []string     `db:"interests" json:"interests"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updatedAt"`
}

// PersonalizationContext is the request-scoped, normalized view of a profile.
// It is derived once per request by the context builder and never mutated by
// downstream stages.
type PersonalizationContext struct {
	ProfileID       string
	CharacterName   string
	Gender          Gender
	Age             int
	AgeBand         AgeBand
	City            string
	Region          string
	MotherTongue    string
	ReadingLevel    ReadingLevel
	Language        string
	Theme           string // request override; empty means planner decides
	FavoriteToy     string
	FavoriteAnimal  string
	FavoriteCartoon string
	Interests       []string
}

// HasCulturalContext reports whether the profile carries a non-default
// city or mother tongue, which obliges the planner to include a
// culturally-derived visual element in the setting.
func (c *PersonalizationContext) HasCulturalContext() bool {
	return c.City != "" || c.MotherTongue != ""
}
