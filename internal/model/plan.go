package model

// CharacterRole identifies a character's function in the plan.
type CharacterRole string

const (
	RoleProtagonist CharacterRole = "protagonist"
	RoleCompanion   CharacterRole = "companion"
	RoleAntagonist  CharacterRole = "antagonist"
	RoleOther       CharacterRole = "other"
)

// Character is an actor in a story plan. For the protagonist the
// VisualAppearance is computed from the requester's profile, never invented.
type Character struct {
	Name             string        `json:"name"`
	Role             CharacterRole `json:"role"`
	Description      string        `json:"description"`
	VisualAppearance string        `json:"visualAppearance"`
}

// Setting describes where the story takes place, both textually and as a
// visual motif for illustration. CulturalMotif is non-empty whenever the
// profile carries a non-default city or mother tongue.
type Setting struct {
	Description   string `json:"description"`
	VisualMotif   string `json:"visualMotif"`
	CulturalMotif string `json:"culturalMotif,omitempty"`
}

// StoryPlan is the structural blueprint produced by the planner and consumed
// by the writer and the formatter. It is request-scoped and never mutated
// after creation.
type StoryPlan struct {
	Characters              []Character  `json:"characters"`
	Setting                 Setting      `json:"setting"`
	PersonalizationElements []string     `json:"personalizationElements"`
	Theme                   string       `json:"theme"`
	Subject                 string       `json:"subject"`
	Language                string       `json:"language"`
	ReadingLevel            ReadingLevel `json:"readingLevel"`
	TargetWordCount         int          `json:"targetWordCount"`
}

// Protagonist returns the plan's protagonist. The planner guarantees exactly
// one; ok is false only on an internal-consistency fault.
func (p *StoryPlan) Protagonist() (Character, bool) {
	for _, c := range p.Characters {
		if c.Role == RoleProtagonist {
			return c, true
		}
	}
	return Character{}, false
}

// Companions returns the plan's companion characters in order.
func (p *StoryPlan) Companions() []Character {
	var out []Character
	for _, c := range p.Characters {
		if c.Role == RoleCompanion {
			out = append(out, c)
		}
	}
	return out
}

// PlanSkeleton is the cacheable part of a plan: the theme and setting
// motif derived for a prompt topic. Themes are picked per age band, so
// cache entries are keyed by age band plus topic and stored with a TTL.
type PlanSkeleton struct {
	Theme       string `json:"theme"`
	VisualMotif string `json:"visualMotif"`
}

// NarrativeDraft is one writer attempt at expanding a plan into prose.
type NarrativeDraft struct {
	Text         string
	ReadingLevel ReadingLevel
	Language     string
	Attempt      int
}

// WordCount counts whitespace-separated words in the draft.
func (d *NarrativeDraft) WordCount() int {
	count := 0
	inWord := false
	for _, r := range d.Text {
		switch r {
		case ' ', '\t', '\n', '\r':
			inWord = false
		default:
			if !inWord {
				count++
				inWord = true
			}
		}
	}
	return count
}
