package model

import (
	"fmt"
	"strings"
)

// ImagePrompt is the structured illustration request produced by the
// formatter. Every mandatory slot must be non-empty before dispatch; the
// formatter fills neutral defaults where the plan has nothing to offer.
type ImagePrompt struct {
	AgeGenderDescriptor string `json:"ageGenderDescriptor"`
	CulturalMotif       string `json:"culturalMotif"`
	InterestMotif       string `json:"interestMotif"`
	CompanionDescriptor string `json:"companionDescriptor"`
	EmotionalTone       string `json:"emotionalTone"`
	Scene               string `json:"scene"`
}

// Validate reports the first empty mandatory slot, if any.
func (p *ImagePrompt) Validate() error {
	slots := []struct {
		name  string
		value string
	}{
		{"age/gender descriptor", p.AgeGenderDescriptor},
		{"cultural/setting motif", p.CulturalMotif},
		{"interest motif", p.InterestMotif},
		{"companion descriptor", p.CompanionDescriptor},
		{"emotional tone", p.EmotionalTone},
	}
	for _, s := range slots {
		if strings.TrimSpace(s.value) == "" {
			return fmt.Errorf("image prompt slot %q is empty", s.name)
		}
	}
	return nil
}

// Render produces the single prompt string sent to the image service.
// The output is byte-identical for identical inputs.
func (p *ImagePrompt) Render() string {
	var sb strings.Builder
	sb.WriteString(p.AgeGenderDescriptor)
	if p.Scene != "" {
		sb.WriteString(", ")
		sb.WriteString(p.Scene)
	}
	sb.WriteString(". SETTING: ")
	sb.WriteString(p.CulturalMotif)
	sb.WriteString(". INTERESTS: ")
	sb.WriteString(p.InterestMotif)
	sb.WriteString(". COMPANIONS: ")
	sb.WriteString(p.CompanionDescriptor)
	sb.WriteString(". MOOD: ")
	sb.WriteString(p.EmotionalTone)
	sb.WriteString(". COMPOSITION: eye-level shot, centered subject, age-accurate proportions, child-friendly color palette")
	return sb.String()
}
