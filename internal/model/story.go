package model

import (
	"time"

	"github.com/google/uuid"
)

// Story is the final durable artifact: validated narrative plus illustration
// reference. Immutable once created; history ordering key is CreatedAt.
type Story struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	OwnerID        string       `db:"owner_id" json:"ownerId"`
	Prompt         string       `db:"prompt" json:"prompt"`
	Title          string       `db:"title" json:"title"`
	Text           string       `db:"text" json:"text"`
	ImageURL       string       `db:"image_url" json:"imageUrl"`
	Theme          string       `db:"theme" json:"theme"`
	Language       string       `db:"language" json:"language"`
	ReadingLevel   ReadingLevel `db:"reading_level" json:"readingLevel"`
	WordCount      int          `db:"word_count" json:"wordCount"`
	ReadingTimeMin int          `db:"reading_time_min" json:"readingTimeMin"`
	// Degraded marks a story whose illustration failed and was replaced by
	// the placeholder reference.
	Degraded bool `db:"degraded" json:"degraded,omitempty"`
	// Warning carries a non-fatal personalization warning when validation
	// retries were exhausted; empty for a clean story.
	Warning   string    `db:"warning" json:"warning,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// EstimateReadingTime returns whole minutes to read wordCount words at the
// given level. Rates follow the age-banded words-per-minute table of the
// personalization rules; the result is never below one minute.
func EstimateReadingTime(wordCount int, level ReadingLevel) int {
	wpm := 60
	switch level {
	case ReadingLevelSimple:
		wpm = 40
	case ReadingLevelAdvanced:
		wpm = 80
	}
	minutes := (wordCount + wpm - 1) / wpm
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
