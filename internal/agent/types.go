package agent

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("character not found")

// MediaItem is one displayable asset attached to a character profile.
type MediaItem struct {
	Type   string `json:"type"`
	Src    string `json:"src"`
	Poster string `json:"poster,omitempty"`
}

// Meta carries the character's profile card fields.
type Meta struct {
	ProfileImage string `json:"profileImage"`
	ProfileVideo string `json:"profileVideo,omitempty"`
	Age          int    `json:"age,omitempty"`
	Occupation   string `json:"occupation,omitempty"`
	Gender       string `json:"gender,omitempty"`
	Location     string `json:"location,omitempty"`
}

// Character is an AI companion profile as served to clients. Profiles are
// immutable reference data; handlers return copies, never shared slices.
type Character struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	VoiceID        string      `json:"voice_id,omitempty"`
	Meta           Meta        `json:"meta"`
	Description    string      `json:"description"`
	Media          []MediaItem `json:"media"`
	PremiumContent []MediaItem `json:"premiumContent"`
}

// Directory serves character profiles. Both the static catalog and the
// server-backed client satisfy it; callers never learn which is authoritative.
type Directory interface {
	List(ctx context.Context) ([]Character, error)
	Get(ctx context.Context, id string) (Character, error)
}
