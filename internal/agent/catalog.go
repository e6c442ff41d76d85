package agent

import "context"

// Catalog is an immutable in-process character directory loaded at startup.
// It stands in for the remote agent service in local and dev setups.
type Catalog struct {
	characters []Character
	byID       map[string]Character
}

func NewCatalog(characters []Character) *Catalog {
	if len(characters) == 0 {
		characters = defaultCharacters()
	}
	byID := make(map[string]Character, len(characters))
	for _, c := range characters {
		byID[c.ID] = c
	}
	return &Catalog{characters: characters, byID: byID}
}

func (c *Catalog) List(_ context.Context) ([]Character, error) {
	out := make([]Character, len(c.characters))
	copy(out, c.characters)
	return out, nil
}

func (c *Catalog) Get(_ context.Context, id string) (Character, error) {
	ch, ok := c.byID[id]
	if !ok {
		return Character{}, ErrNotFound
	}
	return ch, nil
}

func defaultCharacters() []Character {
	return []Character{
		{
			ID:      "luna",
			Name:    "Luna",
			VoiceID: "EXAVITQu4vr4xnSDxMaL",
			Meta: Meta{
				ProfileImage: "characters/luna/profile.jpg",
				ProfileVideo: "characters/luna/intro.mp4",
				Age:          24,
				Occupation:   "Astronomy student",
				Gender:       "female",
				Location:     "Lisbon",
			},
			Description: "Curious night owl who will happily talk about the stars until sunrise.",
			Media: []MediaItem{
				{Type: "image", Src: "characters/luna/gallery-1.jpg"},
				{Type: "video", Src: "characters/luna/clip-1.mp4", Poster: "characters/luna/clip-1-poster.jpg"},
			},
			PremiumContent: []MediaItem{
				{Type: "image", Src: "characters/luna/premium-1.jpg"},
			},
		},
		{
			ID:      "kai",
			Name:    "Kai",
			VoiceID: "TxGEqnHWrfWFTfGW9XjX",
			Meta: Meta{
				ProfileImage: "characters/kai/profile.jpg",
				Age:          29,
				Occupation:   "Surf instructor",
				Gender:       "male",
				Location:     "Bali",
			},
			Description: "Laid-back and encouraging, always up for planning your next adventure.",
			Media: []MediaItem{
				{Type: "image", Src: "characters/kai/gallery-1.jpg"},
			},
		},
	}
}
