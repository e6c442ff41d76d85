package agent

import "strings"

// ResolveMediaURL prefixes the media base URL onto relative asset paths.
// Absolute URLs and data URIs pass through untouched.
func ResolveMediaURL(baseURL, path string) string {
	p := strings.TrimSpace(path)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "data:") {
		return p
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return p
	}
	return base + "/" + strings.TrimLeft(p, "/")
}

// ResolveCharacterMedia rewrites every asset reference on a copy of the
// character so raw storage paths never leak to clients.
func ResolveCharacterMedia(baseURL string, c Character) Character {
	c.Meta.ProfileImage = ResolveMediaURL(baseURL, c.Meta.ProfileImage)
	c.Meta.ProfileVideo = ResolveMediaURL(baseURL, c.Meta.ProfileVideo)

	media := make([]MediaItem, len(c.Media))
	for i, item := range c.Media {
		item.Src = ResolveMediaURL(baseURL, item.Src)
		item.Poster = ResolveMediaURL(baseURL, item.Poster)
		media[i] = item
	}
	c.Media = media

	premium := make([]MediaItem, len(c.PremiumContent))
	for i, item := range c.PremiumContent {
		item.Src = ResolveMediaURL(baseURL, item.Src)
		item.Poster = ResolveMediaURL(baseURL, item.Poster)
		premium[i] = item
	}
	c.PremiumContent = premium

	return c
}
