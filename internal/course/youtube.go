package course

import (
	"net/url"
	"strings"
)

// YouTubeVideoID extracts the video id from the URL shapes teachers paste in:
// youtu.be/<id>, youtube.com/watch?v=<id>, /embed/<id> and /shorts/<id>.
// Returns "" for anything that is not a YouTube URL.
func YouTubeVideoID(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch host {
	case "youtu.be":
		return strings.Trim(u.Path, "/")
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		if v := u.Query().Get("v"); v != "" {
			return v
		}
		for _, prefix := range []string{"/embed/", "/shorts/", "/v/"} {
			if strings.HasPrefix(u.Path, prefix) {
				rest := strings.TrimPrefix(u.Path, prefix)
				if i := strings.IndexByte(rest, '/'); i >= 0 {
					rest = rest[:i]
				}
				return rest
			}
		}
	}
	return ""
}

// NormalizeYouTubeURL rewrites any recognized YouTube URL to the canonical
// watch form. Non-YouTube URLs pass through unchanged.
func NormalizeYouTubeURL(raw string) string {
	if id := YouTubeVideoID(raw); id != "" {
		return "https://www.youtube.com/watch?v=" + id
	}
	return raw
}
