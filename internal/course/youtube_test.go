package course

import "testing"

func TestYouTubeVideoID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://youtu.be/abc12345678", "abc12345678"},
		{"https://www.youtube.com/watch?v=abc12345678", "abc12345678"},
		{"https://m.youtube.com/watch?v=abc12345678&t=30", "abc12345678"},
		{"https://www.youtube.com/embed/abc12345678", "abc12345678"},
		{"https://www.youtube.com/shorts/abc12345678", "abc12345678"},
		{"https://vimeo.com/12345", ""},
		{"https://example.com/watch?v=abc12345678", ""},
		{"not a url", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := YouTubeVideoID(c.in); got != c.want {
			t.Errorf("YouTubeVideoID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeYouTubeURL(t *testing.T) {
	got := NormalizeYouTubeURL("https://youtu.be/abc12345678")
	want := "https://www.youtube.com/watch?v=abc12345678"
	if got != want {
		t.Errorf("normalize = %q, want %q", got, want)
	}
	// non-YouTube passes through untouched
	if got := NormalizeYouTubeURL("https://example.com/video.mp4"); got != "https://example.com/video.mp4" {
		t.Errorf("non-YouTube URL changed: %q", got)
	}
}
