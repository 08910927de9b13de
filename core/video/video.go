// Package video resolves stored video references into playable embed URLs
// and canonical watch links. References are opaque strings; in practice they
// are YouTube URLs in any of the common shapes, or a bare video ID.
package video

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var (
	ErrUnresolvable = errors.New("video reference could not be resolved")

	idRegex = regexp.MustCompile(`^[\w-]{11}$`)
)

// Embed is a resolved video reference. When a reference cannot be parsed
// both URLs are empty and Available is false; callers render a
// "could not load video" state instead of failing.
type Embed struct {
	Available bool   `json:"available"`
	EmbedURL  string `json:"embed_url,omitempty"`
	WatchURL  string `json:"watch_url,omitempty"`
}

// Resolve parses ref and builds the embeddable player URL (optionally seeked
// to start) and the canonical watch link.
func Resolve(ref string, start time.Duration) Embed {
	id, err := ParseID(ref)
	if err != nil {
		return Embed{}
	}

	embedURL := "https://www.youtube.com/embed/" + id
	if secs := int(start.Seconds()); secs > 0 {
		embedURL = fmt.Sprintf("%s?start=%d", embedURL, secs)
	}
	return Embed{
		Available: true,
		EmbedURL:  embedURL,
		WatchURL:  "https://www.youtube.com/watch?v=" + id,
	}
}

// ParseID extracts the video identifier from a reference. Recognized shapes:
// watch URLs (youtube.com/watch?v=ID), short links (youtu.be/ID), embed URLs
// (youtube.com/embed/ID) and bare 11-character IDs.
func ParseID(ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return "", ErrUnresolvable
	}
	if idRegex.MatchString(ref) {
		return ref, nil
	}

	u, err := url.Parse(ref)
	if err != nil {
		return "", ErrUnresolvable
	}

	var id string
	host := strings.TrimPrefix(u.Hostname(), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "youtube-nocookie.com":
		switch {
		case u.Path == "/watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(u.Path, "/embed/"):
			id = strings.TrimPrefix(u.Path, "/embed/")
		case strings.HasPrefix(u.Path, "/shorts/"):
			id = strings.TrimPrefix(u.Path, "/shorts/")
		}
	case "youtu.be":
		id = strings.TrimPrefix(u.Path, "/")
	}

	id = strings.Trim(id, "/")
	if !idRegex.MatchString(id) {
		return "", ErrUnresolvable
	}
	return id, nil
}
