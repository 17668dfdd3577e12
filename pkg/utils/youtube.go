package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// youtubePathPrefixes hold the video id in the path that follows them.
var youtubePathPrefixes = []string{"/embed/", "/v/", "/shorts/", "/live/"}

// ExtractYouTubeID returns the video id of a youtube.com or youtu.be URL.
func ExtractYouTubeID(youtubeURL string) (string, error) {
	u, err := url.Parse(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("invalid URL: %w", err)
	}
	host := strings.ToLower(u.Host)

	switch {
	case strings.Contains(host, "youtu.be"):
		if id := strings.Trim(u.Path, "/"); id != "" {
			return id, nil
		}
	case strings.Contains(host, "youtube.com"):
		if strings.HasPrefix(u.Path, "/watch") {
			if id := u.Query().Get("v"); id != "" {
				return id, nil
			}
		}
		for _, prefix := range youtubePathPrefixes {
			if id, ok := strings.CutPrefix(u.Path, prefix); ok {
				if id, _, _ = strings.Cut(id, "/"); id != "" {
					return id, nil
				}
			}
		}
	}
	return "", fmt.Errorf("unable to extract video ID from URL: %s", youtubeURL)
}

func IsYouTubeURL(urlStr string) bool {
	u, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Host)
	return strings.Contains(host, "youtube.com") || strings.Contains(host, "youtu.be")
}
