package validation

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// VideoExtensions lists the file types the backend accepts for upload.
var VideoExtensions = []string{".mp4", ".mov", ".mkv", ".avi", ".webm"}

// ValidateBaseURL checks that rawURL is an absolute http(s) URL with a host and
// no query or fragment. It never contacts the host.
func ValidateBaseURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &ValidationError{Field: "base_url", Message: "URL is required"}
	}

	// url.Parse keeps the fragment so it can be rejected below
	parsedURL, err := url.Parse(rawURL)
	if err != nil || !parsedURL.IsAbs() {
		return &ValidationError{Field: "base_url", Message: "invalid URL format"}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return &ValidationError{Field: "base_url", Message: "URL must start with http or https"}
	}

	if parsedURL.Host == "" {
		return &ValidationError{Field: "base_url", Message: "URL must have a host"}
	}

	if parsedURL.RawQuery != "" || parsedURL.ForceQuery || parsedURL.Fragment != "" || strings.Contains(rawURL, "#") {
		return &ValidationError{Field: "base_url", Message: "URL must not carry a query or fragment"}
	}

	return nil
}

// ValidateYouTubeURL accepts youtube.com watch URLs with a v parameter and
// youtu.be short links with a video id path.
func ValidateYouTubeURL(rawURL string) error {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return &ValidationError{Field: "youtube_url", Message: "URL is required"}
	}

	parsedURL, err := url.ParseRequestURI(rawURL)
	if err != nil || parsedURL.Host == "" {
		return &ValidationError{Field: "youtube_url", Message: "invalid URL format"}
	}

	host := strings.TrimPrefix(strings.ToLower(parsedURL.Hostname()), "www.")
	switch {
	case host == "youtu.be":
		if strings.Trim(parsedURL.Path, "/") == "" {
			return &ValidationError{Field: "youtube_url", Message: "YouTube URL must contain a valid video ID"}
		}
	case host == "youtube.com" || strings.HasSuffix(host, ".youtube.com"):
		// Check for YouTube-specific parameters
		if parsedURL.Query().Get("v") == "" && !strings.HasPrefix(parsedURL.Path, "/shorts/") {
			return &ValidationError{Field: "youtube_url", Message: "YouTube URL must contain a valid video ID"}
		}
	default:
		return &ValidationError{Field: "youtube_url", Message: "URL is not a YouTube link"}
	}

	return nil
}

// IsVideoFile reports whether path has one of VideoExtensions.
func IsVideoFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range VideoExtensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// ValidateVideoFile checks that path names a non-empty regular file with a
// video extension.
func ValidateVideoFile(path string) error {
	if !IsVideoFile(path) {
		return &ValidationError{
			Field:   "file",
			Message: fmt.Sprintf("unsupported file type %q, expected one of %s", filepath.Ext(path), strings.Join(VideoExtensions, ", ")),
		}
	}

	info, err := os.Stat(path)
	if err != nil {
		return &ValidationError{Field: "file", Message: err.Error()}
	}
	if !info.Mode().IsRegular() {
		return &ValidationError{Field: "file", Message: "not a regular file"}
	}
	if info.Size() == 0 {
		return &ValidationError{Field: "file", Message: "file is empty"}
	}

	return nil
}
