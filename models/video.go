package models

// VideoInfo is the backend's view of a processed video.
type VideoInfo struct {
	ID            int            `json:"id"`
	Title         string         `json:"title"`
	URL           string         `json:"url"`
	VideoType     string         `json:"video_type"`
	Status        string         `json:"status"`
	Duration      *float64       `json:"duration,omitempty"`
	HasTranscript bool           `json:"has_transcript"`
	Sections      []VideoSection `json:"sections,omitempty"`
	FrameCount    int            `json:"frame_count"`
	CreatedAt     Timestamp      `json:"created_at"`
}

// VideoSection is a titled time range of a video. Times are seconds from the
// start of the video.
type VideoSection struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	StartTime   float64  `json:"start_time"`
	EndTime     float64  `json:"end_time"`
	Description string   `json:"description"`
	KeyTopics   []string `json:"key_topics"`
}

// Duration returns the length of the section in seconds.
func (s VideoSection) Duration() float64 { return s.EndTime - s.StartTime }

// Contains reports whether t falls inside the section.
func (s VideoSection) Contains(t float64) bool { return t >= s.StartTime && t <= s.EndTime }

type UploadResponse struct {
	VideoID int    `json:"video_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type YouTubeRequest struct {
	YouTubeURL string `json:"youtube_url"`
}

type YouTubeResponse struct {
	VideoID       int    `json:"video_id"`
	Status        string `json:"status"`
	Title         string `json:"title"`
	HasTranscript bool   `json:"has_transcript"`
	SectionsCount int    `json:"sections_count"`
}

type SectionsResponse struct {
	VideoID  int            `json:"video_id"`
	Sections []VideoSection `json:"sections"`
}

// MessageResponse is the acknowledgement returned by destructive calls.
type MessageResponse struct {
	Message string `json:"message"`
}
