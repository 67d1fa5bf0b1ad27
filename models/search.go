package models

import "encoding/json"

// SearchResult is a single frame matched by a visual search. The optional
// fields are only populated once frame analysis has run for the video.
type SearchResult struct {
	Timestamp        float64          `json:"timestamp"`
	Confidence       float64          `json:"confidence"`
	Description      string           `json:"description"`
	FramePath        string           `json:"frame_path"`
	Summary          *string          `json:"summary,omitempty"`
	ObjectsDetected  *DetectedObjects `json:"objects_detected,omitempty"`
	PeopleCount      *int             `json:"people_count,omitempty"`
	DetailedAnalysis *string          `json:"detailed_analysis,omitempty"`
}

// ClipResult is a continuous range of the video built from adjacent matching
// frames.
type ClipResult struct {
	StartTime    float64        `json:"start_time"`
	EndTime      float64        `json:"end_time"`
	Confidence   float64        `json:"confidence"`
	Description  string         `json:"description"`
	FrameCount   int            `json:"frame_count"`
	Frames       []SearchResult `json:"frames"`
	ThumbnailURL *string        `json:"thumbnail_url,omitempty"`
}

// Duration returns the clip length in seconds.
func (c ClipResult) Duration() float64 { return c.EndTime - c.StartTime }

// Clip drops the nested frames.
func (c ClipResult) Clip() VideoClip {
	return VideoClip{
		StartTime:   c.StartTime,
		EndTime:     c.EndTime,
		Confidence:  c.Confidence,
		Description: c.Description,
		FrameCount:  c.FrameCount,
	}
}

// VideoClip is the frame-less form of ClipResult.
type VideoClip struct {
	StartTime   float64 `json:"start_time"`
	EndTime     float64 `json:"end_time"`
	Confidence  float64 `json:"confidence"`
	Description string  `json:"description"`
	FrameCount  int     `json:"frame_count"`
}

type VisualSearchRequest struct {
	VideoID    int    `json:"video_id"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type VisualSearchResponse struct {
	Query            string         `json:"query"`
	Results          []SearchResult `json:"results"`
	Clips            []ClipResult   `json:"clips"`
	TotalResults     int            `json:"total_results"`
	DirectAnswer     *string        `json:"direct_answer,omitempty"`
	QueryType        *string        `json:"query_type,omitempty"`
	ProcessingMethod *string        `json:"processing_method,omitempty"`
}

// SuggestionCategories groups suggestions by what they describe.
type SuggestionCategories struct {
	Objects []string `json:"objects"`
	People  []string `json:"people"`
	Scenes  []string `json:"scenes"`
	Text    []string `json:"text"`
	Actions []string `json:"actions"`
	Colors  []string `json:"colors"`
}

type SearchSuggestionsResponse struct {
	VideoID          int                  `json:"video_id"`
	Suggestions      []string             `json:"suggestions"`
	Categories       SuggestionCategories `json:"categories"`
	TotalSuggestions int                  `json:"total_suggestions"`
	GenerationMethod string               `json:"generation_method"`
}

// Frame is an extracted still listed by the frames endpoint.
type Frame struct {
	ID              int              `json:"id"`
	Timestamp       float64          `json:"timestamp"`
	FramePath       string           `json:"frame_path"`
	Description     *string          `json:"description,omitempty"`
	ObjectsDetected *DetectedObjects `json:"objects_detected,omitempty"`
}

type FramesResponse struct {
	VideoID int     `json:"video_id"`
	Frames  []Frame `json:"frames"`
}

type AnalyzeFramesResponse struct {
	Message       string `json:"message"`
	AnalyzedCount int    `json:"analyzed_count"`
	TotalFrames   int    `json:"total_frames"`
}

// FrameImage is raw image data as served by the backend.
type FrameImage struct {
	Data        []byte
	ContentType string
}

// DetectedObjects holds a frame's objects_detected payload. The backend sends
// either a list of labels, a list of objects with a name or label, or an
// arbitrary analysis document. Labels is filled for the first two shapes; Raw
// always keeps the original bytes.
type DetectedObjects struct {
	Labels []string
	Raw    json.RawMessage
}

var labelKeys = []string{"name", "label", "object"}

func (d *DetectedObjects) UnmarshalJSON(b []byte) error {
	d.Raw = append(json.RawMessage(nil), b...)
	d.Labels = nil

	var labels []string
	if err := json.Unmarshal(b, &labels); err == nil {
		d.Labels = labels
		return nil
	}

	var items []map[string]any
	if err := json.Unmarshal(b, &items); err == nil {
		for _, item := range items {
			for _, key := range labelKeys {
				if v, ok := item[key].(string); ok && v != "" {
					d.Labels = append(d.Labels, v)
					break
				}
			}
		}
	}
	return nil
}

func (d DetectedObjects) MarshalJSON() ([]byte, error) {
	if len(d.Raw) > 0 {
		return d.Raw, nil
	}
	if d.Labels == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Labels)
}
