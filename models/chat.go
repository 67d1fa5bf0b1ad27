package models

// ChatMessage is one stored exchange of a video's chat history.
type ChatMessage struct {
	ID        int        `json:"id"`
	Message   string     `json:"message"`
	Response  string     `json:"response"`
	Citations []Citation `json:"citations"`
	CreatedAt Timestamp  `json:"created_at"`
}

// Citation points a chat response back to a moment in the video. CitationID
// correlates the citation with its marker in the response text.
type Citation struct {
	Text       string  `json:"text"`
	Time       float64 `json:"time"`
	Timestamp  string  `json:"timestamp"`
	CitationID int     `json:"citation_id"`
}

type ChatRequest struct {
	VideoID int    `json:"video_id"`
	Message string `json:"message"`
}

type ChatResponse struct {
	Response  string     `json:"response"`
	Citations []Citation `json:"citations"`
	MessageID int        `json:"message_id"`
}

type ChatHistoryResponse struct {
	VideoID  int           `json:"video_id"`
	Messages []ChatMessage `json:"messages"`
}

type ClearHistoryResponse struct {
	Message string `json:"message"`
	VideoID int    `json:"video_id"`
}
