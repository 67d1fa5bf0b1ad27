package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nijaru/videochat/models"
)

// SendChatMessage asks a question about a video. The response carries the
// answer text and the citations it refers to.
func (c *Client) SendChatMessage(ctx context.Context, videoID int, message string) (*models.ChatResponse, error) {
	const op = "Client.SendChatMessage"

	var out models.ChatResponse
	in := models.ChatRequest{VideoID: videoID, Message: message}
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodPost, c.apiURL("/chat/message"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChatHistory lists up to limit stored exchanges for a video. A zero limit
// requests 50.
func (c *Client) GetChatHistory(ctx context.Context, videoID, limit int) (*models.ChatHistoryResponse, error) {
	const op = "Client.GetChatHistory"

	if limit == 0 {
		limit = defaultHistoryLimit
	}

	var out models.ChatHistoryResponse
	url := c.apiURL(fmt.Sprintf("/chat/%d/history?limit=%d", videoID, limit))
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodGet, url, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ClearChatHistory(ctx context.Context, videoID int) (*models.ClearHistoryResponse, error) {
	const op = "Client.ClearChatHistory"

	var out models.ClearHistoryResponse
	url := c.apiURL(fmt.Sprintf("/chat/%d/history", videoID))
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodDelete, url, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
