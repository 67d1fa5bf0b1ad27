package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"

	"github.com/nijaru/videochat/models"
)

// FormatTimestamp renders seconds the way frame paths expect them: the
// shortest decimal form, so 12 stays "12" and 12.5 stays "12.5".
func FormatTimestamp(ts float64) string {
	return strconv.FormatFloat(ts, 'f', -1, 64)
}

// GetVideoFrame fetches the still at timestamp seconds. The bytes are returned
// exactly as served.
func (c *Client) GetVideoFrame(ctx context.Context, videoID int, timestamp float64) (*models.FrameImage, error) {
	const op = "Client.GetVideoFrame"

	endpoint := c.apiURL(fmt.Sprintf("/video/%d/frame/%s", videoID, FormatTimestamp(timestamp)))
	return c.fetchImage(ctx, op, endpoint)
}

// GetVideoFrames lists extracted frames. A zero limit requests 50.
func (c *Client) GetVideoFrames(ctx context.Context, videoID, limit int) (*models.FramesResponse, error) {
	const op = "Client.GetVideoFrames"

	if limit == 0 {
		limit = defaultHistoryLimit
	}

	var out models.FramesResponse
	endpoint := c.apiURL(fmt.Sprintf("/search/%d/frames?limit=%d", videoID, limit))
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzeVideoFrames starts frame analysis on the backend. No body is sent.
func (c *Client) AnalyzeVideoFrames(ctx context.Context, videoID int) (*models.AnalyzeFramesResponse, error) {
	const op = "Client.AnalyzeVideoFrames"

	var out models.AnalyzeFramesResponse
	endpoint := c.apiURL(fmt.Sprintf("/search/%d/analyze-frames", videoID))
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodPost, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FrameFileURL maps a stored frame_path onto the backend's static frame mount.
// "uploads/frames/7/f_001.jpg" becomes "<host>/api/frames/7/f_001.jpg"; a path
// without a frames directory keeps only its base name. Every segment is
// path-escaped, so names containing '#' or '?' stay part of the path.
func (c *Client) FrameFileURL(framePath string) string {
	segments := strings.Split(strings.ReplaceAll(framePath, "\\", "/"), "/")

	// Keep what follows the first directory named exactly "frames"
	rest := []string{path.Base(strings.Join(segments, "/"))}
	for i, seg := range segments[:len(segments)-1] {
		if seg == "frames" {
			rest = segments[i+1:]
			break
		}
	}

	escaped := make([]string, 0, len(rest))
	for _, seg := range rest {
		if seg == "" {
			continue
		}
		escaped = append(escaped, url.PathEscape(seg))
	}

	return c.rootURL("/api/frames/" + strings.Join(escaped, "/"))
}

// GetFrameFile downloads the static image behind a frame_path.
func (c *Client) GetFrameFile(ctx context.Context, framePath string) (*models.FrameImage, error) {
	const op = "Client.GetFrameFile"
	return c.fetchImage(ctx, op, c.FrameFileURL(framePath))
}

// GetThumbnail downloads a clip thumbnail. ref is either an absolute URL or a
// path relative to the host root, as found in ClipResult.ThumbnailURL.
func (c *Client) GetThumbnail(ctx context.Context, ref string) (*models.FrameImage, error) {
	const op = "Client.GetThumbnail"

	endpoint := ref
	if !strings.HasPrefix(ref, "http://") && !strings.HasPrefix(ref, "https://") {
		endpoint = c.rootURL("/" + strings.TrimLeft(ref, "/"))
	}
	return c.fetchImage(ctx, op, endpoint)
}

func (c *Client) fetchImage(ctx context.Context, op, endpoint string) (*models.FrameImage, error) {
	resp, err := c.getRaw(ctx, op, FallbackFrame, endpoint)
	if err != nil {
		return nil, err
	}

	return &models.FrameImage{
		Data:        resp.body,
		ContentType: resp.header.Get("Content-Type"),
	}, nil
}
