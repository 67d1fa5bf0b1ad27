package client

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/nijaru/videochat/models"
	"github.com/pkg/errors"
)

// errUploadFinished stops the multipart writer once the request is over.
var errUploadFinished = errors.New("upload finished")

// UploadVideo streams r to the backend as a multipart form with a single
// "file" field named filename. The body is produced through a pipe so the
// video is never held in memory. r is not read after UploadVideo returns,
// even when the backend answers before consuming the whole body; a Read
// already in progress is waited for.
func (c *Client) UploadVideo(ctx context.Context, filename string, r io.Reader) (*models.UploadResponse, error) {
	const op = "Client.UploadVideo"

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()
	finish := func() {
		pr.CloseWithError(errUploadFinished)
		<-done
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL("/video/upload"), pr)
	if err != nil {
		finish()
		return nil, newAPIError(op, 0, errors.Wrap(err, "build request"), err.Error())
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.send(ctx, op, FallbackUpload, req)
	finish()
	if err != nil {
		return nil, err
	}

	var out models.UploadResponse
	if err := decodeBody(op, resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadVideoFile opens path and uploads it under its base name.
func (c *Client) UploadVideoFile(ctx context.Context, path string) (*models.UploadResponse, error) {
	const op = "Client.UploadVideoFile"

	f, err := os.Open(path)
	if err != nil {
		return nil, newAPIError(op, 0, errors.Wrapf(err, "open %s", path), err.Error())
	}
	defer f.Close()

	return c.UploadVideo(ctx, filepath.Base(path), f)
}

func (c *Client) ProcessYouTubeVideo(ctx context.Context, youtubeURL string) (*models.YouTubeResponse, error) {
	const op = "Client.ProcessYouTubeVideo"

	var out models.YouTubeResponse
	in := models.YouTubeRequest{YouTubeURL: youtubeURL}
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodPost, c.apiURL("/video/youtube"), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetVideo(ctx context.Context, videoID int) (*models.VideoInfo, error) {
	const op = "Client.GetVideo"

	var out models.VideoInfo
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodGet, c.apiURL(fmt.Sprintf("/video/%d", videoID)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetVideoSections(ctx context.Context, videoID int) (*models.SectionsResponse, error) {
	const op = "Client.GetVideoSections"

	var out models.SectionsResponse
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodGet, c.apiURL(fmt.Sprintf("/video/%d/sections", videoID)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteVideo removes the video and everything derived from it on the backend.
func (c *Client) DeleteVideo(ctx context.Context, videoID int) (*models.MessageResponse, error) {
	const op = "Client.DeleteVideo"

	var out models.MessageResponse
	if err := c.doJSON(ctx, op, FallbackUnknown, http.MethodDelete, c.apiURL(fmt.Sprintf("/video/%d", videoID)), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
