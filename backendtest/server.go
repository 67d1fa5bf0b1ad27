// Package backendtest runs an in-memory imitation of the video-analysis
// backend for tests. It serves every endpoint the client talks to and keeps
// videos, chat history and frames in memory.
package backendtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/nijaru/videochat/models"
	"github.com/nijaru/videochat/utils"
	"github.com/nijaru/videochat/validation"
)

// Request is a request as received by the fake.
type Request struct {
	Method      string
	Path        string
	RawQuery    string
	ContentType string
	Header      http.Header
	Body        []byte
}

type failure struct {
	status int
	body   string
}

type video struct {
	info     models.VideoInfo
	messages []models.ChatMessage
	frames   []models.Frame
}

// Server is the fake backend. The embedded httptest.Server's URL is the host
// root to hand to client.New.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	nextID     int
	nextMsgID  int
	videos     map[int]*video
	requests   []Request
	failures   map[string]failure
	statics    map[string][]byte
	thumbnails map[string][]byte
}

// New starts a fake backend. Callers must Close it.
func New() *Server {
	s := &Server{
		nextID:     1,
		nextMsgID:  1,
		videos:     make(map[int]*video),
		failures:   make(map[string]failure),
		statics:    make(map[string][]byte),
		thumbnails: make(map[string][]byte),
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.record)

	r.Get("/", s.serviceInfo)
	r.Get("/health", s.health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/video", func(r chi.Router) {
			r.Post("/upload", s.uploadVideo)
			r.Post("/youtube", s.processYouTube)
			r.Get("/{id}", s.getVideo)
			r.Delete("/{id}", s.deleteVideo)
			r.Get("/{id}/sections", s.getSections)
			r.Get("/{id}/frame/{ts}", s.getFrame)
		})
		r.Route("/chat", func(r chi.Router) {
			r.Post("/message", s.sendMessage)
			r.Get("/{id}/history", s.chatHistory)
			r.Delete("/{id}/history", s.clearHistory)
		})
		r.Route("/search", func(r chi.Router) {
			r.Post("/visual", s.visualSearch)
			r.Post("/native", s.nativeSearch)
			r.Get("/{id}/frames", s.listFrames)
			r.Post("/{id}/analyze-frames", s.analyzeFrames)
			r.Get("/{id}/suggestions", s.suggestions)
		})
	})

	r.Get("/api/frames/*", s.serveStatic(s.statics))
	r.Get("/api/thumbnails/*", s.serveStatic(s.thumbnails))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		utils.WriteDetail(w, "Not Found", http.StatusNotFound)
	})
	return r
}

// record keeps a copy of every request and applies injected failures.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:      r.Method,
			Path:        r.URL.Path,
			RawQuery:    r.URL.RawQuery,
			ContentType: r.Header.Get("Content-Type"),
			Header:      r.Header.Clone(),
			Body:        body,
		})
		f, failing := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if failing {
			w.WriteHeader(f.status)
			io.WriteString(w, f.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Requests returns every request received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// LastRequest returns the most recent request, or false when none arrived.
func (s *Server) LastRequest() (Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// Fail makes method+path answer with status and the raw body until cleared
// with ClearFailures.
func (s *Server) Fail(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method+" "+path] = failure{status: status, body: body}
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]failure)
}

// AddVideo stores a completed video with the given title, duration and
// sections, plus one extracted frame every frameEvery seconds. It returns the
// new video id.
func (s *Server) AddVideo(title string, duration float64, sections []models.VideoSection, frameEvery float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++

	d := duration
	v := &video{
		info: models.VideoInfo{
			ID:            id,
			Title:         title,
			URL:           "uploads/" + title,
			VideoType:     "upload",
			Status:        "completed",
			Duration:      &d,
			HasTranscript: true,
			Sections:      sections,
			CreatedAt:     models.Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format("2006-01-02T15:04:05")),
		},
	}

	if frameEvery > 0 {
		for ts, n := 0.0, 1; ts <= duration; ts, n = ts+frameEvery, n+1 {
			name := fmt.Sprintf("%d/frame_%04d.png", id, n)
			v.frames = append(v.frames, models.Frame{
				ID:        n,
				Timestamp: ts,
				FramePath: "uploads/frames/" + name,
			})
			s.statics[name] = FrameImage(ts)
		}
	}
	v.info.FrameCount = len(v.frames)

	s.videos[id] = v
	return id
}

// AddThumbnail serves data at /api/thumbnails/<name>.
func (s *Server) AddThumbnail(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbnails[name] = data
}

// FrameImage renders the deterministic PNG served for timestamp ts.
func FrameImage(ts float64) []byte {
	rng := rand.New(rand.NewSource(int64(ts * 1000)))
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(rng.Intn(256))})
		}
	}
	var buf bytes.Buffer
	png.Encode(&buf, img)
	return buf.Bytes()
}

func (s *Server) serviceInfo(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, models.ServiceInfo{
		Message: "VideoChat AI Backend is running!",
		Version: "1.0.0",
		Status:  "healthy",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, models.HealthResponse{
		Status: "healthy",
		Services: map[string]string{
			"database":        "connected",
			"gemini":          "available",
			"video_processor": "ready",
		},
	})
}

func (s *Server) uploadVideo(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeValidation(w, []string{"body", "file"}, "field required")
		return
	}
	defer file.Close()

	if !validation.IsVideoFile(header.Filename) {
		utils.WriteDetail(w, "Invalid file type. Allowed: "+strings.Join(validation.VideoExtensions, ", "), http.StatusBadRequest)
		return
	}

	id := s.AddVideo(header.Filename, 60, nil, 0)
	utils.WriteJSON(w, http.StatusOK, models.UploadResponse{
		VideoID: id,
		Status:  "processing",
		Message: "Video uploaded successfully",
	})
}

func (s *Server) processYouTube(w http.ResponseWriter, r *http.Request) {
	var req models.YouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.YouTubeURL == "" {
		writeValidation(w, []string{"body", "youtube_url"}, "field required")
		return
	}
	if err := validation.ValidateYouTubeURL(req.YouTubeURL); err != nil {
		utils.WriteDetail(w, "Invalid YouTube URL", http.StatusBadRequest)
		return
	}

	sections := []models.VideoSection{
		{ID: 1, Title: "Introduction", StartTime: 0, EndTime: 60, Description: "Opening remarks", KeyTopics: []string{"overview"}},
		{ID: 2, Title: "Main content", StartTime: 60, EndTime: 180, Description: "Core discussion", KeyTopics: []string{"details"}},
	}
	id := s.AddVideo("YouTube video", 180, sections, 30)

	s.mu.Lock()
	s.videos[id].info.VideoType = "youtube"
	s.videos[id].info.URL = req.YouTubeURL
	s.mu.Unlock()

	utils.WriteJSON(w, http.StatusOK, models.YouTubeResponse{
		VideoID:       id,
		Status:        "completed",
		Title:         "YouTube video",
		HasTranscript: true,
		SectionsCount: len(sections),
	})
}

func (s *Server) getVideo(w http.ResponseWriter, r *http.Request) {
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		utils.WriteJSON(w, http.StatusOK, v.info)
	})
}

func (s *Server) deleteVideo(w http.ResponseWriter, r *http.Request) {
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		delete(s.videos, v.info.ID)
		utils.WriteJSON(w, http.StatusOK, models.MessageResponse{Message: "Video deleted successfully"})
	})
}

func (s *Server) getSections(w http.ResponseWriter, r *http.Request) {
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		sections := v.info.Sections
		if sections == nil {
			sections = []models.VideoSection{}
		}
		utils.WriteJSON(w, http.StatusOK, models.SectionsResponse{VideoID: v.info.ID, Sections: sections})
	})
}

func (s *Server) getFrame(w http.ResponseWriter, r *http.Request) {
	ts, err := strconv.ParseFloat(chi.URLParam(r, "ts"), 64)
	if err != nil {
		writeValidation(w, []string{"path", "timestamp"}, "value is not a valid float")
		return
	}
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		if v.info.Duration != nil && ts > *v.info.Duration {
			utils.WriteDetail(w, "Timestamp exceeds video duration", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(FrameImage(ts))
	})
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, []string{"body"}, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		utils.WriteDetail(w, "Message cannot be empty", http.StatusBadRequest)
		return
	}

	s.withVideoID(w, req.VideoID, func(v *video) {
		citation := models.Citation{Text: "relevant moment", Time: 12.5, Timestamp: "00:12", CitationID: 1}
		answer := fmt.Sprintf("You asked %q. The answer is at [1].", req.Message)

		msgID := s.nextMsgID
		s.nextMsgID++
		v.messages = append(v.messages, models.ChatMessage{
			ID:        msgID,
			Message:   req.Message,
			Response:  answer,
			Citations: []models.Citation{citation},
			CreatedAt: models.Timestamp(time.Now().UTC().Format("2006-01-02T15:04:05.999999")),
		})

		utils.WriteJSON(w, http.StatusOK, models.ChatResponse{
			Response:  answer,
			Citations: []models.Citation{citation},
			MessageID: msgID,
		})
	})
}

func (s *Server) chatHistory(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		msgs := v.messages
		if limit >= 0 && len(msgs) > limit {
			msgs = msgs[len(msgs)-limit:]
		}
		if msgs == nil {
			msgs = []models.ChatMessage{}
		}
		utils.WriteJSON(w, http.StatusOK, models.ChatHistoryResponse{VideoID: v.info.ID, Messages: msgs})
	})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		v.messages = nil
		utils.WriteJSON(w, http.StatusOK, models.ClearHistoryResponse{Message: "Chat history cleared", VideoID: v.info.ID})
	})
}

func (s *Server) visualSearch(w http.ResponseWriter, r *http.Request) {
	method := "standard"
	if r.URL.Query().Get("use_native") == "true" {
		method = "native"
	}
	s.search(w, r, method)
}

func (s *Server) nativeSearch(w http.ResponseWriter, r *http.Request) {
	s.search(w, r, "native")
}

func (s *Server) search(w http.ResponseWriter, r *http.Request, method string) {
	var req models.VisualSearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidation(w, []string{"body"}, "invalid JSON body")
		return
	}

	s.withVideoID(w, req.VideoID, func(v *video) {
		query := strings.ToLower(strings.TrimSpace(req.Query))
		results := []models.SearchResult{}
		for _, f := range v.frames {
			if len(results) >= req.MaxResults {
				break
			}
			desc := frameDescription(f)
			if query == "" || !strings.Contains(strings.ToLower(desc), query) {
				continue
			}
			results = append(results, models.SearchResult{
				Timestamp:       f.Timestamp,
				Confidence:      0.9,
				Description:     desc,
				FramePath:       f.FramePath,
				ObjectsDetected: f.ObjectsDetected,
			})
		}

		clips := []models.ClipResult{}
		if len(results) > 0 {
			thumb := fmt.Sprintf("/api/thumbnails/%d_%d.png", v.info.ID, len(clips)+1)
			clips = append(clips, models.ClipResult{
				StartTime:    results[0].Timestamp,
				EndTime:      results[len(results)-1].Timestamp,
				Confidence:   0.9,
				Description:  results[0].Description,
				FrameCount:   len(results),
				Frames:       results,
				ThumbnailURL: &thumb,
			})
		}

		queryType := "object"
		resp := models.VisualSearchResponse{
			Query:            req.Query,
			Results:          results,
			Clips:            clips,
			TotalResults:     len(results),
			QueryType:        &queryType,
			ProcessingMethod: &method,
		}
		if len(results) > 0 {
			answer := fmt.Sprintf("Yes, %q appears %d time(s).", req.Query, len(results))
			resp.DirectAnswer = &answer
		}
		utils.WriteJSON(w, http.StatusOK, resp)
	})
}

func (s *Server) listFrames(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		frames := v.frames
		if limit >= 0 && len(frames) > limit {
			frames = frames[:limit]
		}
		if frames == nil {
			frames = []models.Frame{}
		}
		utils.WriteJSON(w, http.StatusOK, models.FramesResponse{VideoID: v.info.ID, Frames: frames})
	})
}

func (s *Server) analyzeFrames(w http.ResponseWriter, r *http.Request) {
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		analyzed := 0
		for i := range v.frames {
			if v.frames[i].Description != nil {
				continue
			}
			desc := fmt.Sprintf("street scene with a red car at %ss", strconv.FormatFloat(v.frames[i].Timestamp, 'f', -1, 64))
			v.frames[i].Description = &desc
			v.frames[i].ObjectsDetected = &models.DetectedObjects{
				Labels: []string{"car", "street"},
				Raw:    json.RawMessage(`["car","street"]`),
			}
			analyzed++
		}
		utils.WriteJSON(w, http.StatusOK, models.AnalyzeFramesResponse{
			Message:       "Frame analysis completed",
			AnalyzedCount: analyzed,
			TotalFrames:   len(v.frames),
		})
	})
}

func (s *Server) suggestions(w http.ResponseWriter, r *http.Request) {
	s.withVideo(w, chi.URLParam(r, "id"), func(v *video) {
		seen := map[string]bool{}
		for _, f := range v.frames {
			if f.ObjectsDetected == nil {
				continue
			}
			for _, label := range f.ObjectsDetected.Labels {
				seen[label] = true
			}
		}
		objects := make([]string, 0, len(seen))
		for label := range seen {
			objects = append(objects, label)
		}
		sort.Strings(objects)

		utils.WriteJSON(w, http.StatusOK, models.SearchSuggestionsResponse{
			VideoID:     v.info.ID,
			Suggestions: objects,
			Categories: models.SuggestionCategories{
				Objects: objects,
				People:  []string{},
				Scenes:  []string{},
				Text:    []string{},
				Actions: []string{},
				Colors:  []string{},
			},
			TotalSuggestions: len(objects),
			GenerationMethod: "frame_analysis",
		})
	})
}

func (s *Server) serveStatic(files map[string][]byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := path.Clean(chi.URLParam(r, "*"))

		s.mu.Lock()
		data, ok := files[name]
		s.mu.Unlock()

		if !ok {
			utils.WriteDetail(w, "Not Found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", contentTypeFor(name))
		w.Write(data)
	}
}

// withVideo parses rawID and runs fn with the server locked, or answers 404.
func (s *Server) withVideo(w http.ResponseWriter, rawID string, fn func(v *video)) {
	id, err := strconv.Atoi(rawID)
	if err != nil {
		writeValidation(w, []string{"path", "video_id"}, "value is not a valid integer")
		return
	}
	s.withVideoID(w, id, fn)
}

func (s *Server) withVideoID(w http.ResponseWriter, id int, fn func(v *video)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.videos[id]
	if !ok {
		utils.WriteDetail(w, "Video not found", http.StatusNotFound)
		return
	}
	fn(v)
}

func frameDescription(f models.Frame) string {
	if f.Description != nil {
		return *f.Description
	}
	return ""
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil {
		return v
	}
	return def
}

func contentTypeFor(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}

// writeValidation mimics FastAPI's 422 body.
func writeValidation(w http.ResponseWriter, loc []string, msg string) {
	utils.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{
			{"loc": loc, "msg": msg, "type": "value_error"},
		},
	})
}
