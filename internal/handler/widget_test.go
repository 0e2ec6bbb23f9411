package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/relnotes/widget-tracker/internal/cache"
	"github.com/relnotes/widget-tracker/internal/domain"
	"github.com/relnotes/widget-tracker/internal/handler"
	"github.com/relnotes/widget-tracker/internal/logger"
	"github.com/relnotes/widget-tracker/internal/middleware"
	"github.com/relnotes/widget-tracker/internal/retry"
)

var testRetry = retry.Config{MaxRetries: 1, BaseDelay: time.Millisecond}

type fakeStore struct {
	posts       []domain.Post
	segments    []domain.Segment
	postsErr    error
	segmentsErr error
	postsCalls  int
}

func (s *fakeStore) ListPublishedPosts(context.Context, string) ([]domain.Post, error) {
	s.postsCalls++
	if s.postsErr != nil {
		return nil, s.postsErr
	}
	return s.posts, nil
}

func (s *fakeStore) ListSegments(context.Context, string) ([]domain.Segment, error) {
	if s.segmentsErr != nil {
		return nil, s.segmentsErr
	}
	return s.segments, nil
}

type queued struct {
	postID string
	by     int
}

type fakeQueuer struct {
	mu     sync.Mutex
	queued []queued
}

func (q *fakeQueuer) Queue(postID string, by int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued = append(q.queued, queued{postID: postID, by: by})
}

func (q *fakeQueuer) all() []queued {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queued(nil), q.queued...)
}

func newTestRouter(store *fakeStore, views *fakeQueuer) *gin.Engine {
	gin.SetMode(gin.TestMode)

	h := handler.NewWidgetHandler(
		store,
		views,
		cache.NewContent(nil, 0, logger.NewNop()),
		testRetry,
		logger.NewNop(),
	)

	router := gin.New()
	api := router.Group("/api/widget")
	api.Use(middleware.BotFilter())
	api.GET("/posts", h.GetPosts)
	api.POST("/increment-views", h.IncrementViews)
	return router
}

func doRequest(router *gin.Engine, method, target, body, userAgent string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"

func TestGetPosts_RequiresTeamID(t *testing.T) {
	router := newTestRouter(&fakeStore{}, &fakeQueuer{})

	w := doRequest(router, http.MethodGet, "/api/widget/posts", "", browserUA)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestGetPosts_FiltersByRequestingDomain(t *testing.T) {
	store := &fakeStore{
		posts: []domain.Post{
			{ID: "post_open", Title: "For everyone"},
			{ID: "post_eu", Title: "EU only", SegmentIDs: []string{"seg_eu"}},
		},
		segments: []domain.Segment{
			{ID: "seg_eu", Domain: "eu.example.com"},
		},
	}
	router := newTestRouter(store, &fakeQueuer{})

	w := doRequest(router, http.MethodGet,
		"/api/widget/posts?teamId=team_1&domain=eu.example.com", "", browserUA)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool          `json:"success"`
		Posts   []domain.Post `json:"posts"`
		Count   int           `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success response")
	}
	if resp.Count != 2 || len(resp.Posts) != 2 {
		t.Fatalf("expected both posts visible to matching domain, got %d", resp.Count)
	}
}

func TestGetPosts_HidesRestrictedFromUnknownDomain(t *testing.T) {
	store := &fakeStore{
		posts: []domain.Post{
			{ID: "post_open", Title: "For everyone"},
			{ID: "post_eu", Title: "EU only", SegmentIDs: []string{"seg_eu"}},
		},
		segments: []domain.Segment{
			{ID: "seg_eu", Domain: "eu.example.com"},
		},
	}
	router := newTestRouter(store, &fakeQueuer{})

	w := doRequest(router, http.MethodGet,
		"/api/widget/posts?teamId=team_1&domain=unknown.example.org", "", browserUA)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Posts []domain.Post `json:"posts"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Posts) != 1 || resp.Posts[0].ID != "post_open" {
		t.Fatalf("expected only the unrestricted post, got %v", resp.Posts)
	}
}

func TestGetPosts_RetriesTransientStoreFailure(t *testing.T) {
	store := &fakeStore{
		postsErr: retry.Unavailable(errors.New("store down")),
	}
	router := newTestRouter(store, &fakeQueuer{})

	w := doRequest(router, http.MethodGet, "/api/widget/posts?teamId=team_1", "", browserUA)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after exhausted retries, got %d", w.Code)
	}
	if store.postsCalls != 2 {
		t.Fatalf("expected initial attempt plus one retry, got %d calls", store.postsCalls)
	}
	if !strings.Contains(w.Body.String(), "unable to load updates") {
		t.Fatalf("expected widget error state payload, got %s", w.Body.String())
	}
}

func TestGetPosts_TerminalStoreFailureFailsFast(t *testing.T) {
	store := &fakeStore{
		postsErr: retry.Terminal(errors.New("team revoked")),
	}
	router := newTestRouter(store, &fakeQueuer{})

	w := doRequest(router, http.MethodGet, "/api/widget/posts?teamId=team_1", "", browserUA)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if store.postsCalls != 1 {
		t.Fatalf("expected a single attempt for terminal failure, got %d", store.postsCalls)
	}
}

func TestIncrementViews_QueuesIncrement(t *testing.T) {
	views := &fakeQueuer{}
	router := newTestRouter(&fakeStore{}, views)

	w := doRequest(router, http.MethodPost, "/api/widget/increment-views",
		`{"postId":"post_1","incrementBy":3}`, browserUA)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got := views.all()
	if len(got) != 1 || got[0].postID != "post_1" || got[0].by != 3 {
		t.Fatalf("expected queued increment of 3 for post_1, got %v", got)
	}
}

func TestIncrementViews_DefaultsToOne(t *testing.T) {
	views := &fakeQueuer{}
	router := newTestRouter(&fakeStore{}, views)

	w := doRequest(router, http.MethodPost, "/api/widget/increment-views",
		`{"postId":"post_1"}`, browserUA)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	got := views.all()
	if len(got) != 1 || got[0].by != 1 {
		t.Fatalf("expected default increment of 1, got %v", got)
	}
}

func TestIncrementViews_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing postId", `{"incrementBy":1}`},
		{"negative increment", `{"postId":"post_1","incrementBy":-2}`},
		{"malformed body", `{"postId":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := &fakeQueuer{}
			router := newTestRouter(&fakeStore{}, views)

			w := doRequest(router, http.MethodPost, "/api/widget/increment-views", tt.body, browserUA)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			if len(views.all()) != 0 {
				t.Fatal("expected nothing queued for invalid input")
			}
		})
	}
}

func TestIncrementViews_SkipsBots(t *testing.T) {
	views := &fakeQueuer{}
	router := newTestRouter(&fakeStore{}, views)

	w := doRequest(router, http.MethodPost, "/api/widget/increment-views",
		`{"postId":"post_1","incrementBy":1}`,
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")

	// Bots still get a success response; the view just is not counted.
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for bot request, got %d", w.Code)
	}
	if len(views.all()) != 0 {
		t.Fatal("expected bot views to be dropped")
	}
}
