package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campusfeed/campusfeed/internal/models"
	"github.com/campusfeed/campusfeed/internal/ratelimit"
	"github.com/campusfeed/campusfeed/internal/testutil"
)

func newTestCanvasFetcher(baseURL, fallbackToken string) *CanvasFetcher {
	tokens := NewTokenSource(&stubAccounts{}, models.ProviderCanvas, fallbackToken)
	return NewCanvasFetcher(baseURL, tokens, ratelimit.New(0), DefaultConfig(), testutil.NullLogger())
}

func TestNewCanvasFetcher(t *testing.T) {
	fetcher := newTestCanvasFetcher("https://canvas.instructure.com/api/v1/", "token")

	if fetcher == nil {
		t.Fatal("NewCanvasFetcher() returned nil")
	}
	if fetcher.baseURL != "https://canvas.instructure.com/api/v1" {
		t.Errorf("NewCanvasFetcher() baseURL = %q, want trailing slash trimmed", fetcher.baseURL)
	}
	if fetcher.client == nil {
		t.Error("NewCanvasFetcher() client should not be nil")
	}
	if fetcher.Platform() != models.PlatformCanvas {
		t.Errorf("Platform() = %q, want %q", fetcher.Platform(), models.PlatformCanvas)
	}
	if fetcher.ProviderID() != models.ProviderCanvas {
		t.Errorf("ProviderID() = %q, want %q", fetcher.ProviderID(), models.ProviderCanvas)
	}
}

func TestCanvasFetcher_Fetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer canvas-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		switch {
		case r.URL.Path == "/courses":
			// More courses than the cap allows
			fmt.Fprint(w, `[
				{"id": 1, "name": "Operating Systems", "course_code": "CS 401"},
				{"id": 2, "name": "Linear Algebra", "course_code": "MATH 220"},
				{"id": 3, "name": "World History", "course_code": "HIST 101"},
				{"id": 4, "name": "Organic Chemistry", "course_code": "CHEM 330"}
			]`)
		case r.URL.Path == "/courses/1/assignments":
			fmt.Fprint(w, `[
				{"id": 11, "name": "Scheduler Lab", "description": "<p>Implement round robin</p>", "due_at": "2026-09-10T23:59:00Z", "html_url": "https://canvas.test/11",
				 "submission": {"workflow_state": "unsubmitted"}},
				{"id": 12, "name": "Memory Quiz", "due_at": null,
				 "submission": {"workflow_state": "submitted", "submitted_at": "2026-08-20T10:00:00Z"}}
			]`)
		case r.URL.Path == "/courses/2/assignments":
			w.WriteHeader(http.StatusInternalServerError)
		case r.URL.Path == "/courses/3/assignments":
			fmt.Fprint(w, `[{"id": 31, "name": "Essay Draft", "due_at": "2026-09-05T17:00:00Z"}]`)
		default:
			t.Errorf("unexpected request path %q", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	fetcher := newTestCanvasFetcher(server.URL, "canvas-token")

	items, err := fetcher.Fetch(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	// Course 4 is beyond the cap, course 2 failed and is skipped
	if len(items) != 3 {
		t.Fatalf("Fetch() returned %d items, want 3", len(items))
	}

	first := items[0]
	if first.ID != "canvas-11" {
		t.Errorf("item ID = %q, want %q", first.ID, "canvas-11")
	}
	if first.SourcePlatform != models.PlatformCanvas {
		t.Errorf("item SourcePlatform = %q, want %q", first.SourcePlatform, models.PlatformCanvas)
	}
	if first.Kind != models.KindAssignment {
		t.Errorf("item Kind = %q, want %q", first.Kind, models.KindAssignment)
	}
	if first.Course != "Operating Systems" {
		t.Errorf("item Course = %q, want %q", first.Course, "Operating Systems")
	}
	if first.Description != "Implement round robin" {
		t.Errorf("item Description = %q, want HTML stripped", first.Description)
	}
	if first.Status != models.StatusPending {
		t.Errorf("item Status = %q, want %q", first.Status, models.StatusPending)
	}
	if first.DueDate == nil || !first.DueDate.Equal(time.Date(2026, 9, 10, 23, 59, 0, 0, time.UTC)) {
		t.Errorf("item DueDate = %v, want 2026-09-10T23:59:00Z", first.DueDate)
	}

	if items[1].Status != models.StatusSubmitted {
		t.Errorf("submitted assignment Status = %q, want %q", items[1].Status, models.StatusSubmitted)
	}
	if items[2].Course != "World History" {
		t.Errorf("third item Course = %q, want %q", items[2].Course, "World History")
	}
}

func TestCanvasFetcher_Fetch_NoToken(t *testing.T) {
	fetcher := newTestCanvasFetcher("https://canvas.test/api/v1", "")

	_, err := fetcher.Fetch(context.Background(), "user-1")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Fetch() error = %v, want ErrNoToken", err)
	}
}

func TestCanvasFetcher_Fetch_CourseListFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := newTestCanvasFetcher(server.URL, "canvas-token")

	_, err := fetcher.Fetch(context.Background(), "user-1")
	if err == nil {
		t.Fatal("Fetch() should fail when the course list cannot be fetched")
	}
}

func TestCanvasFetcher_ValidateToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/self/profile" {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "Bearer good-token" {
			fmt.Fprint(w, `{"id": 42, "name": "Test Student"}`)
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	fetcher := newTestCanvasFetcher(server.URL, "")

	if err := fetcher.ValidateToken(context.Background(), "good-token"); err != nil {
		t.Errorf("ValidateToken() error = %v, want nil for valid token", err)
	}
	if err := fetcher.ValidateToken(context.Background(), "bad-token"); err == nil {
		t.Error("ValidateToken() should fail for rejected token")
	}
	if err := fetcher.ValidateToken(context.Background(), ""); !errors.Is(err, ErrNoToken) {
		t.Errorf("ValidateToken(\"\") error = %v, want ErrNoToken", err)
	}
}

func TestCanvasFetcher_SubmitAssignment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("submission method = %q, want POST", r.Method)
		}
		if r.URL.Path != "/courses/7/assignments/99/submissions" {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}

		var payload struct {
			Submission struct {
				SubmissionType string `json:"submission_type"`
				Body           string `json:"body"`
			} `json:"submission"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("failed to decode submission payload: %v", err)
		}
		if payload.Submission.SubmissionType != "online_text_entry" {
			t.Errorf("submission_type = %q, want %q", payload.Submission.SubmissionType, "online_text_entry")
		}
		if payload.Submission.Body != "my answer" {
			t.Errorf("submission body = %q, want %q", payload.Submission.Body, "my answer")
		}

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id": 555, "workflow_state": "submitted"}`)
	}))
	defer server.Close()

	fetcher := newTestCanvasFetcher(server.URL, "canvas-token")

	result, err := fetcher.SubmitAssignment(context.Background(), "user-1", "7", "99", "my answer")
	if err != nil {
		t.Fatalf("SubmitAssignment() error = %v", err)
	}
	if result["workflow_state"] != "submitted" {
		t.Errorf("SubmitAssignment() workflow_state = %v, want %q", result["workflow_state"], "submitted")
	}
}

func TestNormalizeCanvasAssignment(t *testing.T) {
	due := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	course := canvasCourse{ID: 5, Name: "Databases", CourseCode: "CS 340"}

	item := normalizeCanvasAssignment(canvasAssignment{
		ID:          77,
		Name:        "ER Diagram",
		Description: "Model the library schema",
		DueAt:       &due,
		HTMLURL:     "https://canvas.test/77",
	}, course)

	if item.ID != "canvas-77" {
		t.Errorf("ID = %q, want %q", item.ID, "canvas-77")
	}
	if item.Title != "ER Diagram" {
		t.Errorf("Title = %q, want %q", item.Title, "ER Diagram")
	}
	if item.Course != "Databases" {
		t.Errorf("Course = %q, want %q", item.Course, "Databases")
	}
	if item.CourseID != "5" {
		t.Errorf("CourseID = %q, want %q", item.CourseID, "5")
	}
	if item.Priority != models.PriorityMedium {
		t.Errorf("Priority = %q, want %q", item.Priority, models.PriorityMedium)
	}
	if item.Link != "https://canvas.test/77" {
		t.Errorf("Link = %q, want %q", item.Link, "https://canvas.test/77")
	}
}

func TestNormalizeCanvasAssignment_Sentinels(t *testing.T) {
	item := normalizeCanvasAssignment(canvasAssignment{ID: 1}, canvasCourse{})

	if item.Title != "Untitled" {
		t.Errorf("Title = %q, want %q", item.Title, "Untitled")
	}
	if item.Description != "No description provided" {
		t.Errorf("Description = %q, want %q", item.Description, "No description provided")
	}
	if item.Course != models.UnknownCourse {
		t.Errorf("Course = %q, want %q", item.Course, models.UnknownCourse)
	}
	if item.Link != models.NoLink {
		t.Errorf("Link = %q, want %q", item.Link, models.NoLink)
	}
	if item.DueDate != nil {
		t.Errorf("DueDate = %v, want nil", item.DueDate)
	}
}

func TestNormalizeCanvasAssignment_CourseCodeFallback(t *testing.T) {
	item := normalizeCanvasAssignment(canvasAssignment{ID: 1}, canvasCourse{ID: 9, CourseCode: "PHYS 201"})

	if item.Course != "PHYS 201" {
		t.Errorf("Course = %q, want course code fallback %q", item.Course, "PHYS 201")
	}
}

func TestNormalizeCanvasAssignment_MissingIDGetsFallback(t *testing.T) {
	item := normalizeCanvasAssignment(canvasAssignment{Name: "Orphan"}, canvasCourse{ID: 1, Name: "X"})

	if !strings.HasPrefix(item.ID, "canvas-") {
		t.Errorf("ID = %q, want canvas- prefix", item.ID)
	}
	if item.ID == "canvas-0" {
		t.Error("ID should not use the zero upstream ID")
	}
}

func TestNormalizeCanvasAssignment_SubmittedAt(t *testing.T) {
	submitted := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	item := normalizeCanvasAssignment(canvasAssignment{
		ID:         2,
		Submission: &canvasSubmission{SubmittedAt: &submitted},
	}, canvasCourse{ID: 1, Name: "X"})

	if item.Status != models.StatusSubmitted {
		t.Errorf("Status = %q, want %q", item.Status, models.StatusSubmitted)
	}
}
