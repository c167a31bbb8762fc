package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusfeed/campusfeed/internal/logging"
	"github.com/campusfeed/campusfeed/internal/models"
	"github.com/campusfeed/campusfeed/internal/ratelimit"
)

// Canvas calls get a slightly longer budget than the calendar providers
// because each feed build issues one course-list call plus one call per
// course.
const canvasTimeout = 10 * time.Second

// CanvasFetcher pulls assignments from the Canvas LMS REST API
type CanvasFetcher struct {
	baseURL string
	tokens  *TokenSource
	limiter *ratelimit.Limiter
	config  FetcherConfig
	logger  *logging.Logger
	client  *http.Client
}

type canvasCourse struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	CourseCode string `json:"course_code"`
}

type canvasSubmission struct {
	SubmittedAt   *time.Time `json:"submitted_at"`
	WorkflowState string     `json:"workflow_state"`
}

type canvasAssignment struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	DueAt       *time.Time        `json:"due_at"`
	HTMLURL     string            `json:"html_url"`
	Submission  *canvasSubmission `json:"submission"`
}

// NewCanvasFetcher creates a Canvas source adapter
func NewCanvasFetcher(baseURL string, tokens *TokenSource, limiter *ratelimit.Limiter, config FetcherConfig, logger *logging.Logger) *CanvasFetcher {
	return &CanvasFetcher{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		limiter: limiter,
		config:  config,
		logger:  logger,
		client: &http.Client{
			Timeout: canvasTimeout,
		},
	}
}

func (f *CanvasFetcher) Platform() models.Platform {
	return models.PlatformCanvas
}

func (f *CanvasFetcher) ProviderID() models.ProviderID {
	return models.ProviderCanvas
}

// Fetch lists the user's active course enrollments and the assignments of
// the first MaxCourses of them. A failure on one course's assignments skips
// that course rather than failing the whole fetch.
func (f *CanvasFetcher) Fetch(ctx context.Context, userID string) ([]models.FeedItem, error) {
	token, err := f.tokens.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	f.limiter.Wait(hostOf(f.baseURL))

	courses, err := f.listCourses(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to list canvas courses: %w", err)
	}

	if len(courses) > f.config.MaxCourses {
		courses = courses[:f.config.MaxCourses]
	}

	items := make([]models.FeedItem, 0)
	for _, course := range courses {
		assignments, err := f.listAssignments(ctx, token, course.ID)
		if err != nil {
			f.logger.Warn("Skipping canvas course", logging.WithFields(map[string]interface{}{
				"course": course.Name,
				"error":  err.Error(),
			}))
			continue
		}

		for _, assignment := range assignments {
			items = append(items, normalizeCanvasAssignment(assignment, course))
		}
	}

	return items, nil
}

func (f *CanvasFetcher) listCourses(ctx context.Context, token string) ([]canvasCourse, error) {
	var courses []canvasCourse
	err := f.getJSON(ctx, token, f.baseURL+"/courses?enrollment_state=active", &courses)
	return courses, err
}

func (f *CanvasFetcher) listAssignments(ctx context.Context, token string, courseID int64) ([]canvasAssignment, error) {
	url := fmt.Sprintf("%s/courses/%d/assignments?include[]=submission", f.baseURL, courseID)
	var assignments []canvasAssignment
	err := f.getJSON(ctx, token, url, &assignments)
	return assignments, err
}

// ValidateToken checks a candidate token against the profile endpoint before
// the linking flow persists it.
func (f *CanvasFetcher) ValidateToken(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("canvas: %w", ErrNoToken)
	}
	var profile map[string]interface{}
	if err := f.getJSON(ctx, token, f.baseURL+"/users/self/profile", &profile); err != nil {
		return fmt.Errorf("canvas token rejected: %w", err)
	}
	return nil
}

// SubmitAssignment posts an online_text_entry submission for an assignment.
// Outside the feed hot path but part of the Canvas adapter's contract.
func (f *CanvasFetcher) SubmitAssignment(ctx context.Context, userID, courseID, assignmentID, body string) (map[string]interface{}, error) {
	token, err := f.tokens.Token(ctx, userID)
	if err != nil {
		return nil, err
	}

	payload := map[string]interface{}{
		"submission": map[string]string{
			"submission_type": "online_text_entry",
			"body":            body,
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	submitURL := fmt.Sprintf("%s/courses/%s/assignments/%s/submissions", f.baseURL, url.PathEscape(courseID), url.PathEscape(assignmentID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, submitURL, strings.NewReader(string(encoded)))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("submission request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("canvas returned status %d on submission", resp.StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode submission response: %w", err)
	}

	return result, nil
}

func (f *CanvasFetcher) getJSON(ctx context.Context, token, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("canvas returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// normalizeCanvasAssignment maps one Canvas assignment to the canonical
// feed item shape. Pure; missing upstream fields become the documented
// sentinels.
func normalizeCanvasAssignment(assignment canvasAssignment, course canvasCourse) models.FeedItem {
	id := "canvas-" + strconv.FormatInt(assignment.ID, 10)
	if assignment.ID == 0 {
		id = "canvas-" + uuid.NewString()
	}

	title := assignment.Name
	if title == "" {
		title = "Untitled"
	}

	description := "No description provided"
	if assignment.Description != "" {
		description = cleanDescription(assignment.Description)
	}

	courseName := course.Name
	if courseName == "" {
		courseName = course.CourseCode
	}
	if courseName == "" {
		courseName = models.UnknownCourse
	}

	status := models.StatusPending
	if assignment.Submission != nil &&
		(assignment.Submission.SubmittedAt != nil || assignment.Submission.WorkflowState == "submitted") {
		status = models.StatusSubmitted
	}

	link := assignment.HTMLURL
	if link == "" {
		link = models.NoLink
	}

	return models.FeedItem{
		ID:             id,
		SourcePlatform: models.PlatformCanvas,
		Kind:           models.KindAssignment,
		Title:          title,
		Description:    description,
		Course:         courseName,
		CourseID:       strconv.FormatInt(course.ID, 10),
		DueDate:        assignment.DueAt,
		Status:         status,
		Priority:       models.PriorityMedium,
		Link:           link,
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
