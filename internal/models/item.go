package models

import "time"

// Platform identifies the upstream provider a feed item came from
type Platform string

const (
	PlatformCanvas  Platform = "Canvas"
	PlatformOutlook Platform = "Outlook"
	PlatformGoogle  Platform = "Google"
)

// ItemKind classifies a feed item
type ItemKind string

const (
	KindAssignment   ItemKind = "assignment"
	KindEvent        ItemKind = "event"
	KindAnnouncement ItemKind = "announcement"
)

// ItemStatus reflects the submission state of an item
type ItemStatus string

const (
	StatusPending   ItemStatus = "pending"
	StatusSubmitted ItemStatus = "submitted"
	StatusUpcoming  ItemStatus = "upcoming"
)

// Priority is the urgency bucket assigned to a feed item. Adapters set a
// default; the enricher may overwrite it.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// IsValidPriority reports whether p is one of the known priority values
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Sentinel values used by the normalizers when upstream data is missing
const (
	UnknownCourse = "Unknown Course"
	NoLink        = "#"
)

// FeedItem is the canonical, provider-agnostic item shape. At most one of
// DueDate (assignments) or StartTime (events) is populated. JSON field names
// follow the wire format consumed by the frontend.
type FeedItem struct {
	ID             string     `json:"id"`
	SourcePlatform Platform   `json:"source_platform"`
	Kind           ItemKind   `json:"type"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Course         string     `json:"course"`
	CourseID       string     `json:"course_id,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Status         ItemStatus `json:"status"`
	Priority       Priority   `json:"priority"`
	Link           string     `json:"link"`
}

// EffectiveDate returns the single timestamp used for sorting and
// notification eligibility: the due date if present, else the start time.
func (i *FeedItem) EffectiveDate() *time.Time {
	if i.DueDate != nil {
		return i.DueDate
	}
	return i.StartTime
}

// SourceBreakdown reports how many items each provider contributed to a feed.
// A failed or unlinked provider shows as zero.
type SourceBreakdown struct {
	Canvas  int `json:"canvas"`
	Outlook int `json:"outlook"`
	Google  int `json:"google"`
}

// FeedResult is the outcome of one feed build
type FeedResult struct {
	Items     []FeedItem      `json:"data"`
	Breakdown SourceBreakdown `json:"source_breakdown"`
}
