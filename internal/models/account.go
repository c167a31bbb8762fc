package models

import "time"

// ProviderID is the lowercase platform key used in connected_accounts rows
// and linking routes ("canvas", "outlook", "google").
type ProviderID string

const (
	ProviderCanvas  ProviderID = "canvas"
	ProviderOutlook ProviderID = "outlook"
	ProviderGoogle  ProviderID = "google"
)

// IsValidProvider reports whether p names a supported provider
func IsValidProvider(p ProviderID) bool {
	switch p {
	case ProviderCanvas, ProviderOutlook, ProviderGoogle:
		return true
	}
	return false
}

// Platform returns the canonical platform label for a provider ID
func (p ProviderID) Platform() Platform {
	switch p {
	case ProviderCanvas:
		return PlatformCanvas
	case ProviderOutlook:
		return PlatformOutlook
	case ProviderGoogle:
		return PlatformGoogle
	}
	return ""
}

// ConnectedAccount is one linked third-party account for a user. It is
// created and updated by the linking routes and consumed read-only by the
// source adapters.
type ConnectedAccount struct {
	ID           string     `json:"id"`
	UserID       string     `json:"userId"`
	Platform     ProviderID `json:"platform"`
	AccessToken  string     `json:"-"`
	RefreshToken string     `json:"-"`
	LastSync     time.Time  `json:"lastSync"`
}

// AccountStatus is the per-platform connection summary returned by the
// integration status endpoint. Tokens never leave the server.
type AccountStatus struct {
	ID        ProviderID `json:"id"`
	Name      string     `json:"name"`
	Connected bool       `json:"connected"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}
