package models

import "time"

// DownloadLink is a short-lived URL for a stored object.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
