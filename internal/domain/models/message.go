package models

// Platform identifies where a raw message was scraped from.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformReddit   Platform = "reddit"
)

// RawMessage is a scraped channel message before extraction.
// Ephemeral: it flows through the pipeline and is never persisted.
type RawMessage struct {
	Platform  Platform
	Channel   string
	MessageID string
	Text      string
	Timestamp int64 // unix seconds
}
