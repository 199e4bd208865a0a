package domain

import "time"

type FeedLevel string

const (
	FeedInfo    FeedLevel = "info"
	FeedSuccess FeedLevel = "success"
	FeedWarning FeedLevel = "warning"
	FeedError   FeedLevel = "error"
)

// FeedEntry is one line of a player's terminal feed.
type FeedEntry struct {
	At    time.Time `json:"at"`
	Level FeedLevel `json:"level"`
	Text  string    `json:"text"`
}
