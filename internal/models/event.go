package models

import (
	"path"
	"strings"
	"time"
)

// UploadsPrefix is the URL prefix under which uploaded and generated files
// are served.
const UploadsPrefix = "/uploads/"

// HighlightPrefix marks URLs that point at a generated highlight reel.
const HighlightPrefix = UploadsPrefix + "highlight_"

type Event struct {
	ID           int64
	Name         string
	Date         string // YYYY-MM-DD
	HighlightURL string
}

type MediaKind string

const (
	KindPhoto MediaKind = "photo"
	KindVideo MediaKind = "video"
)

// MediaItem is an attendee upload attached to one event.
type MediaItem struct {
	ID         int64
	EventID    int64
	URL        string
	UploadedBy string
	Kind       MediaKind
	CreatedAt  time.Time
}

// FileName resolves the upload URL to a file name inside the uploads dir.
func (m MediaItem) FileName() string {
	return FileNameFromURL(m.URL)
}

// FileNameFromURL strips the uploads prefix from a served URL.
func FileNameFromURL(url string) string {
	name := strings.TrimPrefix(url, UploadsPrefix)
	return path.Clean("/" + name)[1:]
}

// IsGeneratedHighlight reports whether url references a previous reel.
func IsGeneratedHighlight(url string) bool {
	return strings.HasPrefix(url, HighlightPrefix)
}

// HighlightResult summarizes a successful run.
type HighlightResult struct {
	EventID        int64    `json:"event_id"`
	URL            string   `json:"mp4_url"`
	SizeMB         float64  `json:"size_mb"`
	ClipsUsed      int      `json:"clips_used"`
	Photos         int      `json:"photos"`
	Videos         int      `json:"videos"`
	Scored         bool     `json:"ai_scored"`
	ScoringMethods []string `json:"scoring_methods"`
}
