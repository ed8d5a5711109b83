package pipeline

import (
	"context"
	"errors"
)

// Stage is a step of a highlight run.
type Stage int

const (
	StageIdle Stage = iota
	StageSelecting
	StageScoring
	StageBuilding
	StageSequencing
	StageCompositing
	StageOverlaying
	StagePublishing
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageIdle:        "idle",
	StageSelecting:   "selecting",
	StageScoring:     "scoring",
	StageBuilding:    "building_clips",
	StageSequencing:  "sequencing",
	StageCompositing: "compositing",
	StageOverlaying:  "overlaying",
	StagePublishing:  "publishing",
	StageDone:        "done",
	StageFailed:      "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Terminal reports whether the run is over.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// MarshalText lets stages appear by name in JSON status payloads.
func (s Stage) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal outcomes of a run. Everything else degrades.
var (
	ErrEventNotFound  = errors.New("event not found")
	ErrNoMedia        = errors.New("no media uploaded for this event")
	ErrNoUsableMedia  = errors.New("no valid media files found on disk")
	ErrAllClipsFailed = errors.New("all media files failed to process")
	ErrEmptyOutput    = errors.New("ffmpeg produced no output")
)

// Observer is told about every stage a run enters.
type Observer func(Stage)

type observerKey struct{}

// WithObserver attaches a stage observer to runs started with ctx.
func WithObserver(ctx context.Context, obs Observer) context.Context {
	return context.WithValue(ctx, observerKey{}, obs)
}

func observerFrom(ctx context.Context) Observer {
	if obs, ok := ctx.Value(observerKey{}).(Observer); ok && obs != nil {
		return obs
	}
	return func(Stage) {}
}
