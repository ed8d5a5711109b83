package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Thedurancode/aitickets/internal/metrics"
	"github.com/Thedurancode/aitickets/internal/models"
	"github.com/Thedurancode/aitickets/internal/ports"
	"github.com/rs/zerolog"
)

// MessageHighlightReady is broadcast when a reel is published.
const MessageHighlightReady = "highlight_video_ready"

const notifyTimeout = 10 * time.Second

// Publisher records a finished reel on its event and tells subscribers.
type Publisher struct {
	logger     zerolog.Logger
	repo       ports.EventRepository
	notifier   ports.Notifier
	uploadsDir string
}

// NewPublisher creates a publisher. notifier may be nil.
func NewPublisher(logger zerolog.Logger, repo ports.EventRepository, notifier ports.Notifier, uploadsDir string) *Publisher {
	return &Publisher{
		logger:     logger.With().Str("component", "publisher").Logger(),
		repo:       repo,
		notifier:   notifier,
		uploadsDir: uploadsDir,
	}
}

// Publish points the event at res and then removes its previous reel. The notification is
// sent in the background and never fails the publish.
func (p *Publisher) Publish(ctx context.Context, res *models.HighlightResult) error {
	ev, err := p.repo.GetEvent(ctx, res.EventID)
	if errors.Is(err, ports.ErrNotFound) {
		p.logger.Warn().Int64("event_id", res.EventID).Msg("event disappeared before publish, keeping file unreferenced")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to reload event: %w", err)
	}

	if err := p.repo.SetHighlightURL(ctx, res.EventID, res.URL); err != nil {
		return fmt.Errorf("failed to store highlight url: %w", err)
	}

	// The old reel goes only once nothing points at it.
	if old := ev.HighlightURL; old != "" && old != res.URL && models.IsGeneratedHighlight(old) {
		p.removePrevious(old)
	}

	p.notify(ctx, res)
	return nil
}

func (p *Publisher) removePrevious(url string) {
	path := filepath.Join(p.uploadsDir, filepath.FromSlash(models.FileNameFromURL(url)))
	err := os.Remove(path)
	switch {
	case err == nil:
		p.logger.Info().Str("file", path).Msg("removed previous highlight")
	case os.IsNotExist(err):
	default:
		p.logger.Warn().Err(err).Str("file", path).Msg("failed to remove previous highlight")
	}
}

func (p *Publisher) notify(ctx context.Context, res *models.HighlightResult) {
	if p.notifier == nil {
		return
	}

	msg := ports.Message{
		Type: MessageHighlightReady,
		Data: map[string]any{
			"event_id":   res.EventID,
			"mp4_url":    res.URL,
			"size_mb":    res.SizeMB,
			"clips_used": res.ClipsUsed,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	// Detached from ctx so a finished run does not cancel delivery.
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	go func() {
		defer cancel()
		if err := p.notifier.Notify(nctx, msg); err != nil {
			metrics.NotificationsSent.WithLabelValues("publisher", "error").Inc()
			p.logger.Warn().Err(err).Msg("failed to broadcast highlight notification")
		}
	}()
}
