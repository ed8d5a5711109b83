package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Thedurancode/aitickets/internal/metrics"
	json "github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// ErrVisionUnavailable means no API key is configured.
var ErrVisionUnavailable = errors.New("vision scoring unavailable")

// ErrRefused is returned when the model declines to score a batch.
var ErrRefused = errors.New("vision model refused the request")

const visionBreakerName = "vision-api"

// VisionConfig configures the remote vision scorer.
type VisionConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	Detail    string
	MaxTokens int
	Timeout   time.Duration
	ThumbSize int
	Breaker   BreakerSettings
}

// Thumbnailer downscales an image before upload.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, input, output string, width int) error
}

// chatCompleter is the slice of the OpenAI client the scorer needs.
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// VisionScorer rates batches of images with a multimodal chat model.
type VisionScorer struct {
	logger  zerolog.Logger
	cfg     VisionConfig
	chat    chatCompleter
	thumbs  Thumbnailer
	breaker *gobreaker.CircuitBreaker[[]VisionScore]
}

// NewVisionScorer builds a scorer backed by the OpenAI API. thumbs may be
// nil, in which case original files are uploaded.
func NewVisionScorer(logger zerolog.Logger, cfg VisionConfig, thumbs Thumbnailer) (*VisionScorer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrVisionUnavailable
	}

	clientOpts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(clientOpts...)

	return newVisionScorer(logger, cfg, &client.Chat.Completions, thumbs), nil
}

func newVisionScorer(logger zerolog.Logger, cfg VisionConfig, chat chatCompleter, thumbs Thumbnailer) *VisionScorer {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Detail == "" {
		cfg.Detail = "low"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2000
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}
	if cfg.ThumbSize <= 0 {
		cfg.ThumbSize = 512
	}
	if cfg.Breaker == (BreakerSettings{}) {
		cfg.Breaker = DefaultBreakerSettings
	}

	logger = logger.With().Str("scorer", "vision").Logger()
	return &VisionScorer{
		logger:  logger,
		cfg:     cfg,
		chat:    chat,
		thumbs:  thumbs,
		breaker: newBreaker[[]VisionScore](logger, visionBreakerName, cfg.Breaker),
	}
}

type scoringResponse struct {
	Scores []VisionScore `json:"scores"`
}

// ScoreBatch rates frames in one request. Returned scores carry
// ImageIndex as a position in frames. Any failure scores nothing.
func (v *VisionScorer) ScoreBatch(ctx context.Context, dir string, frames []Frame) ([]VisionScore, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	// sent[i] is the frames index of the i-th image in the request.
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(frames)+1)
	parts = append(parts, openai.TextContentPart(""))
	sent := make([]int, 0, len(frames))
	labels := make([]string, 0, len(frames))
	for i, f := range frames {
		url, err := v.encodeImage(ctx, dir, f.Path)
		if err != nil {
			v.logger.Warn().Err(err).Str("image", f.Path).Msg("skipping unreadable image")
			continue
		}
		sent = append(sent, i)
		labels = append(labels, f.Label)
		parts = append(parts, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
			URL:    url,
			Detail: v.cfg.Detail,
		}))
	}
	if len(sent) == 0 {
		return nil, fmt.Errorf("no encodable images in batch")
	}
	parts[0] = openai.TextContentPart(scoringPrompt(labels))

	scores, err := v.breaker.Execute(func() ([]VisionScore, error) {
		return v.complete(ctx, parts)
	})
	if recordBreakerResult(visionBreakerName, err) {
		metrics.VisionBatches.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("vision circuit open: %w", err)
	}
	if err != nil {
		metrics.VisionBatches.WithLabelValues("error").Inc()
		return nil, err
	}

	out := make([]VisionScore, 0, len(scores))
	for _, s := range scores {
		if s.ImageIndex < 0 || s.ImageIndex >= len(sent) {
			continue
		}
		s.ImageIndex = sent[s.ImageIndex]
		out = append(out, s)
	}
	metrics.VisionBatches.WithLabelValues("success").Inc()

	v.logger.Debug().
		Int("images", len(sent)).
		Int("scores", len(out)).
		Msg("vision batch scored")

	return out, nil
}

func (v *VisionScorer) complete(ctx context.Context, parts []openai.ChatCompletionContentPartUnionParam) ([]VisionScore, error) {
	ctx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	resp, err := v.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(parts),
		},
		Model:       v.cfg.Model,
		MaxTokens:   openai.Int(int64(v.cfg.MaxTokens)),
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("vision model returned no choices")
	}

	msg := resp.Choices[0].Message
	if msg.Refusal != "" {
		return nil, fmt.Errorf("%w: %s", ErrRefused, msg.Refusal)
	}
	return parseScores(msg.Content)
}

func parseScores(raw string) ([]VisionScore, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("vision model returned empty content")
	}
	var parsed scoringResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse vision scores: %w", err)
	}
	if len(parsed.Scores) == 0 {
		return nil, errors.New("vision model returned no scores")
	}

	// Entries off the 1-10 scale are dropped rather than clamped.
	scores := parsed.Scores[:0]
	for _, s := range parsed.Scores {
		if s.InRange() {
			scores = append(scores, s)
		}
	}
	if len(scores) == 0 {
		return nil, errors.New("vision model returned no scores within 1-10")
	}
	return scores, nil
}

// encodeImage returns a data URL of a downscaled copy of path, or of
// path itself when downscaling fails.
func (v *VisionScorer) encodeImage(ctx context.Context, dir, path string) (string, error) {
	src, mime := path, mimeFor(path)

	if v.thumbs != nil && dir != "" {
		thumb, err := os.CreateTemp(dir, "thumb_*.jpg")
		if err == nil {
			thumb.Close()
			defer os.Remove(thumb.Name())
			if err := v.thumbs.Thumbnail(ctx, path, thumb.Name(), v.cfg.ThumbSize); err == nil {
				src, mime = thumb.Name(), "image/jpeg"
			} else {
				v.logger.Debug().Err(err).Str("image", path).Msg("thumbnail failed, sending original")
			}
		}
	}

	data, err := os.ReadFile(src)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("empty image: %s", src)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func mimeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "image/png"
	}
}

func scoringPrompt(labels []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are scoring event/party media for an automated highlight reel. "+
		"There are %d images below, numbered 0 to %d. ", len(labels), len(labels)-1)
	b.WriteString("For each image, rate on a scale of 1-10:\n" +
		"- energy: How much excitement, action, or energy is in the scene\n" +
		"- composition: Visual quality, framing, clarity (blurry/dark = low)\n" +
		"- people: How many people are visible and how prominent they are\n" +
		"- emotion: Fun factor, smiles, celebration, memorable moments\n" +
		"Give a brief 5-word description of each image.\n\n")
	b.WriteString(`Respond with JSON only: {"scores":[{"image_index":0,"energy":1,"composition":1,"people":1,"emotion":1,"description":"..."}]}` + "\n\n")
	b.WriteString("Image labels:\n")
	for i, l := range labels {
		fmt.Fprintf(&b, "  Image %d: %s\n", i, l)
	}
	return b.String()
}
