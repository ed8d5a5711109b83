package config

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// Config holds all application configuration
type Config struct {
	// Core settings
	UploadsDir  string `yaml:"uploads_dir"`
	TempDir     string `yaml:"temp_dir"`
	Concurrency int    `yaml:"concurrency"`

	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg"`
	Highlight HighlightConfig `yaml:"highlight"`
	Vision    VisionConfig    `yaml:"vision"`
	Faces     FacesConfig     `yaml:"faces"`
	AMQP      AMQPConfig      `yaml:"amqp"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	TriggerPerMin   int           `yaml:"trigger_per_minute"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

// FFmpegConfig carries encoder settings and the per-call timeouts.
type FFmpegConfig struct {
	Threads  int            `yaml:"threads"`
	Preset   string         `yaml:"preset"`
	CRF      int            `yaml:"crf"`
	Timeouts FFmpegTimeouts `yaml:"timeouts"`
}

type FFmpegTimeouts struct {
	Probe     time.Duration `yaml:"probe"`
	Thumbnail time.Duration `yaml:"thumbnail"`
	Keyframes time.Duration `yaml:"keyframes"`
	PhotoClip time.Duration `yaml:"photo_clip"`
	VideoClip time.Duration `yaml:"video_clip"`
	Composite time.Duration `yaml:"composite"`
	Overlay   time.Duration `yaml:"overlay"`
	Music     time.Duration `yaml:"music"`
}

type HighlightConfig struct {
	MaxPhotos         int           `yaml:"max_photos"`
	MaxVideos         int           `yaml:"max_videos"`
	PhotoDuration     time.Duration `yaml:"photo_duration"`
	VideoClipMax      time.Duration `yaml:"video_clip_max"`
	Crossfade         time.Duration `yaml:"crossfade"`
	CrossfadeMaxClips int           `yaml:"crossfade_max_clips"`
	KeyframeInterval  time.Duration `yaml:"keyframe_interval"`
	LeadIn            time.Duration `yaml:"lead_in"`
	Width             int           `yaml:"width"`
	Height            int           `yaml:"height"`
	FPS               int           `yaml:"fps"`
	Overlay           string        `yaml:"overlay"`
	MusicPath         string        `yaml:"music_path"`
	MusicVolume       float64       `yaml:"music_volume"`
	RunTimeout        time.Duration `yaml:"run_timeout"`
}

type VisionConfig struct {
	APIKey    string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	Detail    string        `yaml:"detail"`
	BatchSize int           `yaml:"batch_size"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
	ThumbSize int           `yaml:"thumb_size"`
}

// FacesConfig points at the ONNX face/smile model. An empty or missing
// model path disables the local signal.
type FacesConfig struct {
	ModelPath     string  `yaml:"model_path"`
	LibraryPath   string  `yaml:"library_path"`
	InputSize     int     `yaml:"input_size"`
	MaxFaces      int     `yaml:"max_faces"`
	MinConfidence float64 `yaml:"min_confidence"`
}

type AMQPConfig struct {
	URL      string `yaml:"url" env:"AMQP_URL"`
	Exchange string `yaml:"exchange"`
}

// Load reads configuration from file or returns defaults
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv lets deployment secrets override the file without editing it.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.Vision.APIKey = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		c.AMQP.URL = v
	}
	if v := os.Getenv("UPLOADS_DIR"); v != "" {
		c.UploadsDir = v
	}
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Default returns the built-in configuration.
func Default() *Config {
	return defaultConfig()
}

func defaultConfig() *Config {
	return &Config{
		UploadsDir:  "./uploads",
		TempDir:     "",
		Concurrency: 2,
		Server: ServerConfig{
			Addr:            ":8080",
			AllowedOrigins:  []string{"*"},
			TriggerPerMin:   10,
			ShutdownTimeout: 30 * time.Second,
		},
		FFmpeg: FFmpegConfig{
			Threads: 0,
			Preset:  "fast",
			CRF:     23,
			Timeouts: FFmpegTimeouts{
				Probe:     10 * time.Second,
				Thumbnail: 10 * time.Second,
				Keyframes: 30 * time.Second,
				PhotoClip: 30 * time.Second,
				VideoClip: 60 * time.Second,
				Composite: 300 * time.Second,
				Overlay:   120 * time.Second,
				Music:     120 * time.Second,
			},
		},
		Highlight: HighlightConfig{
			MaxPhotos:         25,
			MaxVideos:         10,
			PhotoDuration:     3 * time.Second,
			VideoClipMax:      8 * time.Second,
			Crossfade:         800 * time.Millisecond,
			CrossfadeMaxClips: 15,
			KeyframeInterval:  5 * time.Second,
			LeadIn:            2 * time.Second,
			Width:             1280,
			Height:            720,
			FPS:               30,
			Overlay:           "title",
			MusicVolume:       0.3,
			RunTimeout:        20 * time.Minute,
		},
		Vision: VisionConfig{
			Model:     "gpt-4o",
			Detail:    "low",
			BatchSize: 20,
			MaxTokens: 2000,
			Timeout:   90 * time.Second,
			ThumbSize: 512,
		},
		Faces: FacesConfig{
			InputSize:     320,
			MaxFaces:      10,
			MinConfidence: 0.5,
		},
		AMQP: AMQPConfig{
			Exchange: "highlights",
		},
	}
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
		filepath.Join(os.Getenv("HOME"), ".highlightd", "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return defaultConfig()
}
