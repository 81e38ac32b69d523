package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port           int    `envconfig:"PORT" default:"8080"`
	AllowedOrigins string `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:3000"`
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`

	CanvasWidth        float64 `envconfig:"CANVAS_WIDTH" default:"400"`
	CanvasHeight       float64 `envconfig:"CANVAS_HEIGHT" default:"500"`
	MinStickerSize     float64 `envconfig:"MIN_STICKER_SIZE" default:"20"`
	MinOverlap         float64 `envconfig:"MIN_OVERLAP" default:"1"`
	MaxStickers        int     `envconfig:"MAX_STICKERS" default:"50"`
	HistoryDepth       int     `envconfig:"HISTORY_DEPTH" default:"100"`
	DefaultStickerSize float64 `envconfig:"DEFAULT_STICKER_SIZE" default:"100"`

	NudgeStep          float64 `envconfig:"NUDGE_STEP" default:"1"`
	NudgeStepLarge     float64 `envconfig:"NUDGE_STEP_LARGE" default:"10"`
	RotationSnap       float64 `envconfig:"ROTATION_SNAP" default:"15"`
	HandleRadius       float64 `envconfig:"HANDLE_RADIUS" default:"10"`
	RotateHandleOffset float64 `envconfig:"ROTATE_HANDLE_OFFSET" default:"30"`

	CheckoutSecret string        `envconfig:"CHECKOUT_SECRET" default:"dev-secret-change-in-production"`
	CheckoutTTL    time.Duration `envconfig:"CHECKOUT_TTL" default:"24h"`

	SessionIdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" default:"30m"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings no scene could be built from.
func (c *Config) Validate() error {
	var errs []error
	if c.CanvasWidth <= 0 || c.CanvasHeight <= 0 {
		errs = append(errs, fmt.Errorf("canvas size %vx%v must be positive", c.CanvasWidth, c.CanvasHeight))
	}
	if c.MinStickerSize <= 0 {
		errs = append(errs, fmt.Errorf("min sticker size %v must be positive", c.MinStickerSize))
	}
	if c.MinOverlap <= 0 || c.MinOverlap > 1 {
		errs = append(errs, fmt.Errorf("min overlap %v outside (0, 1]", c.MinOverlap))
	}
	if c.MaxStickers < 0 {
		errs = append(errs, fmt.Errorf("max stickers %d must not be negative", c.MaxStickers))
	}
	if c.HistoryDepth <= 0 {
		errs = append(errs, fmt.Errorf("history depth %d must be positive", c.HistoryDepth))
	}
	if c.DefaultStickerSize < c.MinStickerSize {
		errs = append(errs, fmt.Errorf("default sticker size %v below min %v", c.DefaultStickerSize, c.MinStickerSize))
	}
	if c.CheckoutSecret == "" {
		errs = append(errs, errors.New("checkout secret is required"))
	}
	if _, err := c.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Origins splits AllowedOrigins into a list.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// SlogLevel parses LogLevel.
func (c *Config) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", c.LogLevel, err)
	}
	return lvl, nil
}
