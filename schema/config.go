package schema

import (
	"strings"
	"time"
)

// ServiceConfig defines defaults and limits for the capture service.
type ServiceConfig struct {
	Geometry PageGeometry
	// DocumentName is the default name of exported documents.
	DocumentName string
	// OutputDir, when set, receives a copy of every exported document.
	OutputDir     string
	DecodeTimeout time.Duration
	MaxInputBytes int64
	MaxPixels     int64
	MaxPages      int
	Title         string
	Author        string
	// Now overrides the clock used for document metadata.
	Now func() time.Time
}

const (
	// DefaultDocumentName matches the download name of the browser page.
	DefaultDocumentName = "screenshot.pdf"
	// DefaultDecodeTimeout bounds a single decode.
	DefaultDecodeTimeout = 30 * time.Second
	// DefaultMaxInputBytes bounds a single encoded payload.
	DefaultMaxInputBytes = 64 << 20
	// DefaultMaxPixels bounds the decoded surface size.
	DefaultMaxPixels = 100_000_000
	// DefaultMaxPages bounds the number of pages of one export.
	DefaultMaxPages = 500
	// DefaultTitle is the document title metadata.
	DefaultTitle = "Screenshot"
)

// NormalizeServiceConfig applies defaults and validates the config.
func NormalizeServiceConfig(cfg ServiceConfig) (ServiceConfig, error) {
	if cfg.Geometry == (PageGeometry{}) {
		cfg.Geometry = DefaultGeometry()
	}
	if err := cfg.Geometry.Validate(); err != nil {
		return ServiceConfig{}, err
	}
	if strings.TrimSpace(cfg.DocumentName) == "" {
		cfg.DocumentName = DefaultDocumentName
	}
	name, err := NormalizeDocumentName(cfg.DocumentName)
	if err != nil {
		return ServiceConfig{}, err
	}
	cfg.DocumentName = name
	if cfg.DecodeTimeout <= 0 {
		cfg.DecodeTimeout = DefaultDecodeTimeout
	}
	if cfg.MaxInputBytes <= 0 {
		cfg.MaxInputBytes = DefaultMaxInputBytes
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = DefaultMaxPixels
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return cfg, nil
}
