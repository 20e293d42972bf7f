package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"pkt.systems/shotpdf/schema"
)

// Config is the top-level application configuration.
type Config struct {
	ConfigVersion int          `mapstructure:"config_version" yaml:"config_version"`
	Page          PageConfig   `mapstructure:"page" yaml:"page"`
	Decode        DecodeConfig `mapstructure:"decode" yaml:"decode"`
	Export        ExportConfig `mapstructure:"export" yaml:"export"`
	HTTP          HTTPConfig   `mapstructure:"http" yaml:"http"`
	HubHistory    int          `mapstructure:"hub_history" yaml:"hub_history"`
}

// CurrentConfigVersion marks the supported config version.
const CurrentConfigVersion = 1

// PageConfig selects the page geometry of exported documents. Width and
// height, when both set, override the named paper. All values are in
// millimetres.
type PageConfig struct {
	Paper      string  `mapstructure:"paper" yaml:"paper"`
	Width      float64 `mapstructure:"width" yaml:"width"`
	Height     float64 `mapstructure:"height" yaml:"height"`
	ImageWidth float64 `mapstructure:"image_width" yaml:"image_width"`
	Margin     float64 `mapstructure:"margin" yaml:"margin"`
}

// DecodeConfig bounds image decoding.
type DecodeConfig struct {
	TimeoutSeconds int   `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	MaxBytes       int64 `mapstructure:"max_bytes" yaml:"max_bytes"`
	MaxPixels      int64 `mapstructure:"max_pixels" yaml:"max_pixels"`
}

// ExportConfig controls exported documents.
type ExportConfig struct {
	DocumentName string `mapstructure:"document_name" yaml:"document_name"`
	OutputDir    string `mapstructure:"output_dir" yaml:"output_dir"`
	Title        string `mapstructure:"title" yaml:"title"`
	Author       string `mapstructure:"author" yaml:"author"`
	MaxPages     int    `mapstructure:"max_pages" yaml:"max_pages"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	Addr            string `mapstructure:"addr" yaml:"addr"`
	SessionCookie   string `mapstructure:"session_cookie" yaml:"session_cookie"`
	SessionTTLHours int    `mapstructure:"session_ttl_hours" yaml:"session_ttl_hours"`
	BaseURL         string `mapstructure:"base_url" yaml:"base_url"`
	BasePath        string `mapstructure:"base_path" yaml:"base_path"`
	MaxUploadBytes  int64  `mapstructure:"max_upload_bytes" yaml:"max_upload_bytes"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ConfigVersion: CurrentConfigVersion,
		Page: PageConfig{
			Paper:  schema.DefaultPaper,
			Margin: schema.DefaultMargin,
		},
		Decode: DecodeConfig{
			TimeoutSeconds: int(schema.DefaultDecodeTimeout / time.Second),
			MaxBytes:       schema.DefaultMaxInputBytes,
			MaxPixels:      schema.DefaultMaxPixels,
		},
		Export: ExportConfig{
			DocumentName: schema.DefaultDocumentName,
			Title:        schema.DefaultTitle,
			MaxPages:     schema.DefaultMaxPages,
		},
		HTTP: HTTPConfig{
			Addr:            ":27490",
			SessionCookie:   "shotpdf_session",
			SessionTTLHours: 12,
			MaxUploadBytes:  128 << 20,
		},
		HubHistory: 64,
	}
}

// DefaultConfigPath returns the standard config path.
func DefaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".shotpdf", "config.yaml"), nil
}

// Geometry resolves the page section into a validated page geometry.
func (c PageConfig) Geometry() (schema.PageGeometry, error) {
	var geom schema.PageGeometry
	if c.Width > 0 && c.Height > 0 {
		geom = schema.PageGeometry{
			PageWidth:  c.Width,
			PageHeight: c.Height,
			ImageWidth: c.Width - 2*c.Margin,
			Margin:     c.Margin,
		}
	} else {
		paper := strings.TrimSpace(c.Paper)
		if paper == "" {
			paper = schema.DefaultPaper
		}
		var err error
		geom, err = schema.GeometryForPaper(paper, c.Margin)
		if err != nil {
			return schema.PageGeometry{}, err
		}
	}
	if c.ImageWidth > 0 {
		geom.ImageWidth = c.ImageWidth
	}
	if err := geom.Validate(); err != nil {
		return schema.PageGeometry{}, err
	}
	return geom, nil
}

// ServiceConfig maps the loaded configuration onto the capture service.
func (c Config) ServiceConfig() (schema.ServiceConfig, error) {
	geom, err := c.Page.Geometry()
	if err != nil {
		return schema.ServiceConfig{}, err
	}
	return schema.NormalizeServiceConfig(schema.ServiceConfig{
		Geometry:      geom,
		DocumentName:  c.Export.DocumentName,
		OutputDir:     c.Export.OutputDir,
		DecodeTimeout: time.Duration(c.Decode.TimeoutSeconds) * time.Second,
		MaxInputBytes: c.Decode.MaxBytes,
		MaxPixels:     c.Decode.MaxPixels,
		MaxPages:      c.Export.MaxPages,
		Title:         c.Export.Title,
		Author:        c.Export.Author,
	})
}
