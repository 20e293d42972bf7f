package httpapi

// Config defines HTTP API and UI settings.
type Config struct {
	Addr            string
	SessionCookie   string
	SessionTTLHours int
	BaseURL         string
	BasePath        string
	// MaxUploadBytes bounds the body of a single ingest request.
	MaxUploadBytes int64
}

const (
	defaultSessionCookie  = "shotpdf_session"
	defaultSessionTTL     = 12
	defaultMaxUploadBytes = 128 << 20
)

func (c Config) withDefaults() Config {
	if c.SessionCookie == "" {
		c.SessionCookie = defaultSessionCookie
	}
	if c.SessionTTLHours <= 0 {
		c.SessionTTLHours = defaultSessionTTL
	}
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = defaultMaxUploadBytes
	}
	return c
}
