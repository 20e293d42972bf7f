package schema

import (
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode"
)

// NormalizeMediaType lowercases a media type and strips its parameters.
// Unparsable values are returned trimmed and lowercased.
func NormalizeMediaType(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(trimmed)
	if err != nil {
		return strings.ToLower(trimmed)
	}
	return mediaType
}

// IsImageMediaType reports whether the media type names a raster image.
func IsImageMediaType(value string) bool {
	return strings.HasPrefix(NormalizeMediaType(value), "image/")
}

// DetectMediaType resolves the media type of a payload. A specific declared
// type wins, then the type registered for the name's extension, then the type
// sniffed from the leading bytes.
func DetectMediaType(declared, name string, head []byte) string {
	mediaType := NormalizeMediaType(declared)
	if mediaType != "" && mediaType != "application/octet-stream" {
		return mediaType
	}
	if ext := filepath.Ext(name); ext != "" {
		if byExt := NormalizeMediaType(mime.TypeByExtension(strings.ToLower(ext))); byExt != "" {
			return byExt
		}
	}
	if len(head) > 0 {
		return NormalizeMediaType(http.DetectContentType(head))
	}
	return mediaType
}

// ValidateSessionID ensures a session id matches [A-Za-z0-9_-].
func ValidateSessionID(id SessionID) error {
	raw := string(id)
	if raw == "" || len(raw) > 128 {
		return ErrInvalidSession
	}
	for _, r := range raw {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			continue
		}
		if r == '-' || r == '_' {
			continue
		}
		return ErrInvalidSession
	}
	return nil
}

// NormalizeDocumentName validates a document file name and ensures a .pdf
// extension. Directory components are rejected.
func NormalizeDocumentName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || trimmed == "." || trimmed == ".." {
		return "", ErrInvalidName
	}
	if strings.ContainsAny(trimmed, `/\`) || filepath.Base(trimmed) != trimmed {
		return "", ErrInvalidName
	}
	for _, r := range trimmed {
		if unicode.IsControl(r) {
			return "", ErrInvalidName
		}
	}
	if !strings.EqualFold(filepath.Ext(trimmed), ".pdf") {
		trimmed += ".pdf"
	}
	return trimmed, nil
}
