package httpapi

import (
	"path"
	"strings"
)

// normalizeBasePath returns the mount prefix as "/a/b", or "" for the root.
func normalizeBasePath(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	cleaned := path.Clean("/" + trimmed)
	if cleaned == "/" {
		return ""
	}
	return cleaned
}

// buildBaseHref joins the public base URL and the mount prefix into the
// href of the page's <base> element.
func buildBaseHref(baseURL, basePath string) string {
	href := strings.TrimRight(strings.TrimSpace(baseURL), "/") + normalizeBasePath(basePath)
	if href == "" || strings.HasSuffix(href, "/") {
		return href
	}
	return href + "/"
}
