package httpapi

import (
	"embed"
	"io/fs"
)

// assets holds the paste page and its script and stylesheet.
//
//go:embed assets
var embeddedAssets embed.FS

var assetsFS = subAssets()

func subAssets() fs.FS {
	sub, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		return embeddedAssets
	}
	return sub
}
