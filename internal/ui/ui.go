// Package ui serves the embedded browser calculator.
package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed static/*
var content embed.FS

// Handler returns an http.Handler that serves the embedded UI assets under /.
func Handler() http.Handler {
	sub, err := fs.Sub(content, "static")
	if err != nil {
		// static/ is embedded at build time.
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
