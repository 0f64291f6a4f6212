package ui

import (
	"embed"
	"io/fs"
	"net/http"
)

// static holds the embedded dashboard assets.
//
//go:embed static/*
var static embed.FS

// Handler serves the embedded dashboard at the handler root. Callers mount
// it behind a StripPrefix.
func Handler() http.Handler {
	sub, err := fs.Sub(static, "static")
	if err != nil {
		panic(err)
	}
	return http.FileServer(http.FS(sub))
}
