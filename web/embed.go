// Package web embeds the page templates and static assets.
package web

import "embed"

// TemplatesFS holds the page layouts and the HTMX partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet.
//
//go:embed static/*
var StaticFS embed.FS
