// Package web embeds the page templates and static assets of the UI.
package web

import "embed"

// TemplatesFS holds templates/*.html: full pages plus the HTMX partials.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds the stylesheet and the small client script.
//
//go:embed static/*
var StaticFS embed.FS
