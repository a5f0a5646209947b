// Package web holds the dashboard page, its htmx fragments and static assets.
package web

import "embed"

// TemplatesFS embeds the page and fragment templates.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds static assets (css/js).
//
//go:embed static/*
var StaticFS embed.FS
