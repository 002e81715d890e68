package domain

// Package domain contains the core business concepts for the md2docx service:
// the conversion request shape and the error taxonomy surfaced to clients.
// Keep this package free of transport (HTTP) and infrastructure (pandoc) concerns.
