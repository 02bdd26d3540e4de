// Package sources holds the external data sources the worker pulls transcripts from.
//
// YouTube implementation is split across two files by responsibility:
//
//	youtube_innertube.go  - Innertube API types, constants, and low-level HTTP primitives
//	youtube_transcript.go - track selection, outcome classification, timedtext parsing
package sources
