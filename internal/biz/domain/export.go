package domain

import (
	"strings"
	"time"
)

// ExportWindow is the half-open interval [From, To) exported for one day
type ExportWindow struct {
	From time.Time
	To   time.Time
}

// TrailingDay returns the 24h window ending at anchor
func TrailingDay(anchor time.Time) ExportWindow {
	return ExportWindow{From: anchor.Add(-24 * time.Hour), To: anchor}
}

// Day returns the window's end date in loc, which keys the export directory
func (w ExportWindow) Day(loc *time.Location) string {
	return w.To.In(loc).Format(DateLayout)
}

// Contains reports whether t lies inside the window
func (w ExportWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// ExportChunk is one size-bounded slice of export lines
type ExportChunk struct {
	Index int // 1-based
	Lines []string
	Size  int // bytes, counting one newline per line
}

// Text joins the chunk lines with newlines
func (c *ExportChunk) Text() string {
	return strings.Join(c.Lines, "\n")
}

// LineSize is the number of bytes a line occupies in a chunk
func LineSize(line string) int {
	return len(line) + 1
}

// ExportResult describes a finished export
type ExportResult struct {
	Window    ExportWindow
	Day       string
	Dir       string
	Files     []string
	LineCount int
}

// Empty reports whether the window contained no messages
func (r *ExportResult) Empty() bool {
	return r.LineCount == 0
}

// Digest is the summarized text for one day
type Digest struct {
	Day   string
	Text  string
	Quiet bool // generated from the quiet-day template, no summarizer call was made
}

// FormatMode selects how outbound text is interpreted by the destination
type FormatMode string

const (
	FormatMarkdownV2 FormatMode = "markdownv2"
	FormatPlain      FormatMode = "plain"
)

// OutboundMessage is a message sent to a destination chat
type OutboundMessage struct {
	ChatID   string
	ThreadID string // empty for the chat's main thread
	Text     string
	Mode     FormatMode
}

// DaysSince returns the number of calendar days from epoch to day, both in loc
func DaysSince(epoch, day time.Time, loc *time.Location) int {
	e := epoch.In(loc)
	d := day.In(loc)
	// compare calendar dates only, so DST shifts in loc cannot skew the count
	eNoon := time.Date(e.Year(), e.Month(), e.Day(), 12, 0, 0, 0, time.UTC)
	dNoon := time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, time.UTC)
	return int(dNoon.Sub(eNoon).Hours() / 24)
}
