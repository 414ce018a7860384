// Package intel analyzes radio traffic for the dispatch dashboard.
//
// Two analyzers exist: a remote summarization service reached over HTTP, and
// an offline keyword classifier used when no service is configured. A remote
// failure surfaces as ErrUnavailable and never takes the dashboard down.
package intel

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnavailable means the remote collaborator could not serve the request.
var ErrUnavailable = errors.New("intel service unavailable")

// Priority ranks how urgently a transmission needs a response.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Analysis is the result of analyzing one transcript.
type Analysis struct {
	Summary           string   `json:"summary"`
	Alerts            []string `json:"alerts"`
	Priority          Priority `json:"priority,omitempty"`
	SuggestedResponse string   `json:"suggestedResponse,omitempty"`
}

// Speech is synthesized audio for a piece of text.
type Speech struct {
	AudioDataURI string `json:"audioDataUri"`
}

// Analyzer summarizes a radio transcript.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Analysis, error)
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Speech, error)
}

// KeywordAnalyzer classifies transcripts offline by keyword presence.
type KeywordAnalyzer struct{}

var (
	urgentKeywords     = []string{"urgent", "emergency"}
	assistanceKeywords = []string{"assistance", "backup"}
)

// Analyze never fails. Keyword matching is case-insensitive substring
// matching; urgent keywords outrank assistance keywords.
func (KeywordAnalyzer) Analyze(_ context.Context, text string) (*Analysis, error) {
	lower := strings.ToLower(text)
	urgent := matches(lower, urgentKeywords)
	assistance := matches(lower, assistanceKeywords)

	analysis := &Analysis{
		Summary: fmt.Sprintf("Communication received with %d words.", len(strings.Fields(text))),
		Alerts:  []string{},
	}
	switch {
	case len(urgent) > 0:
		analysis.Priority = PriorityHigh
		analysis.SuggestedResponse = "Immediate response required"
	case len(assistance) > 0:
		analysis.Priority = PriorityMedium
		analysis.SuggestedResponse = "Dispatch backup if available"
	default:
		analysis.Priority = PriorityLow
		analysis.SuggestedResponse = "Monitor situation"
	}

	for _, kw := range append(urgent, assistance...) {
		analysis.Alerts = append(analysis.Alerts, fmt.Sprintf("Keyword detected: %s", kw))
	}
	return analysis, nil
}

func matches(text string, keywords []string) []string {
	var found []string
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			found = append(found, kw)
		}
	}
	return found
}
