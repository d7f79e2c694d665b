// Package enhancer provides the language-model text-enhancement/
// analysis collaborator: given raw transcript text, return enhanced
// text, a summary, key points, topics, and sentiment.
package enhancer

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Result is what an Enhancer produces for the enhance_transcription
// step.
type Result struct {
	EnhancedText string
	Summary      string
	KeyPoints    []string
	Topics       []string
	Sentiment    string
	ModelUsed    string
}

// Enhancer analyzes text.
type Enhancer interface {
	Enhance(ctx context.Context, text string) (*Result, error)
	Name() string
}

var (
	ErrNoTextToEnhance = errors.New("no text to enhance")
	errNoAPIKey        = errors.New("API key not provided")
	errEmptyResponse   = errors.New("no response from API")
)

// parseSections splits a model response into the sections prompted for
// and normalizes bullet lists into slices.
func parseSections(content string) (enhancedText, summary string, keyPoints, topics []string, sentiment string) {
	sectionOf := map[string]*strings.Builder{
		"enhanced text": {},
		"summary":       {},
		"key points":    {},
		"topics":        {},
		"sentiment":     {},
	}

	var current *strings.Builder
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "##") {
			header := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(trimmed, "##")))
			if b, ok := sectionOf[header]; ok {
				current = b
				continue
			}
			current = nil
			continue
		}
		if current != nil && trimmed != "" {
			current.WriteString(trimmed)
			current.WriteString("\n")
		}
	}

	enhancedText = strings.TrimSpace(sectionOf["enhanced text"].String())
	summary = strings.TrimSpace(sectionOf["summary"].String())
	keyPoints = bulletsOf(sectionOf["key points"].String())
	topics = bulletsOf(sectionOf["topics"].String())
	sentiment = strings.ToLower(strings.TrimSpace(sectionOf["sentiment"].String()))

	if summary == "" {
		summary = strings.TrimSpace(content)
	}
	return
}

func bulletsOf(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimPrefix(line, "*")
		line = strings.TrimSpace(line)
		if line != "" {
			items = append(items, line)
		}
	}
	return items
}

func truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	return text[:maxChars] + "\n\n[Text truncated due to length...]"
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrNoTextToEnhance
	}
	return nil
}

func wrapAPIError(provider string, err error) error {
	return fmt.Errorf("%s enhancement API error: %w", provider, err)
}
