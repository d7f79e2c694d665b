package enhancer

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseSections(t *testing.T) {
	content := `## Enhanced Text
This is the cleaned up transcript.

## Summary
A short summary of the talk.

## Key Points
- First point
- Second point

## Topics
- Databases
- Distributed systems

## Sentiment
Positive
`

	enhancedText, summary, keyPoints, topics, sentiment := parseSections(content)

	if enhancedText != "This is the cleaned up transcript." {
		t.Errorf("unexpected enhanced text: %q", enhancedText)
	}
	if summary != "A short summary of the talk." {
		t.Errorf("unexpected summary: %q", summary)
	}
	if !reflect.DeepEqual(keyPoints, []string{"First point", "Second point"}) {
		t.Errorf("unexpected key points: %v", keyPoints)
	}
	if !reflect.DeepEqual(topics, []string{"Databases", "Distributed systems"}) {
		t.Errorf("unexpected topics: %v", topics)
	}
	if sentiment != "positive" {
		t.Errorf("unexpected sentiment: %q", sentiment)
	}
}

func TestParseSectionsFallsBackToWholeContentAsSummary(t *testing.T) {
	content := "just some prose with no section headers"
	_, summary, _, _, _ := parseSections(content)
	if summary != content {
		t.Errorf("expected unsectioned content to become the summary, got %q", summary)
	}
}

func TestValidateTextRejectsBlank(t *testing.T) {
	if err := validateText("   \n\t"); !errors.Is(err, ErrNoTextToEnhance) {
		t.Errorf("expected ErrNoTextToEnhance, got %v", err)
	}
	if err := validateText("hello"); err != nil {
		t.Errorf("expected non-blank text to validate, got %v", err)
	}
}

func TestTruncateLeavesShortTextAlone(t *testing.T) {
	if got := truncate("short", 100); got != "short" {
		t.Errorf("expected short text untouched, got %q", got)
	}
}

func TestNewAnthropicRequiresAPIKey(t *testing.T) {
	if _, err := NewAnthropic(AnthropicConfig{}); err == nil {
		t.Errorf("expected error when API key is missing")
	}
}

func TestNewOpenAICompatibleRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAICompatible(OpenAICompatibleConfig{}); err == nil {
		t.Errorf("expected error when API key is missing")
	}
}
