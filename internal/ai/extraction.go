package ai

import (
	"context"
	"fmt"
	"strings"
)

// DefaultExtractionMaxTokens bounds the extraction reply.
const DefaultExtractionMaxTokens = 4096

// Extractor asks the model to turn raw brainstorm text into issue blocks.
type Extractor struct {
	completer Completer
	maxTokens int
}

// NewExtractor wraps a Completer. maxTokens <= 0 uses DefaultExtractionMaxTokens.
func NewExtractor(completer Completer, maxTokens int) *Extractor {
	if maxTokens <= 0 {
		maxTokens = DefaultExtractionMaxTokens
	}
	return &Extractor{completer: completer, maxTokens: maxTokens}
}

// Extract runs one blocking completion over the prompt template followed by
// the file text. Any transport or API failure comes back as an error.
func (e *Extractor) Extract(ctx context.Context, promptTemplate, fileText string) (string, error) {
	if strings.TrimSpace(promptTemplate) == "" {
		return "", fmt.Errorf("extraction prompt is empty")
	}
	text, err := e.completer.Complete(ctx, BuildExtractionPrompt(promptTemplate, fileText), "extraction", e.maxTokens)
	if err != nil {
		return "", fmt.Errorf("extraction failed: %w", err)
	}
	return text, nil
}

// BuildExtractionPrompt joins the template and the file contents with a blank line.
func BuildExtractionPrompt(promptTemplate, fileText string) string {
	return promptTemplate + "\n\n" + fileText
}
