package mocks

import (
	"context"

	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

// MockExtractor returns fixed text for any path
type MockExtractor struct {
	Text string
	Err  error
}

func (m *MockExtractor) Extract(ctx context.Context, path string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}

func (m *MockExtractor) SupportedTypes() []string {
	return []string{"*/*"}
}

func (m *MockExtractor) Priority() int {
	return 1
}

// MockExtractorRegistry hands out one extractor for every MIME type
type MockExtractorRegistry struct {
	Extractor driven.TextExtractor
}

func (m *MockExtractorRegistry) Get(mimeType string) driven.TextExtractor {
	return m.Extractor
}

func (m *MockExtractorRegistry) Register(extractor driven.TextExtractor) {
	m.Extractor = extractor
}

func (m *MockExtractorRegistry) List() []string {
	return []string{"*/*"}
}
