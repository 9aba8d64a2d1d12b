package extractors

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
)

var _ driven.TextExtractor = (*PDFExtractor)(nil)

// CommandRunner runs an external program and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// pdfTimeout bounds a single pdftotext run
const pdfTimeout = 2 * time.Minute

// PDFExtractor extracts text with poppler's pdftotext.
// Scanned, image-only PDFs produce empty text; there is no OCR fallback.
type PDFExtractor struct {
	runner CommandRunner
}

// NewPDFExtractor creates a PDF extractor. A nil runner uses os/exec.
func NewPDFExtractor(runner CommandRunner) *PDFExtractor {
	if runner == nil {
		runner = ExecRunner{}
	}
	return &PDFExtractor{runner: runner}
}

func (e *PDFExtractor) Extract(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
	defer cancel()

	out, err := e.runner.Run(ctx, "pdftotext", "-enc", "UTF-8", "-layout", path, "-")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", domain.ErrServiceUnavailable, InstallInstructions())
		}
		return "", fmt.Errorf("pdftotext: %w", err)
	}

	// pdftotext separates pages with form feeds
	text := strings.ReplaceAll(string(out), "\f", "\n\n")
	return strings.TrimSpace(text), nil
}

// InstallInstructions explains how to install pdftotext.
func InstallInstructions() string {
	return "pdftotext not found; install poppler (macOS: brew install poppler, Debian/Ubuntu: apt install poppler-utils)"
}

func (e *PDFExtractor) SupportedTypes() []string {
	return []string{MIMEPDF}
}

func (e *PDFExtractor) Priority() int {
	return 50
}
