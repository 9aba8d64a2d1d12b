package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/sercha-docqa/internal/cache"
	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-docqa/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-docqa/internal/extractors"
	"github.com/custodia-labs/sercha-docqa/internal/postprocessors"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

// Ingestion defaults.
const (
	DefaultPreviewWords = 1500

	// Documents with more chunks than LargeDocumentChunks are embedded
	// sequentially in batches of LargeEmbedBatch.
	LargeDocumentChunks = 100
	LargeEmbedBatch     = 50
	DefaultEmbedBatch   = 64
	embedConcurrency    = 4

	extractionHint = "Could not extract text from file. The file may be a scanned image, or text extraction failed. OCR fallback is not available."
)

// DefaultAllowedExtensions lists the upload types with a registered extractor.
var DefaultAllowedExtensions = []string{".pdf", ".docx", ".doc", ".txt", ".md", ".markdown", ".html", ".htm"}

// IngestionConfig holds IngestionService dependencies
type IngestionConfig struct {
	Tracker    *TaskTracker
	Files      driven.FileStore
	Extractors driven.ExtractorRegistry
	Pipeline   driven.PostProcessorPipeline
	Provider   driven.CapabilityProvider
	Store      driven.DocumentStore
	Runner     driven.JobRunner

	// SearchCache is cleared after every stored document
	SearchCache *cache.Cache[[]domain.SearchResult]

	AllowedExtensions []string
	PreviewWords      int
	SummaryWords      int

	Logger *slog.Logger
}

// ingestionService implements the IngestionService interface
type ingestionService struct {
	tracker      *TaskTracker
	files        driven.FileStore
	extractors   driven.ExtractorRegistry
	pipeline     driven.PostProcessorPipeline
	provider     driven.CapabilityProvider
	store        driven.DocumentStore
	runner       driven.JobRunner
	searchCache  *cache.Cache[[]domain.SearchResult]
	allowed      map[string]bool
	previewWords int
	summaryWords int
	logger       *slog.Logger
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(cfg IngestionConfig) driving.IngestionService {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = postprocessors.DefaultPipeline(postprocessors.DefaultChunkConfig(), false)
	}
	if len(cfg.AllowedExtensions) == 0 {
		cfg.AllowedExtensions = DefaultAllowedExtensions
	}
	if cfg.PreviewWords <= 0 {
		cfg.PreviewWords = DefaultPreviewWords
	}
	if cfg.SummaryWords <= 0 {
		cfg.SummaryWords = DefaultSummaryWords
	}

	allowed := make(map[string]bool, len(cfg.AllowedExtensions))
	for _, ext := range cfg.AllowedExtensions {
		allowed[strings.ToLower(ext)] = true
	}

	return &ingestionService{
		tracker:      cfg.Tracker,
		files:        cfg.Files,
		extractors:   cfg.Extractors,
		pipeline:     cfg.Pipeline,
		provider:     cfg.Provider,
		store:        cfg.Store,
		runner:       cfg.Runner,
		searchCache:  cfg.SearchCache,
		allowed:      allowed,
		previewWords: cfg.PreviewWords,
		summaryWords: cfg.SummaryWords,
		logger:       cfg.Logger,
	}
}

// StartIngestion validates the upload, stores it and schedules processing.
// The content is consumed before returning; processing continues in the background.
func (s *ingestionService) StartIngestion(ctx context.Context, content io.Reader, filename string) (string, error) {
	filename = strings.TrimSpace(filename)
	if filename == "" {
		return "", fmt.Errorf("%w: filename is required", domain.ErrInvalidInput)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !s.allowed[ext] {
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFileType, ext)
	}

	task, err := s.tracker.Start(ctx)
	if err != nil {
		return "", err
	}
	logger := s.logger.With("task_id", task.ID, "filename", filename)

	_ = s.tracker.Progress(ctx, task.ID, domain.ProgressStarted, "Starting document processing")

	path, size, err := s.files.Save(ctx, task.ID, extractors.SafeFilename(filename), content)
	if err != nil {
		logger.Error("failed to save upload", "error", err)
		_ = s.tracker.Fail(ctx, task.ID, fmt.Sprintf("Processing failed: %v", err))
		return "", fmt.Errorf("save upload: %w", err)
	}
	_ = s.tracker.Progress(ctx, task.ID, domain.ProgressSaved, "File saved, extracting text")

	err = s.runner.Submit(ctx, "ingest:"+task.ID, func(jobCtx context.Context) {
		s.process(jobCtx, task.ID, filename, path, size)
	})
	if err != nil {
		logger.Error("failed to schedule ingestion", "error", err)
		_ = s.tracker.Fail(ctx, task.ID, fmt.Sprintf("Processing failed: %v", err))
		_ = s.files.Remove(context.WithoutCancel(ctx), path)
		return "", fmt.Errorf("schedule ingestion: %w", err)
	}

	logger.Info("upload accepted", "size", size)
	return task.ID, nil
}

// process runs extraction through persistence for one upload. Every exit
// path leaves the task terminal and the stored upload removed.
func (s *ingestionService) process(ctx context.Context, taskID, filename, path string, size int64) {
	logger := s.logger.With("task_id", taskID, "filename", filename)
	start := time.Now()

	defer func() {
		if err := s.files.Remove(context.WithoutCancel(ctx), path); err != nil {
			logger.Warn("could not remove upload", "path", path, "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingestion panicked", "panic", r)
			_ = s.settle(ctx, logger, func(ctx context.Context) error {
				return s.tracker.Fail(ctx, taskID, fmt.Sprintf("Processing failed: %v", r))
			})
		}
	}()

	fail := func(message string, err error) {
		logger.Error("document processing failed", "reason", message, "error", err)
		if err := s.settle(ctx, logger, func(ctx context.Context) error {
			return s.tracker.Fail(ctx, taskID, message)
		}); err != nil {
			logger.Error("failed to mark task failed", "error", err)
		}
	}

	fileType := extractors.DetectFileType(filename)
	text, err := s.extract(ctx, fileType, path)
	if err != nil || strings.TrimSpace(text) == "" {
		fail(extractionHint, err)
		if saved, perr := s.files.Preserve(context.WithoutCancel(ctx), path); perr != nil {
			logger.Warn("could not preserve failed upload", "error", perr)
		} else {
			logger.Info("preserved failed upload for inspection", "path", saved)
		}
		return
	}
	_ = s.tracker.Progress(ctx, taskID, domain.ProgressExtracted, "Text extracted, generating summary")

	summary := s.summarize(ctx, text)
	_ = s.tracker.Progress(ctx, taskID, domain.ProgressSummary, "Summary generated, creating embeddings")

	texts := postprocessors.Texts(s.pipeline.Process(text))
	if len(texts) == 0 {
		fail("Embedding generation failed", nil)
		return
	}
	embeddings := s.embed(ctx, texts)
	_ = s.tracker.Progress(ctx, taskID, domain.ProgressEmbedded, "Embeddings created, saving to database")

	chunks := make([]domain.ChunkData, len(texts))
	for i := range texts {
		chunks[i] = domain.ChunkData{Text: texts[i], Embedding: embeddings[i]}
	}

	docID, err := s.store.CreateDocument(ctx, filename, text, summary, chunks)
	if err != nil {
		fail(fmt.Sprintf("Processing failed: %v", err), err)
		return
	}
	if err := s.store.UpdateDocumentMetadata(ctx, docID, fileType, size); err != nil {
		logger.Warn("failed to record file metadata", "doc_id", docID, "error", err)
	}

	if s.searchCache != nil {
		s.searchCache.Clear()
	}

	result := &domain.TaskResult{
		DocumentID:  docID,
		Title:       filename,
		ChunksCount: len(chunks),
		FileSize:    size,
		FileType:    fileType,
	}
	err = s.settle(ctx, logger, func(ctx context.Context) error {
		return s.tracker.Complete(ctx, taskID, "Document processed successfully", result)
	})
	if err != nil {
		logger.Error("failed to complete task", "error", err)
		return
	}
	logger.Info("document processed", "doc_id", docID, "chunks", len(chunks), "took", time.Since(start))
}

// settle writes a terminal task state detached from ctx's cancellation,
// retrying once. A task left processing is only removed by cleanup.
func (s *ingestionService) settle(ctx context.Context, logger *slog.Logger, write func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	err := write(ctx)
	if err == nil {
		return nil
	}
	logger.Warn("terminal task update failed, retrying", "error", err)
	return write(ctx)
}

func (s *ingestionService) extract(ctx context.Context, fileType, path string) (string, error) {
	extractor := s.extractors.Get(fileType)
	if extractor == nil {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, fileType)
	}
	text, err := extractor.Extract(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
	}
	return text, nil
}

// summarize summarizes the preview window. On failure the leading words of
// the preview stand in for the summary.
func (s *ingestionService) summarize(ctx context.Context, text string) string {
	words := strings.Fields(text)
	if len(words) > s.previewWords {
		words = words[:s.previewWords]
	}
	preview := strings.Join(words, " ")

	summary, err := s.provider.Summarize(ctx, preview, s.summaryWords)
	if err != nil || strings.TrimSpace(summary) == "" {
		s.logger.Warn("summary generation failed, using leading words", "error", err)
		if len(words) > s.summaryWords {
			words = words[:s.summaryWords]
		}
		return strings.Join(words, " ")
	}
	return strings.TrimSpace(summary)
}

// embed returns one embedding per text. Large documents are embedded
// sequentially in small batches; smaller ones in concurrent batches.
// A failed batch gets zero vectors.
func (s *ingestionService) embed(ctx context.Context, texts []string) [][]float32 {
	out := make([][]float32, len(texts))

	batchSize, limit := DefaultEmbedBatch, embedConcurrency
	if len(texts) > LargeDocumentChunks {
		batchSize, limit = LargeEmbedBatch, 1
		s.logger.Info("embedding large document sequentially", "chunks", len(texts), "batch_size", batchSize)
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for lo := 0; lo < len(texts); lo += batchSize {
		hi := min(lo+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := s.provider.EmbedBatch(ctx, texts[lo:hi])
			if err != nil || len(vecs) != hi-lo {
				s.logger.Warn("embedding batch failed, using zero vectors", "from", lo, "to", hi, "error", err)
				vecs = make([][]float32, hi-lo)
				for i := range vecs {
					vecs[i] = make([]float32, s.provider.Dimensions())
				}
			}
			copy(out[lo:hi], vecs)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// GetTaskStatus returns the task record, or the not_found sentinel
func (s *ingestionService) GetTaskStatus(ctx context.Context, taskID string) (*domain.Task, error) {
	return s.tracker.Get(ctx, taskID)
}

// CleanupTasks removes task records older than maxAge
func (s *ingestionService) CleanupTasks(ctx context.Context, maxAge time.Duration) (int, error) {
	return s.tracker.Cleanup(ctx, maxAge)
}
