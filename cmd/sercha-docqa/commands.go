package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/custodia-labs/sercha-docqa/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-docqa/internal/core/domain"
)

// taskPollInterval is how often the ingest command checks task progress
const taskPollInterval = 250 * time.Millisecond

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			log.Printf("sercha-docqa %s starting", version)

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() {
				log.Println("Stopping worker pool...")
				if err := a.close(); err != nil {
					logger.Error("shutdown", "error", err)
				}
				log.Println("Stopped")
			}()

			if err := a.start(ctx); err != nil {
				return fmt.Errorf("start worker pool: %w", err)
			}
			log.Printf("Worker pool started (concurrency=%d)", cfg.Worker.Concurrency)

			go a.tracker.RunCleanupLoop(ctx, cfg.Tasks.CleanupInterval, cfg.Tasks.MaxAge)
			log.Printf("Task cleanup every %s (max age %s)", cfg.Tasks.CleanupInterval, cfg.Tasks.MaxAge)

			server := httpadapter.NewServer(httpadapter.Config{
				Host:           cfg.Server.Host,
				Port:           cfg.Server.Port,
				Version:        version,
				MaxUploadBytes: cfg.MaxUploadBytes(),
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Logger:         logger,
			}, a.ingestion, a.query, a.documents, a.checks)

			log.Printf("API server starting on %s", server.Addr())
			if err := server.Start(ctx); err != nil {
				return err
			}
			log.Println("Shutdown signal received, stopping...")
			return nil
		},
	}
}

func newIngestCmd(opts *rootOptions) *cobra.Command {
	var (
		timeout time.Duration
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <file>...",
		Short: "Ingest documents and wait for them to be indexed",
		Long: `Ingest runs the same pipeline as the upload endpoint in-process:
extract, chunk, embed, summarize and store. Use a persistent storage
backend (sqlite or postgres) for documents to outlive the command.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.start(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			var failed int
			for _, path := range args {
				task, err := ingestFile(ctx, a, path, timeout)
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", path, err)
					continue
				}
				if task.Status != domain.TaskStatusCompleted {
					failed++
				}
				if err := printTask(out, path, task, asJSON); err != nil {
					return err
				}
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d files failed", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "Maximum time to wait for each file")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print task records as JSON")
	return cmd
}

// ingestFile schedules one file and polls its task until it settles
func ingestFile(ctx context.Context, a *app, path string, timeout time.Duration) (*domain.Task, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	taskID, err := a.ingestion.StartIngestion(ctx, f, filepath.Base(path))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(taskPollInterval)
	defer ticker.Stop()

	for {
		task, err := a.ingestion.GetTaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Status.IsTerminal() || task.Status == domain.TaskStatusNotFound {
			return task, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("task %s: %w", taskID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func printTask(w io.Writer, path string, task *domain.Task, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(task)
	}
	if task.Result == nil {
		_, err := fmt.Fprintf(w, "%s: %s (%s)\n", path, task.Status, task.Message)
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %s document_id=%s chunks=%d type=%s\n",
		path, task.Status, task.Result.DocumentID, task.Result.ChunksCount, task.Result.FileType)
	return err
}

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		offset int
		docID  string
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from stored documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			question := strings.Join(args, " ")
			result, err := a.query.Query(ctx, question, domain.SearchOptions{
				TopK:       limit,
				Offset:     offset,
				DocumentID: docID,
			})
			if err != nil {
				return err
			}
			return printAnswer(cmd.OutOrStdout(), result, asJSON)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", domain.DefaultTopK, "Number of chunks to retrieve")
	cmd.Flags().IntVar(&offset, "offset", 0, "Number of ranked chunks to skip")
	cmd.Flags().StringVar(&docID, "doc-id", "", "Restrict the search to one document")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	return cmd
}

func printAnswer(w io.Writer, result *domain.DualAnswerResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintln(w, result.Answer)
	fmt.Fprintf(w, "\nsource: %s (%s)\n", result.Source, result.SelectionReason)
	for _, ref := range result.Sources {
		fmt.Fprintf(w, "  - %s [%s]\n", ref.DocumentTitle, ref.DocumentID)
	}
	return nil
}

func newTasksCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage ingestion task records",
	}

	var maxAgeHours int
	cleanup := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove task records older than the given age",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if maxAgeHours < 1 || maxAgeHours > 168 {
				return fmt.Errorf("%w: max-age-hours must be between 1 and 168", domain.ErrInvalidInput)
			}

			ctx := cmd.Context()
			cfg, logger, err := loadConfig(opts, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()

			removed, err := a.ingestion.CleanupTasks(ctx, time.Duration(maxAgeHours)*time.Hour)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d tasks older than %d hours\n", removed, maxAgeHours)
			return nil
		},
	}
	cleanup.Flags().IntVar(&maxAgeHours, "max-age-hours", 24, "Age threshold in hours (1-168)")

	cmd.AddCommand(cleanup)
	return cmd
}

// newCacheCmd talks to a running server: caches live in its process.
func newCacheCmd(_ *rootOptions) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the caches of a running server",
	}
	cmd.PersistentFlags().StringVar(&server, "server", "http://localhost:8000", "Base URL of the running server")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show cache sizes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out domain.CacheStats
			if err := callServer(cmd.Context(), http.MethodGet, server, "/api/v1/cache/stats", &out); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "embedding cache: %d\nsearch cache:    %d\nmax size:        %d\nttl:             %ds\n",
				out.EmbeddingCacheSize, out.SearchCacheSize, out.MaxCacheSize, out.CacheTTL)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Empty the embedding and search caches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var out httpadapter.MessageResponse
			if err := callServer(cmd.Context(), http.MethodPost, server, "/api/v1/cache/clear", &out); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			return nil
		},
	}

	cmd.AddCommand(stats, clearCmd)
	return cmd
}

// callServer issues a request to the API and decodes the JSON reply into out
func callServer(ctx context.Context, method, base, path string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(base, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e httpadapter.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
