package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/internal/bootstrap"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	var (
		file       string
		sourceName string
		limit      int
		offline    bool
		categories []string
	)

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify threads from a JSON file or a configured source",
		Long: `Classify threads with the local SQLite registry and print the partition
as JSON.

Threads are read from --file (a JSON array of objects with id, subject,
sender and snippet; "-" reads stdin) or fetched from --source.

Custom categories given with --category "Name=description" are created
first unless they already exist.`,
		Example: `  classifier classify --file threads.json
  classifier classify --file - --category "Finance=invoices, receipts and payments" --offline
  classifier classify --source imap --limit 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (file == "") == (sourceName == "") {
				return errors.New("provide exactly one of --file or --source")
			}
			userID, err := resolveUser()
			if err != nil {
				return err
			}

			deps, cleanup, err := bootstrap.NewLocalDependencies(cfg, offline)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, cfg.ClassifyRunTimeout)
			defer cancel()

			if err := ensureCategories(ctx, deps.Service, userID, categories); err != nil {
				return err
			}

			var result *domain.ClassificationResult
			if sourceName != "" {
				result, err = deps.Service.ClassifyFromSource(ctx, userID, sourceName, limit)
			} else {
				threads, rerr := readThreads(cmd.InOrStdin(), file)
				if rerr != nil {
					return rerr
				}
				result, err = deps.Service.Classify(ctx, userID, threads)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON file of threads, "-" for stdin`)
	cmd.Flags().StringVar(&sourceName, "source", "", "Thread source to fetch from (gmail, imap)")
	cmd.Flags().IntVar(&limit, "limit", 50, "Maximum threads fetched from --source")
	cmd.Flags().BoolVar(&offline, "offline", false, "Rule scoring only, never call the language model")
	cmd.Flags().StringArrayVar(&categories, "category", nil, `Custom category "Name=description" to create first (repeatable)`)
	return cmd
}

func readThreads(stdin io.Reader, file string) ([]domain.Thread, error) {
	var (
		data []byte
		err  error
	)
	if file == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read threads: %w", err)
	}

	var threads []domain.Thread
	if err := json.Unmarshal(data, &threads); err != nil {
		return nil, fmt.Errorf("threads must be a JSON array: %w", err)
	}
	return threads, nil
}

// ensureCategories creates each "Name=description" flag value that is not
// yet in the registry.
func ensureCategories(ctx context.Context, svc in.ClassificationService, userID uuid.UUID, values []string) error {
	for _, v := range values {
		name, description, _ := strings.Cut(v, "=")
		req := in.CreateCategoryRequest{
			Name:        strings.TrimSpace(name),
			Description: strings.TrimSpace(description),
		}
		_, err := svc.CreateCategory(ctx, userID, req)
		if err != nil && !domain.IsDuplicateName(err) {
			return fmt.Errorf("failed to create category %q: %w", req.Name, err)
		}
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
