package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/user/tmdb-ratelimit/internal/limiter"
	"github.com/user/tmdb-ratelimit/internal/tmdb"
)

// ErrMissingAPIKey is returned by commands that must reach TMDb.
var ErrMissingAPIKey = errors.New("TMDB_API_KEY is required")

type fetchOptions struct {
	pages    int
	priority string
}

// pageSummary is one line of fetch output.
type pageSummary struct {
	List       tmdb.List `json:"list"`
	Page       int       `json:"page"`
	TotalPages int       `json:"total_pages"`
	Results    int       `json:"results"`
}

func newFetchCmd(opts *rootOptions) *cobra.Command {
	fo := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch <list>",
		Short: "Prefetch pages of a movie list through the rate limiter",
		Long: fmt.Sprintf(`Fetch pages of a TMDb movie list, waiting for the rate limiter before each call.

Lists: %s

Prints one JSON summary per page followed by the limiter stats.`, listNames()),
		Example: "  tmdb-ratelimit fetch top-rated --pages 5 --priority low",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd.Context(), opts, fo, args[0], cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&fo.pages, "pages", 1, "number of pages to fetch")
	cmd.Flags().StringVar(&fo.priority, "priority", string(limiter.PriorityLow), "request priority (high, medium, low)")

	return cmd
}

func runFetch(ctx context.Context, opts *rootOptions, fo *fetchOptions, listName string, out io.Writer) error {
	list, err := tmdb.ParseList(listName)
	if err != nil {
		return err
	}
	if fo.pages < 1 {
		return fmt.Errorf("--pages must be at least 1, got %d", fo.pages)
	}

	rt, err := bootstrap(ctx, opts)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.cfg.TMDb.APIKey == "" {
		return ErrMissingAPIKey
	}

	client := tmdb.NewClient(tmdb.Options{
		APIKey:   rt.cfg.TMDb.APIKey,
		BaseURL:  rt.cfg.TMDb.BaseURL,
		Timeout:  rt.cfg.TMDb.Timeout,
		Logger:   rt.logger,
		Limiter:  rt.selection.Limiter,
		Priority: limiter.ParsePriority(fo.priority),
		MaxWait:  rt.cfg.TMDb.MaxWait,
	})

	enc := json.NewEncoder(out)
	for page := 1; page <= fo.pages; page++ {
		body, err := client.MovieList(ctx, list, page)
		if err != nil {
			return fmt.Errorf("fetch %s page %d: %w", list, page, err)
		}

		var resp struct {
			Page       int               `json:"page"`
			TotalPages int               `json:"total_pages"`
			Results    []json.RawMessage `json:"results"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode %s page %d: %w", list, page, err)
		}

		if err := enc.Encode(pageSummary{
			List:       list,
			Page:       page,
			TotalPages: resp.TotalPages,
			Results:    len(resp.Results),
		}); err != nil {
			return err
		}

		if resp.TotalPages > 0 && page >= resp.TotalPages {
			rt.logger.Info("Reached last page", zap.String("list", string(list)), zap.Int("page", page))
			break
		}
	}

	return enc.Encode(rt.selection.Limiter.GetStats(ctx))
}

func listNames() string {
	names := make([]string, len(tmdb.Lists))
	for i, l := range tmdb.Lists {
		names[i] = strings.ReplaceAll(string(l), "_", "-")
	}
	return strings.Join(names, ", ")
}
