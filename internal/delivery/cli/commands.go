package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/usecase"
)

func newIngestCmd(load Loader) *cobra.Command {
	var (
		collection string
		force      bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "ingest <url>",
		Short: "Ingest a URL and the sources it links to",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, load, func(ctx context.Context, svc *Services) error {
				res, err := svc.Ingester.Ingest(ctx, args[0], usecase.IngestOptions{Collection: collection, Force: force})
				if err != nil {
					if res != nil && res.JobID > 0 {
						return fmt.Errorf("ingest failed (job #%d): %w", res.JobID, err)
					}
					return fmt.Errorf("ingest failed: %w", err)
				}
				if asJSON {
					return printJSON(cmd, res)
				}
				cmd.Println(res.Summary)
				if len(res.Related) > 0 {
					cmd.Println()
					cmd.Println("Related:")
					for _, r := range res.Related {
						line := fmt.Sprintf("  %-10s %-12s %s", r.Status, r.RelationType, r.URL)
						if r.SourceID > 0 {
							line += fmt.Sprintf(" (#%d)", r.SourceID)
						}
						if r.Error != "" {
							line += ": " + r.Error
						}
						cmd.Println(line)
					}
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&collection, "collection", "c", "", "collection to file the source under (default \"default\")")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "re-ingest even if the URL is already stored")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the result as JSON")
	return cmd
}

func newAskCmd(load Loader) *cobra.Command {
	var (
		f      filterFlags
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a question from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, load, func(ctx context.Context, svc *Services) error {
				ans, err := svc.Search.Answer(ctx, strings.Join(args, " "), f.filters())
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, ans)
				}
				cmd.Println(ans.Text)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "output the answer as JSON")
	return cmd
}

func newSearchCmd(load Loader) *cobra.Command {
	var (
		f      filterFlags
		limit  int
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "List the best matching chunks with their scores",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withServices(cmd, load, func(ctx context.Context, svc *Services) error {
				res, err := svc.Search.Search(ctx, strings.Join(args, " "), usecase.SearchOptions{Limit: limit, Filters: f.filters()})
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, res)
				}
				if len(res.Chunks) == 0 {
					cmd.Println("No results found.")
					return nil
				}
				for i, c := range res.Chunks {
					cmd.Printf("  [%d] %s (%.3f)\n", i+1, c.Title, c.FinalScore)
					cmd.Printf("      %s\n", c.URL)
					cmd.Printf("      semantic=%.3f recency=%.3f weight=%.2f\n", c.Semantic, c.Recency, c.SourceWeight)
				}
				cmd.Printf("\nCandidates: %d chunks from %d sources\n", res.CandidateChunks, res.CandidateSources)
				return nil
			})
		},
	}
	f.register(cmd)
	cmd.Flags().IntVarP(&limit, "limit", "n", usecase.DefaultSearchLimit, "maximum number of results")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func newCollectionsCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "collections",
		Short: "List collections with source and chunk counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, load, func(ctx context.Context, svc *Services) error {
				stats, err := svc.Search.ListCollections(ctx)
				if err != nil {
					return err
				}
				if len(stats) == 0 {
					cmd.Println("No collections yet.")
					return nil
				}
				for _, s := range stats {
					cmd.Printf("  %-20s %d sources, %d chunks\n", s.Collection, s.SourceCount, s.ChunkCount)
				}
				return nil
			})
		},
	}
}

func newHealthCmd(load Loader) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Show store health and job counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, load, func(ctx context.Context, svc *Services) error {
				h, err := svc.Health.Health(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return printJSON(cmd, h)
				}
				cmd.Printf("Database:        %s\n", okString(h.DBOK))
				cmd.Printf("Sources:         %d\n", h.Sources)
				cmd.Printf("Chunks:          %d\n", h.Chunks)
				cmd.Printf("Jobs:            running=%d done=%d failed=%d\n",
					h.Jobs[entity.JobStatusRunning], h.Jobs[entity.JobStatusDone], h.Jobs[entity.JobStatusFailed])
				cmd.Printf("Failures (24h):  %d\n", h.RecentFailures24h)
				cmd.Printf("Vector index:    %s\n", h.VectorIndex)
				if !h.DBOK {
					return errors.New("database is unreachable")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newJobCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "job <id>",
		Short: "Show an ingest job and its event log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid job id %q", args[0])
			}
			return withServices(cmd, load, func(ctx context.Context, svc *Services) error {
				report, err := svc.Jobs.Get(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd, report)
			})
		},
	}
}

func newSettingsCmd(load Loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change runtime settings",
	}

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(cmd, load, func(ctx context.Context, svc *Services) error {
				s, err := svc.Settings.Get(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}

	var autoSummary, browserRelay bool
	set := &cobra.Command{
		Use:   "set",
		Short: "Change one or more settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var patch entity.SettingsPatch
			if cmd.Flags().Changed("auto-summary") {
				patch.AutoSummaryEnabled = &autoSummary
			}
			if cmd.Flags().Changed("browser-relay") {
				patch.BrowserRelayFallbackEnabled = &browserRelay
			}
			if patch.AutoSummaryEnabled == nil && patch.BrowserRelayFallbackEnabled == nil {
				return errors.New("nothing to change: pass --auto-summary or --browser-relay")
			}
			return withServices(cmd, load, func(ctx context.Context, svc *Services) error {
				s, err := svc.Settings.Update(ctx, patch)
				if err != nil {
					return err
				}
				return printJSON(cmd, s)
			})
		},
	}
	set.Flags().BoolVar(&autoSummary, "auto-summary", false, "enable automatic ingestion summaries")
	set.Flags().BoolVar(&browserRelay, "browser-relay", false, "enable the browser relay fallback for blocked or thin pages")

	cmd.AddCommand(get, set)
	return cmd
}

func okString(ok bool) string {
	if ok {
		return "ok"
	}
	return "unreachable"
}
