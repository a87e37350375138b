// Package cli implements the kb command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/usecase"
)

type Searcher interface {
	Search(ctx context.Context, query string, opts usecase.SearchOptions) (*entity.SearchResult, error)
	Answer(ctx context.Context, question string, filters entity.SearchFilters) (*usecase.Answer, error)
	ListCollections(ctx context.Context) ([]entity.CollectionStats, error)
}

type SettingsService interface {
	Get(ctx context.Context) (entity.Settings, error)
	Update(ctx context.Context, patch entity.SettingsPatch) (entity.Settings, error)
}

type HealthChecker interface {
	Health(ctx context.Context) (*entity.HealthStatus, error)
}

type JobReader interface {
	Get(ctx context.Context, id int64) (*usecase.JobReport, error)
}

// Services are the use cases a command may call.
type Services struct {
	Ingester usecase.Ingester
	Search   Searcher
	Settings SettingsService
	Health   HealthChecker
	Jobs     JobReader
}

// Loader builds Services on first use so that --help never opens a database.
// The returned func releases them.
type Loader func(ctx context.Context) (*Services, func(), error)

type filterFlags struct {
	collection string
	domain     string
	sourceType string
	url        string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.collection, "collection", "c", "", "only search this collection")
	cmd.Flags().StringVar(&f.domain, "domain", "", "only search sources from this domain")
	cmd.Flags().StringVar(&f.sourceType, "type", "", "only search this source type (article, youtube, twitter, tiktok, pdf)")
	cmd.Flags().StringVar(&f.url, "url", "", "only search this exact source URL")
}

func (f *filterFlags) filters() entity.SearchFilters {
	return entity.SearchFilters{
		Collection: f.collection,
		Domain:     f.domain,
		SourceType: f.sourceType,
		URL:        f.url,
	}
}

// NewRootCmd assembles the kb command tree.
func NewRootCmd(load Loader) *cobra.Command {
	root := &cobra.Command{
		Use:           "kb",
		Short:         "Personal knowledge base",
		Long:          "Ingest URLs into a personal knowledge base and ask questions answered from it with citations.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newIngestCmd(load),
		newAskCmd(load),
		newSearchCmd(load),
		newCollectionsCmd(load),
		newHealthCmd(load),
		newJobCmd(load),
		newSettingsCmd(load),
	)
	return root
}

// withServices loads the services, runs fn and releases them.
func withServices(cmd *cobra.Command, load Loader, fn func(ctx context.Context, svc *Services) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, release, err := load(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer release()
	return fn(ctx, svc)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
