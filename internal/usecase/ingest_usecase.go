package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/chunker"
	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/ranking"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
	"github.com/user/knowledge-service/pkg/metrics"
	"github.com/user/knowledge-service/pkg/utils"
)

// Outcome of visiting one URL of a crawl.
const (
	OutcomeIngested   = "ingested"
	OutcomeReused     = "reused"
	OutcomeLinked     = "linked"
	OutcomeSkipped    = "skipped"
	OutcomeUnresolved = "unresolved"
	OutcomeFailed     = "failed"
)

// Ingester defines the interface for ingesting a URL and its related sources.
type Ingester interface {
	Ingest(ctx context.Context, rawURL string, opts IngestOptions) (*IngestResult, error)
}

type IngestOptions struct {
	Collection string `json:"collection,omitempty"`
	// Force deletes any existing source for the URL and ingests it again.
	Force bool `json:"force,omitempty"`
}

// RelatedOutcome records what happened to one related URL of a crawl.
type RelatedOutcome struct {
	URL          string              `json:"url"`
	ParentID     int64               `json:"parent_source_id"`
	RelationType entity.RelationType `json:"relation_type"`
	SourceID     int64               `json:"source_id,omitempty"`
	Status       string              `json:"status"`
	Error        string              `json:"error,omitempty"`
}

// IngestResult describes a finished top-level ingest.
type IngestResult struct {
	JobID    int64            `json:"job_id"`
	SourceID int64            `json:"source_id"`
	URL      string           `json:"url"`
	Reused   bool             `json:"reused"`
	Chunks   int              `json:"chunks"`
	Related  []RelatedOutcome `json:"related,omitempty"`
	Summary  string           `json:"summary"`
}

// IngestConfig bounds one top-level ingest.
type IngestConfig struct {
	// ExtractTimeout bounds each extraction call. Zero disables the bound.
	ExtractTimeout time.Duration
	// MaxDepth is the number of relation hops followed from the root URL.
	MaxDepth int
	// MaxSources caps extractions of related URLs per call. The root is not counted.
	MaxSources int
}

// IngestDeps groups the collaborators of IngestUseCase.
type IngestDeps struct {
	Sources   repository.SourceRepository
	Chunks    repository.ChunkRepository
	Relations repository.RelationRepository
	Jobs      repository.JobRepository
	Logs      repository.ObservabilityRepository
	Extractor repository.ExtractorRepository
	Embedder  repository.Embedder
	Vectors   repository.VectorIndex
	Dedup     *DedupIndex
	Chunker   *chunker.Chunker
	Ranker    *ranking.Ranker
	Metrics   *metrics.Metrics
}

// IngestUseCase orchestrates extraction, chunking, embedding and the relation
// graph for one URL and everything it references.
type IngestUseCase struct {
	IngestDeps
	cfg    IngestConfig
	logger *zap.Logger
}

func NewIngestUseCase(deps IngestDeps, cfg IngestConfig, log *zap.Logger) *IngestUseCase {
	if deps.Chunker == nil {
		deps.Chunker = chunker.New()
	}
	if deps.Ranker == nil {
		deps.Ranker = ranking.New(ranking.Config{})
	}
	if deps.Dedup == nil {
		deps.Dedup = NewDedupIndex(deps.Sources, nil, 0, log)
	}
	return &IngestUseCase{IngestDeps: deps, cfg: cfg, logger: logger.OrNop(log)}
}

type frontierItem struct {
	url      string
	parentID int64
	relation entity.RelationType
	depth    int
}

// crawl is the state of one top-level call. It is owned by the goroutine
// running Ingest and never shared.
type crawl struct {
	jobID       int64
	collection  string
	force       bool
	visited     map[string]bool
	resolved    map[string]int64
	extractions int
}

type visitResult struct {
	status   string
	sourceID int64
	chunks   int
	content  entity.ExtractedContent
	next     []frontierItem
}

// Ingest ingests rawURL and crawls its related URLs breadth first. Only the
// root URL's failure is returned; related failures are recorded in the result
// and the ingest log. On failure the result still carries the job id.
func (uc *IngestUseCase) Ingest(ctx context.Context, rawURL string, opts IngestOptions) (*IngestResult, error) {
	rawURL = strings.TrimSpace(rawURL)
	if !IsHTTPURL(rawURL) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		collection = entity.DefaultCollection
	}

	jobID, err := uc.Jobs.Create(ctx, &entity.Job{
		Type:    entity.JobTypeIngest,
		Status:  entity.JobStatusRunning,
		Payload: entity.JobPayload{URL: rawURL, Collection: collection, Force: opts.Force},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest job: %w", err)
	}
	uc.logEvent(ctx, jobID, rawURL, 0, entity.LogLevelInfo, "ingest_started", map[string]any{
		"collection": collection,
		"force":      opts.Force,
	})
	uc.logger.Info("Ingest started", zap.Int64("job_id", jobID), zap.String("url", rawURL), zap.String("collection", collection))

	c := &crawl{
		jobID:      jobID,
		collection: collection,
		force:      opts.Force,
		visited:    make(map[string]bool),
		resolved:   make(map[string]int64),
	}
	result := &IngestResult{JobID: jobID, URL: rawURL}

	root, err := uc.visit(ctx, c, frontierItem{url: rawURL})
	if err != nil {
		uc.failJob(ctx, jobID, rawURL, err)
		return result, err
	}
	result.SourceID = root.sourceID
	result.Reused = root.status == OutcomeReused
	result.Chunks = root.chunks
	if result.Reused {
		result.Summary = uc.reusedSummary(ctx, rawURL, root.sourceID)
	} else {
		result.Summary = BuildIngestionSummary(rawURL, root.sourceID, root.content, root.chunks)
	}

	frontier := root.next
	for len(frontier) > 0 && ctx.Err() == nil {
		item := frontier[0]
		frontier = frontier[1:]

		outcome := RelatedOutcome{URL: item.url, ParentID: item.parentID, RelationType: item.relation}
		res, err := uc.visit(ctx, c, item)
		if err != nil {
			outcome.Status = OutcomeFailed
			outcome.Error = err.Error()
			uc.Metrics.IncIngest("failure", errorType(err))
			uc.logger.Warn("Related source failed", zap.String("url", item.url), zap.Int64("parent_id", item.parentID), zap.Error(err))
			uc.logEvent(ctx, jobID, item.url, 0, entity.LogLevelWarn, "related_failed", map[string]any{
				"parent_source_id": item.parentID,
				"relation_type":    item.relation,
				"error":            err.Error(),
			})
		} else {
			outcome.Status = res.status
			outcome.SourceID = res.sourceID
			frontier = append(frontier, res.next...)
		}
		result.Related = append(result.Related, outcome)
	}

	if err := uc.Jobs.Complete(context.WithoutCancel(ctx), jobID, root.sourceID); err != nil {
		uc.logger.Error("Failed to complete ingest job", zap.Int64("job_id", jobID), zap.Error(err))
	}
	uc.recordMetric(ctx, jobID, "related_sources", float64(len(result.Related)), map[string]string{"url": rawURL})
	uc.logEvent(ctx, jobID, rawURL, root.sourceID, entity.LogLevelInfo, "ingest_completed", map[string]any{
		"reused":      result.Reused,
		"related":     len(result.Related),
		"extractions": c.extractions,
	})
	uc.logger.Info("Ingest completed",
		zap.Int64("job_id", jobID),
		zap.Int64("source_id", root.sourceID),
		zap.Bool("reused", result.Reused),
		zap.Int("related", len(result.Related)),
	)
	return result, nil
}

// visit handles one frontier item: dedup, extraction, persistence and linking
// to its parent. The returned next items are its related URLs.
func (uc *IngestUseCase) visit(ctx context.Context, c *crawl, item frontierItem) (*visitResult, error) {
	canonical := utils.Canonicalize(item.url)

	if c.visited[canonical] {
		id, ok := c.resolved[canonical]
		if !ok {
			found, hit, err := uc.Dedup.Find(ctx, canonical)
			if err != nil {
				return nil, err
			}
			id, ok = found, hit
		}
		if !ok {
			uc.logEvent(ctx, c.jobID, item.url, 0, entity.LogLevelWarn, "relation_unresolved", map[string]any{
				"parent_source_id": item.parentID,
				"relation_type":    item.relation,
			})
			return &visitResult{status: OutcomeUnresolved}, nil
		}
		uc.link(ctx, c, item, id)
		return &visitResult{status: OutcomeLinked, sourceID: id}, nil
	}
	c.visited[canonical] = true

	isRoot := item.parentID == 0
	if isRoot && c.force {
		if err := uc.purge(ctx, c, canonical); err != nil {
			return nil, err
		}
	} else {
		id, found, err := uc.Dedup.Find(ctx, canonical)
		if err != nil {
			return nil, err
		}
		if found {
			c.resolved[canonical] = id
			uc.link(ctx, c, item, id)
			uc.logEvent(ctx, c.jobID, item.url, id, entity.LogLevelInfo, "source_reused", nil)
			return &visitResult{status: OutcomeReused, sourceID: id}, nil
		}
	}

	if !isRoot && c.extractions >= uc.cfg.MaxSources {
		uc.logEvent(ctx, c.jobID, item.url, 0, entity.LogLevelInfo, "crawl_limit_reached", map[string]any{
			"max_sources": uc.cfg.MaxSources,
		})
		return &visitResult{status: OutcomeSkipped}, nil
	}
	if !isRoot {
		c.extractions++
	}

	bundle, elapsed, err := uc.extract(ctx, canonical)
	if err != nil {
		return nil, err
	}

	content := bundle.Source
	if !content.Type.Known() {
		content.Type = entity.SourceTypeUnknown
	}
	pieces := uc.Chunker.Split(content)
	if len(pieces) == 0 {
		return nil, fmt.Errorf("%s: %w", item.url, ErrEmptyContent)
	}

	id, err := uc.Sources.Create(ctx, &entity.Source{
		Type:                 content.Type,
		URL:                  item.url,
		CanonicalURL:         canonical,
		Title:                content.Title,
		Author:               content.Author,
		PublishedAt:          content.PublishedAt,
		Metadata:             content.Metadata,
		SourceWeight:         uc.Ranker.SourceWeightFor(content.Type),
		Collection:           c.collection,
		ExtractionMethod:     content.ExtractionMethod,
		ExtractionConfidence: content.ExtractionConfidence,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save source for %s: %w", item.url, err)
	}
	uc.link(ctx, c, item, id)

	if err := uc.persistChunks(ctx, id, pieces); err != nil {
		if delErr := uc.Sources.Delete(ctx, id); delErr != nil {
			uc.logger.Error("Failed to roll back partially persisted source", zap.Int64("source_id", id), zap.Error(delErr))
		}
		return nil, err
	}
	c.resolved[canonical] = id
	uc.Dedup.Remember(ctx, canonical, id)

	uc.Metrics.IncIngest("success", "")
	uc.Metrics.AddChunks(len(pieces))
	labels := map[string]string{"url": item.url, "method": string(content.ExtractionMethod)}
	uc.recordMetric(ctx, c.jobID, "extraction_ms", float64(elapsed.Milliseconds()), labels)
	uc.recordMetric(ctx, c.jobID, "chunks_persisted", float64(len(pieces)), labels)
	uc.logEvent(ctx, c.jobID, item.url, id, entity.LogLevelInfo, "source_ingested", map[string]any{
		"type":                  content.Type,
		"extraction_method":     content.ExtractionMethod,
		"extraction_confidence": content.ExtractionConfidence,
		"chunks":                len(pieces),
		"related":               len(bundle.Related),
	})

	res := &visitResult{status: OutcomeIngested, sourceID: id, chunks: len(pieces), content: content}
	if item.depth < uc.cfg.MaxDepth {
		for _, rel := range bundle.Related {
			u := strings.TrimSpace(rel.URL)
			if u == "" || !rel.RelationType.Valid() || utils.Canonicalize(u) == canonical {
				continue
			}
			res.next = append(res.next, frontierItem{url: u, parentID: id, relation: rel.RelationType, depth: item.depth + 1})
		}
	}
	return res, nil
}

func (uc *IngestUseCase) extract(ctx context.Context, rawURL string) (*entity.SourceBundle, time.Duration, error) {
	extractCtx := ctx
	cancel := func() {}
	if uc.cfg.ExtractTimeout > 0 {
		extractCtx, cancel = context.WithTimeout(ctx, uc.cfg.ExtractTimeout)
	}
	defer cancel()

	start := time.Now()
	bundle, err := uc.Extractor.Extract(extractCtx, rawURL)
	elapsed := time.Since(start)
	if err != nil {
		if errors.Is(extractCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, repository.ErrExtractionTimeout) {
			err = fmt.Errorf("%w after %s: %v", repository.ErrExtractionTimeout, uc.cfg.ExtractTimeout, err)
		}
		return nil, elapsed, fmt.Errorf("failed to extract %s: %w", rawURL, err)
	}
	if bundle == nil {
		return nil, elapsed, fmt.Errorf("failed to extract %s: %w", rawURL, repository.ErrExtractionFailed)
	}
	return bundle, elapsed, nil
}

// persistChunks embeds and inserts pieces in index order.
func (uc *IngestUseCase) persistChunks(ctx context.Context, sourceID int64, pieces []chunker.Piece) error {
	for i, p := range pieces {
		emb := uc.Embedder.Embed(ctx, p.Text)
		chunkID, err := uc.Chunks.Insert(ctx, &entity.Chunk{
			SourceID:     sourceID,
			Index:        i,
			Text:         p.Text,
			TokenCount:   p.TokenCount,
			Embedding:    emb,
			SectionTitle: p.SectionTitle,
		})
		if err != nil {
			return fmt.Errorf("failed to save chunk %d of source %d: %w", i, sourceID, err)
		}
		if uc.Vectors == nil {
			continue
		}
		if err := uc.Vectors.Index(ctx, chunkID, emb); err != nil {
			uc.logger.Warn("Failed to index chunk embedding", zap.Int64("chunk_id", chunkID), zap.String("index", uc.Vectors.Name()), zap.Error(err))
		}
	}
	return nil
}

// link records parent -> child. Edges are only written once both ids are known.
func (uc *IngestUseCase) link(ctx context.Context, c *crawl, item frontierItem, childID int64) {
	if item.parentID == 0 || childID == 0 || item.parentID == childID {
		return
	}
	created, err := uc.Relations.Link(ctx, item.parentID, childID, item.relation)
	if err != nil {
		uc.logger.Warn("Failed to link sources",
			zap.Int64("parent_id", item.parentID),
			zap.Int64("child_id", childID),
			zap.String("relation_type", string(item.relation)),
			zap.Error(err),
		)
		uc.logEvent(ctx, c.jobID, item.url, childID, entity.LogLevelWarn, "relation_failed", map[string]any{
			"parent_source_id": item.parentID,
			"relation_type":    item.relation,
			"error":            err.Error(),
		})
		return
	}
	if created {
		uc.Metrics.IncRelation(string(item.relation))
	}
}

// purge deletes every source stored under canonicalURL ahead of a forced ingest.
func (uc *IngestUseCase) purge(ctx context.Context, c *crawl, canonicalURL string) error {
	uc.Dedup.Forget(ctx, canonicalURL)
	for {
		src, err := uc.Sources.FindByURL(ctx, canonicalURL)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to look up source for %s: %w", canonicalURL, err)
		}
		if err := uc.Sources.Delete(ctx, src.ID); err != nil {
			return fmt.Errorf("failed to delete source %d for re-ingest: %w", src.ID, err)
		}
		uc.logEvent(ctx, c.jobID, canonicalURL, src.ID, entity.LogLevelInfo, "source_deleted", map[string]any{"reason": "force"})
	}
}

func (uc *IngestUseCase) failJob(ctx context.Context, jobID int64, rawURL string, cause error) {
	uc.Metrics.IncIngest("failure", errorType(cause))
	uc.logger.Error("Ingest failed", zap.Int64("job_id", jobID), zap.String("url", rawURL), zap.Error(cause))
	uc.logEvent(ctx, jobID, rawURL, 0, entity.LogLevelError, "ingest_failed", map[string]any{
		"error":      cause.Error(),
		"error_type": errorType(cause),
	})
	// The job must reach a terminal state even when the caller's context is gone.
	if err := uc.Jobs.Fail(context.WithoutCancel(ctx), jobID, cause.Error()); err != nil {
		uc.logger.Error("Failed to mark ingest job failed", zap.Int64("job_id", jobID), zap.Error(err))
	}
}

func (uc *IngestUseCase) reusedSummary(ctx context.Context, rawURL string, sourceID int64) string {
	summary := fmt.Sprintf("Already ingested as source #%d (use force to re-ingest)\nURL: %s", sourceID, rawURL)
	if chunks, err := uc.Chunks.ListBySource(ctx, sourceID); err == nil {
		summary += fmt.Sprintf("\nChunks: %d", len(chunks))
	}
	return summary
}

func (uc *IngestUseCase) logEvent(ctx context.Context, jobID int64, sourceURL string, sourceID int64, level entity.LogLevel, eventType string, event map[string]any) {
	if uc.Logs == nil {
		return
	}
	err := uc.Logs.AppendLog(ctx, &entity.IngestLog{
		JobID:     jobID,
		SourceURL: sourceURL,
		SourceID:  sourceID,
		Level:     level,
		EventType: eventType,
		Event:     event,
	})
	if err != nil {
		uc.logger.Warn("Failed to append ingest log", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (uc *IngestUseCase) recordMetric(ctx context.Context, jobID int64, name string, value float64, labels map[string]string) {
	if uc.Logs == nil {
		return
	}
	if err := uc.Logs.RecordMetric(ctx, &entity.JobMetric{JobID: jobID, Name: name, Value: value, Labels: labels}); err != nil {
		uc.logger.Warn("Failed to record job metric", zap.String("metric", name), zap.Error(err))
	}
}

// errorType classifies an ingest error for metrics and logs.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrEmptyContent):
		return "empty_content"
	case errors.Is(err, repository.ErrExtractionTimeout):
		return "timeout"
	case errors.Is(err, repository.ErrContentRestricted):
		return "restricted"
	case errors.Is(err, repository.ErrUnsupportedContent):
		return "unsupported"
	case errors.Is(err, repository.ErrExtractionFailed):
		return "extraction"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "unknown"
}

// IsHTTPURL reports whether raw is an absolute http or https URL.
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
