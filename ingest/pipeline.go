package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/ccvec/blobstore"
	"github.com/hupe1980/ccvec/embedding"
	"github.com/hupe1980/ccvec/engine"
	"github.com/hupe1980/ccvec/model"
)

// ErrInvalidRequest is returned for requests without id or source key, or
// whose document names a different id.
var ErrInvalidRequest = errors.New("ingest: invalid request")

// Request asks for one source document to be indexed.
type Request struct {
	ID        model.RecordID `json:"id"`
	SourceKey string         `json:"sourceKey"`
}

// Appender receives vectors to index.
type Appender interface {
	Append(ctx context.Context, id model.RecordID, vector model.Vector) error
}

// Options configures a Pipeline.
type Options struct {
	// UsePrecomputed takes the record's embedding when its length matches
	// the backend dimension.
	UsePrecomputed bool

	// Concurrency bounds IndexAll.
	Concurrency int

	Logger *slog.Logger
}

// DefaultOptions contains the default pipeline configuration.
var DefaultOptions = Options{
	UsePrecomputed: true,
	Concurrency:    4,
}

// Pipeline indexes source documents.
type Pipeline struct {
	source    blobstore.BlobStore
	meta      engine.MetadataStore
	embedder  engine.Embedder
	backend   Appender
	dimension int
	opts      Options
	logger    *slog.Logger
}

// New creates a Pipeline. source holds the documents, backend receives the
// vectors.
func New(source blobstore.BlobStore, meta engine.MetadataStore, embedder engine.Embedder, backend Appender, dimension int, optFns ...func(o *Options)) *Pipeline {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Pipeline{
		source:    source,
		meta:      meta,
		embedder:  embedder,
		backend:   backend,
		dimension: dimension,
		opts:      opts,
		logger:    logger,
	}
}

// Index fetches req.SourceKey and indexes it under req.ID.
func (p *Pipeline) Index(ctx context.Context, req Request) error {
	if req.ID == "" || req.SourceKey == "" {
		return fmt.Errorf("%w: id and sourceKey are required", ErrInvalidRequest)
	}

	data, err := blobstore.ReadAll(ctx, p.source, req.SourceKey)
	if err != nil {
		return fmt.Errorf("ingest: fetch %s: %w", req.SourceKey, err)
	}
	rec, err := ParseRecord(data)
	if err != nil {
		return err
	}

	switch rec.TranscriptID {
	case "":
		rec.TranscriptID = req.ID
	case req.ID:
	default:
		return fmt.Errorf("%w: document %s holds record %s, not %s", ErrInvalidRequest, req.SourceKey, rec.TranscriptID, req.ID)
	}

	return p.IndexRecord(ctx, rec, req.SourceKey)
}

// IndexRecord writes the metadata of rec and appends its embedding.
//
// Metadata is written first so a committed record is never searchable
// without it. When the append fails the previous metadata of the id, if
// any, is put back; a re-index of an existing id leaves it untouched.
func (p *Pipeline) IndexRecord(ctx context.Context, rec Record, sourceKey string) error {
	if rec.TranscriptID == "" {
		return fmt.Errorf("%w: record without transcript_id", ErrInvalidRequest)
	}

	vec, err := p.vector(ctx, rec)
	if err != nil {
		return err
	}

	prev, existed, err := p.meta.Get(ctx, rec.TranscriptID)
	if err != nil {
		return fmt.Errorf("ingest: metadata %s: %w", rec.TranscriptID, err)
	}
	if err := p.meta.Put(ctx, rec.Metadata(sourceKey)); err != nil {
		return fmt.Errorf("ingest: metadata %s: %w", rec.TranscriptID, err)
	}

	if err := p.backend.Append(ctx, rec.TranscriptID, vec); err != nil {
		if existed {
			if rerr := p.meta.Put(ctx, prev); rerr != nil {
				p.logger.Error("restore metadata", "id", rec.TranscriptID, "error", rerr)
			}
		}
		return err
	}

	p.logger.Info("record indexed", "id", rec.TranscriptID, "source", sourceKey)
	return nil
}

func (p *Pipeline) vector(ctx context.Context, rec Record) (model.Vector, error) {
	if p.opts.UsePrecomputed && len(rec.Embedding) > 0 {
		if len(rec.Embedding) == p.dimension {
			return rec.Embedding, nil
		}
		p.logger.Warn("ignoring precomputed embedding", "id", rec.TranscriptID,
			"dimension", len(rec.Embedding), "expected", p.dimension)
	}

	if p.embedder == nil {
		return nil, fmt.Errorf("%w: no embedder configured", engine.ErrEmbeddingUnavailable)
	}
	if rec.Transcript == "" {
		return nil, fmt.Errorf("%w: record %s has no transcript text", ErrInvalidRequest, rec.TranscriptID)
	}

	vec, err := p.embedder.Embed(ctx, embedding.Truncate(rec.Transcript, embedding.MaxInputChars))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", engine.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// IndexAll indexes reqs concurrently. It returns the first error after all
// requests were attempted, plus the number indexed.
func (p *Pipeline) IndexAll(ctx context.Context, reqs []Request) (int, error) {
	var g errgroup.Group
	g.SetLimit(max(p.opts.Concurrency, 1))

	errs := make([]error, len(reqs))
	for i, req := range reqs {
		g.Go(func() error {
			errs[i] = p.Index(ctx, req)
			return nil
		})
	}
	_ = g.Wait()

	indexed := 0
	for i, err := range errs {
		if err == nil {
			indexed++
			continue
		}
		p.logger.Warn("index request failed", "id", reqs[i].ID, "error", err)
	}
	return indexed, errors.Join(errs...)
}
