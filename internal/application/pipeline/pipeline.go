// Package pipeline composes import runs out of interchangeable stages:
// download, enrich, map, enrich again, upload. Stages short-circuit by
// returning nil, which skips the record without error.
package pipeline

import (
	"context"
	"errors"
	"iter"

	"go.uber.org/zap"
)

// Downloader fetches the full source record for an id.
type Downloader[ID comparable, S any] interface {
	Download(ctx context.Context, id ID) (*S, error)
}

// Enricher mutates a record in place, filling data the previous stages
// could not provide. Enrichment failures are the enricher's to handle:
// returning an error fails the record.
type Enricher[T any] interface {
	Enrich(ctx context.Context, record *T) error
}

// Mapper translates one source record into zero or more upload payloads.
// An empty result skips the record.
type Mapper[S, T any] interface {
	Map(ctx context.Context, source *S) ([]*T, error)
}

// Uploader delivers one payload to the destination.
type Uploader[T any] interface {
	Upload(ctx context.Context, payload *T) (Result, error)
}

// Passthrough adapts sources that arrive fully downloaded from their
// iterator, so the id IS the record.
type Passthrough[S any] struct{}

func (Passthrough[S]) Download(_ context.Context, src *S) (*S, error) {
	return src, nil
}

// abortError marks an error that must stop the whole run.
type abortError struct {
	err error
}

func (e *abortError) Error() string { return e.err.Error() }
func (e *abortError) Unwrap() error { return e.err }

// Abort wraps err so the run stops instead of moving to the next record.
func Abort(err error) error {
	if err == nil {
		return nil
	}
	return &abortError{err: err}
}

// IsAbort reports whether err carries an abort marker.
func IsAbort(err error) bool {
	var target *abortError
	return errors.As(err, &target)
}

// Pipeline drives source records through the configured stages.
type Pipeline[ID comparable, S, T any] struct {
	downloader Downloader[ID, S]
	preMap     []Enricher[S]
	mapper     Mapper[S, T]
	postMap    []Enricher[T]
	uploader   Uploader[T]
	logger     *zap.Logger
}

// New assembles a pipeline. Downloader, mapper and uploader are required;
// enrichers are optional.
func New[ID comparable, S, T any](
	downloader Downloader[ID, S],
	mapper Mapper[S, T],
	uploader Uploader[T],
	logger *zap.Logger,
) *Pipeline[ID, S, T] {
	return &Pipeline[ID, S, T]{
		downloader: downloader,
		mapper:     mapper,
		uploader:   uploader,
		logger:     logger,
	}
}

// WithPreMap appends enrichers that run on source records before mapping.
func (p *Pipeline[ID, S, T]) WithPreMap(enrichers ...Enricher[S]) *Pipeline[ID, S, T] {
	p.preMap = append(p.preMap, enrichers...)
	return p
}

// WithPostMap appends enrichers that run on payloads after mapping.
func (p *Pipeline[ID, S, T]) WithPostMap(enrichers ...Enricher[T]) *Pipeline[ID, S, T] {
	p.postMap = append(p.postMap, enrichers...)
	return p
}

// Run processes every id from the sequence. Record-level failures are
// counted and the run moves on; abort errors and source iteration errors
// stop it. After the main loop each failed payload is retried once.
func (p *Pipeline[ID, S, T]) Run(ctx context.Context, ids iter.Seq2[ID, error]) (*RunStats[T], error) {
	stats := &RunStats[T]{}

	for id, err := range ids {
		if err != nil {
			return stats, err
		}
		if err := p.process(ctx, id, stats); err != nil {
			var abort *abortError
			if errors.As(err, &abort) {
				return stats, abort.err
			}
			p.logger.Error("record failed", zap.Any("id", id), zap.Error(err))
			stats.FailedSources++
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
	}

	p.retryFailed(ctx, stats)
	return stats, nil
}

// process runs one id through every stage.
func (p *Pipeline[ID, S, T]) process(ctx context.Context, id ID, stats *RunStats[T]) error {
	source, err := p.downloader.Download(ctx, id)
	if err != nil {
		return err
	}
	if source == nil {
		stats.Add(Skipped, nil)
		return nil
	}

	for _, enricher := range p.preMap {
		if err := enricher.Enrich(ctx, source); err != nil {
			return err
		}
	}

	payloads, err := p.mapper.Map(ctx, source)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		stats.Add(Skipped, nil)
		return nil
	}

	for _, payload := range payloads {
		if err := p.enrichAndUpload(ctx, payload, stats); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline[ID, S, T]) enrichAndUpload(ctx context.Context, payload *T, stats *RunStats[T]) error {
	for _, enricher := range p.postMap {
		if err := enricher.Enrich(ctx, payload); err != nil {
			return err
		}
	}

	result, err := p.uploader.Upload(ctx, payload)
	if err != nil && IsAbort(err) {
		return err
	}
	if err != nil {
		p.logger.Error("upload failed", zap.Error(err))
	}
	stats.Add(result, payload)
	return nil
}

// retryFailed gives every failed payload one more upload attempt and
// reclassifies the outcomes.
func (p *Pipeline[ID, S, T]) retryFailed(ctx context.Context, stats *RunStats[T]) {
	if len(stats.Failed) == 0 {
		return
	}
	p.logger.Info("retrying failed uploads", zap.Int("count", len(stats.Failed)))

	failed := stats.Failed
	stats.Failed = nil
	for _, payload := range failed {
		result, err := p.uploader.Upload(ctx, payload)
		if err != nil {
			p.logger.Error("retry failed", zap.Error(err))
		}
		stats.Add(result, payload)
	}
}
