package reference

import (
	"context"
	"fmt"
	"time"

	"github.com/bluele/gcache"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/danpilch/idfmpal/internal/api/dataset"
)

const snapshotKey = "snapshot"

// Source downloads the raw exports. *dataset.Client implements it.
type Source interface {
	Lines(ctx context.Context) ([]dataset.Record[dataset.LineFields], error)
	StopAndLines(ctx context.Context) ([]dataset.Record[dataset.StopLineFields], error)
	StopRelations(ctx context.Context) ([]dataset.Record[dataset.RelationFields], error)
	ExchangeAreas(ctx context.Context) ([]dataset.ExchangeArea, error)
}

// Store builds the Snapshot on first use and keeps it for the process
// lifetime. Concurrent callers share a single in-flight build; a failed
// build publishes nothing and the next call tries again.
type Store struct {
	source  Source
	timeout time.Duration
	logger  *logrus.Logger
	cache   gcache.Cache
}

// NewStore creates a Store. timeout bounds one whole build.
func NewStore(source Source, timeout time.Duration, logger *logrus.Logger) *Store {
	s := &Store{
		source:  source,
		timeout: timeout,
		logger:  logger,
	}
	s.cache = gcache.New(1).Simple().LoaderFunc(func(any) (any, error) {
		return s.build()
	}).Build()
	return s
}

// Snapshot returns the cached listings, building them if needed. ctx only
// bounds how long this caller waits; an in-flight build keeps running for
// the callers still waiting on it.
func (s *Store) Snapshot(ctx context.Context) (*Snapshot, error) {
	// Published snapshots never expire. Has does not trigger a load.
	if s.cache.Has(snapshotKey) {
		if v, err := s.cache.Get(snapshotKey); err == nil {
			return v.(*Snapshot), nil
		}
	}

	type result struct {
		snap *Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		v, err := s.cache.Get(snapshotKey)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{snap: v.(*Snapshot)}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-done:
		return r.snap, r.err
	}
}

func (s *Store) build() (*Snapshot, error) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	s.logger.Debug("fetching idfm datasets")

	var d Datasets
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		d.Lines, err = s.source.Lines(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.StopAndLines, err = s.source.StopAndLines(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.StopRelations, err = s.source.StopRelations(gctx)
		return err
	})
	g.Go(func() (err error) {
		d.ExchangeAreas, err = s.source.ExchangeAreas(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.WithField("error", err).Error("failed to fetch reference datasets")
		return nil, fmt.Errorf("building reference data: %w", err)
	}

	snap := Join(d)

	var lines int
	for _, names := range snap.Lines {
		lines += len(names)
	}
	s.logger.WithFields(logrus.Fields{
		"lines":    lines,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Info("reference data built")

	return snap, nil
}
