package resolver

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/BarkinBalci/firehose-archiver/internal/metrics"
)

// Resolver resolves actor DIDs to handles through the directory service.
// Concurrent calls for the same DID share a single in-flight lookup, and a
// fixed permit pool bounds outstanding remote calls; the pool is the only
// rate-limiting device toward the directory, there is no retry.
type Resolver struct {
	client DirectoryClient
	cache  *HandleCache
	sem    *semaphore.Weighted
	group  singleflight.Group
	log    *zap.Logger
}

// NewResolver creates a new handle resolver
func NewResolver(client DirectoryClient, cache *HandleCache, concurrency int64, log *zap.Logger) *Resolver {
	return &Resolver{
		client: client,
		cache:  cache,
		sem:    semaphore.NewWeighted(concurrency),
		log:    log,
	}
}

// Cached returns the handle for a DID if it has already been resolved.
func (r *Resolver) Cached(did string) (string, bool) {
	return r.cache.Get(did)
}

// Resolve returns the handle for a DID, consulting the cache first. A failed
// lookup is not cached, so a later call may retry it from scratch.
func (r *Resolver) Resolve(ctx context.Context, did string) (string, error) {
	if handle, ok := r.cache.Get(did); ok {
		metrics.HandleCacheHits.Inc()
		return handle, nil
	}
	metrics.HandleCacheMisses.Inc()

	value, err, _ := r.group.Do(did, func() (interface{}, error) {
		// Another caller may have finished while we queued for the flight.
		if handle, ok := r.cache.Get(did); ok {
			return handle, nil
		}

		if err := r.sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer r.sem.Release(1)

		handle, err := r.client.DescribeRepo(ctx, did)
		if err != nil {
			return nil, err
		}

		r.cache.Put(did, handle)
		return handle, nil
	})
	if err != nil {
		metrics.HandleResolutionErrors.Inc()
		return "", err
	}

	return value.(string), nil
}
