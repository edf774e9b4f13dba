// Package search implements the bounded-concurrency label query engine
// described in spec §4.4: it turns a collection name plus a list of
// include/exclude label predicates into a deduplicated set of object
// references, honouring a global timeout and a configured parallelism cap.
package search

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/Quyzi/mc6/pkg/backend"
	"github.com/Quyzi/mc6/pkg/kv"
	"github.com/Quyzi/mc6/pkg/label"
	"github.com/Quyzi/mc6/pkg/mc6err"
	"github.com/Quyzi/mc6/pkg/meta"
	"github.com/Quyzi/mc6/pkg/objectref"
	"github.com/Quyzi/mc6/pkg/posting"
)

// LabelOp distinguishes an Include predicate from an Exclude predicate.
type LabelOp int

const (
	Include LabelOp = iota
	Exclude
)

// SearchLabel is one predicate in a Request: Include(L) or Exclude(L).
type SearchLabel struct {
	Op    LabelOp
	Label label.Label
}

// Request is a label-based search over one collection.
type Request struct {
	Collection string
	Labels     []SearchLabel
}

// Include appends an Include(l) predicate, the Go analogue of the
// prototype's SearchRequest::include (SPEC_FULL.md §4).
func (r *Request) Include(l label.Label) {
	r.Labels = append(r.Labels, SearchLabel{Op: Include, Label: l})
}

// Exclude appends an Exclude(l) predicate.
func (r *Request) Exclude(l label.Label) {
	r.Labels = append(r.Labels, SearchLabel{Op: Exclude, Label: l})
}

// IncludeAll appends an Include predicate for every label in ls.
func (r *Request) IncludeAll(ls ...label.Label) {
	for _, l := range ls {
		r.Include(l)
	}
}

// ExcludeAll appends an Exclude predicate for every label in ls.
func (r *Request) ExcludeAll(ls ...label.Label) {
	for _, l := range ls {
		r.Exclude(l)
	}
}

// FoundObject pairs a matched ObjectRef with its decorating metadata.
type FoundObject struct {
	Object objectref.ObjectRef
	Meta   meta.Metadata
}

// Response is the outcome of evaluating a Request.
type Response struct {
	Request Request
	Results []FoundObject
}

// Engine evaluates search Requests against a Backend.
type Engine struct {
	backend *backend.Backend
}

// New builds an Engine over b, reading query_concurrency/query_timeout_secs
// from b's configuration at Run time.
func New(b *backend.Backend) *Engine {
	return &Engine{backend: b}
}

// Run executes req: resolves the target collection, fans out up to
// query_concurrency concurrent label-posting fetches under a
// query_timeout_secs deadline, composes includes\excludes, then decorates
// every surviving ObjectRef with its metadata (spec §4.4). Empty
// req.Labels yields an empty includes set and hence an empty result, not
// all objects (spec §4.4 semantics notes).
func (e *Engine) Run(ctx context.Context, req Request) (Response, error) {
	coll, err := e.backend.GetCollection(req.Collection)
	if err != nil {
		return Response{}, err
	}

	cfg := e.backend.Config().Mauve
	timeout := time.Duration(cfg.QueryTimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	concurrency := cfg.QueryConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	sem := semaphore.NewWeighted(int64(concurrency))

	var mu sync.Mutex
	includes := make(map[objectref.ObjectRef]struct{})
	excludes := make(map[objectref.ObjectRef]struct{})

	var wg sync.WaitGroup
	var errOnce sync.Once
	var firstErr error

	for _, sl := range req.Labels {
		sl := sl
		if err := sem.Acquire(ctx, 1); err != nil {
			errOnce.Do(func() {
				firstErr = mc6err.Wrap(mc6err.KindTimeout, "search deadline exceeded", err)
			})
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)

			refs, err := fetchPosting(coll.IndexFwd(), sl.Label.Forward())
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}

			mu.Lock()
			target := includes
			if sl.Op == Exclude {
				target = excludes
			}
			for _, ref := range refs {
				target[ref] = struct{}{}
			}
			mu.Unlock()
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return Response{}, mc6err.Wrap(mc6err.KindTimeout, "search deadline exceeded", ctx.Err())
	}

	if firstErr != nil {
		return Response{}, firstErr
	}

	for ref := range excludes {
		delete(includes, ref)
	}

	results := make([]FoundObject, 0, len(includes))
	for ref := range includes {
		m, err := coll.GetObjectMetadata(ref.Name)
		if err != nil {
			// spec §4.4 step 7 / SPEC_FULL.md Q3: a metadata fetch
			// failure fails the whole search.
			return Response{}, err
		}
		results = append(results, FoundObject{Object: ref, Meta: m})
	}

	return Response{Request: req, Results: results}, nil
}

// fetchPosting reads the posting at key in subtree. A missing index key is
// treated as an empty posting (spec §4.4 step 3).
func fetchPosting(subtree *kv.Subtree, key string) ([]objectref.ObjectRef, error) {
	v, ok, err := subtree.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return posting.Decode(v)
}
