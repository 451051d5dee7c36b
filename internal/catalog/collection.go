package catalog

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/mmcdole/cinesync/internal/domain"
	"github.com/mmcdole/cinesync/internal/gateway"
)

// KeyKind names a collection dimension.
type KeyKind string

const (
	KindPopular  KeyKind = "popular"
	KindGenre    KeyKind = "genre"
	KindSearch   KeyKind = "search"
	KindCast     KeyKind = "cast"
	KindTrailers KeyKind = "trailers"
	KindReviews  KeyKind = "reviews"
)

// Key identifies one paginated collection.
type Key struct {
	Kind  KeyKind
	Value string
}

func (k Key) String() string {
	if k.Value == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + ":" + k.Value
}

func PopularKey() Key { return Key{Kind: KindPopular} }
func GenreKey(genreID int) Key { return Key{Kind: KindGenre, Value: strconv.Itoa(genreID)} }
func SearchKey(query string) Key { return Key{Kind: KindSearch, Value: query} }
func CastKey(movieID int) Key { return Key{Kind: KindCast, Value: strconv.Itoa(movieID)} }
func TrailersKey(movieID int) Key { return Key{Kind: KindTrailers, Value: strconv.Itoa(movieID)} }
func ReviewsKey(movieID int) Key { return Key{Kind: KindReviews, Value: strconv.Itoa(movieID)} }

// Collection is a read-only snapshot of a paginated collection.
type Collection[T domain.Identified] struct {
	Key     Key
	Items   []T
	Page    int // last applied page, 0 before the first page lands
	HasMore bool
	Loading bool
	Err     error
}

// fetchFunc loads one page of a collection.
type fetchFunc[T domain.Identified] func(ctx context.Context, key Key, page int) ([]T, error)

type collectionState[T domain.Identified] struct {
	items   []T
	seen    map[string]struct{}
	page    int // last applied page
	hasMore bool
	err     error

	generation uint64
	nextApply  int // page that must land next in this generation
	requested  int // highest page requested in this generation
	inflight   map[int]bool
	pending    map[int][]T // completed pages waiting for their predecessors
}

func newCollectionState[T domain.Identified]() *collectionState[T] {
	return &collectionState[T]{
		seen:      make(map[string]struct{}),
		nextApply: 1,
		inflight:  make(map[int]bool),
		pending:   make(map[int][]T),
	}
}

// startGeneration discards in-flight and buffered pages. Visible items stay
// until the new page 1 lands.
func (st *collectionState[T]) startGeneration(gen uint64) {
	st.generation = gen
	st.nextApply = 1
	st.requested = 0
	st.inflight = make(map[int]bool)
	st.pending = make(map[int][]T)
}

// apply buffers a completed page and drains every page that is now in order.
func (st *collectionState[T]) apply(page int, items []T, pageSize int) {
	if page < st.nextApply {
		return
	}
	st.pending[page] = items

	for {
		batch, ok := st.pending[st.nextApply]
		if !ok {
			// A retried page can drain buffered later pages past the
			// rewound request cursor.
			if st.requested < st.page {
				st.requested = st.page
			}
			return
		}
		delete(st.pending, st.nextApply)

		if st.nextApply == 1 {
			st.items = nil
			st.seen = make(map[string]struct{})
		}
		for _, item := range batch {
			id := item.GetID()
			if _, dup := st.seen[id]; dup {
				continue
			}
			st.seen[id] = struct{}{}
			st.items = append(st.items, item)
		}
		st.page = st.nextApply
		st.hasMore = len(batch) >= pageSize
		st.nextApply++
	}
}

func (st *collectionState[T]) snapshot(key Key) Collection[T] {
	return Collection[T]{
		Key:     key,
		Items:   append([]T(nil), st.items...),
		Page:    st.page,
		HasMore: st.hasMore,
		Loading: len(st.inflight) > 0,
		Err:     st.err,
	}
}

// pager owns every collection of one item type.
type pager[T domain.Identified] struct {
	pageSize int
	fetch    fetchFunc[T]
	logger   *slog.Logger

	mu    sync.Mutex
	colls map[Key]*collectionState[T]
	gen   uint64 // shared by all keys so a dropped key's stale pages never match
}

func newPager[T domain.Identified](pageSize int, fetch fetchFunc[T], logger *slog.Logger) *pager[T] {
	return &pager[T]{
		pageSize: pageSize,
		fetch:    fetch,
		logger:   logger,
		colls:    make(map[Key]*collectionState[T]),
	}
}

func (p *pager[T]) stateLocked(key Key) *collectionState[T] {
	st, ok := p.colls[key]
	if !ok {
		st = newCollectionState[T]()
		p.colls[key] = st
	}
	return st
}

// fetchPage loads one page. page 0 means the page after the highest one
// requested so far. Page 1 always starts a new generation. Pages already
// requested in this generation, and "next" on an exhausted collection, return
// the current snapshot without a network call. Pages past the next unrequested
// one are clamped to it.
func (p *pager[T]) fetchPage(ctx context.Context, key Key, page int) (Collection[T], error) {
	p.mu.Lock()
	st := p.stateLocked(key)

	switch {
	case page == 1:
	case page == 0:
		if st.page > 0 && !st.hasMore && st.requested <= st.page {
			snap := st.snapshot(key)
			p.mu.Unlock()
			return snap, nil
		}
		page = st.requested + 1
	case page <= st.requested:
		snap := st.snapshot(key)
		p.mu.Unlock()
		return snap, nil
	case page > st.requested+1:
		page = st.requested + 1
	}
	if page == 1 {
		p.gen++
		st.startGeneration(p.gen)
	}

	st.requested = page
	st.inflight[page] = true
	gen := st.generation
	p.mu.Unlock()

	p.logger.Debug("fetching page", "key", key.String(), "page", page)
	items, err := p.fetch(ctx, key, page)

	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.colls[key]
	if !ok || st.generation != gen {
		p.logger.Debug("discarding stale page", "key", key.String(), "page", page)
		if !ok {
			return Collection[T]{Key: key}, err
		}
		return st.snapshot(key), err
	}
	delete(st.inflight, page)

	if err != nil {
		// Rewind so the next "next" retries the failed page.
		if st.requested >= page {
			st.requested = page - 1
		}
		if recordable(err) {
			st.err = err
			p.logger.Error("failed to fetch page", "key", key.String(), "page", page, "error", err)
		}
		return st.snapshot(key), err
	}

	st.err = nil
	st.apply(page, items, p.pageSize)
	p.logger.Debug("fetched page", "key", key.String(), "page", page, "count", len(items), "total", len(st.items))
	return st.snapshot(key), nil
}

// recordable reports whether a fetch error belongs in the collection's error
// slot. Cancellation and session redirects are not the collection's failure.
func recordable(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, gateway.ErrRedirecting)
}

func (p *pager[T]) get(key Key) (Collection[T], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.colls[key]
	if !ok {
		return Collection[T]{Key: key}, false
	}
	return st.snapshot(key), true
}

// cached reports whether at least one page of key has landed.
func (p *pager[T]) cached(key Key) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.colls[key]
	return ok && st.page > 0
}

// drop removes every collection matching pred.
func (p *pager[T]) drop(pred func(Key) bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key := range p.colls {
		if pred(key) {
			delete(p.colls, key)
		}
	}
}

func (p *pager[T]) each(fn func(key Key, items []T)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, st := range p.colls {
		fn(key, st.items)
	}
}
