// Package memory is an in-process feed source. Collections live in memory
// and every change pushes a fresh snapshot to each matching subscription.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/okian/livepitch/internal/feed"
)

type subscription struct {
	desc feed.Descriptor
	h    feed.Handler
}

// Source holds collections of documents keyed by id.
type Source struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any
	subs        map[uint64]*subscription
	seq         uint64

	// deliverMu orders deliveries and lets teardown wait for one in flight.
	deliverMu sync.Mutex
}

// New creates an empty Source.
func New() *Source {
	return &Source{
		collections: make(map[string]map[string]map[string]any),
		subs:        make(map[uint64]*subscription),
	}
}

var _ feed.Source = (*Source)(nil)

// Subscribe registers h for d and delivers the current result set
// immediately. The returned teardown must not be called from inside a
// handler callback.
func (s *Source) Subscribe(_ context.Context, d feed.Descriptor, h feed.Handler) (feed.Teardown, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	s.seq++
	id := s.seq
	sub := &subscription{desc: d, h: h}
	s.subs[id] = sub
	docs := s.documentsLocked(d.Source)
	s.mu.Unlock()

	h.OnSnapshot(feed.Snapshot{Documents: d.Apply(docs)})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.deliverMu.Lock()
			defer s.deliverMu.Unlock()
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}, nil
}

// Put creates or replaces a document.
func (s *Source) Put(collection, id string, data map[string]any) {
	s.mu.Lock()
	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		s.collections[collection] = coll
	}
	coll[id] = feed.Document{Data: data}.Clone().Data
	s.mu.Unlock()

	s.notify(collection)
}

// Delete removes a document. Deleting a missing document still notifies.
func (s *Source) Delete(collection, id string) {
	s.mu.Lock()
	if coll, ok := s.collections[collection]; ok {
		delete(coll, id)
	}
	s.mu.Unlock()

	s.notify(collection)
}

// Publish replaces a whole collection at once.
func (s *Source) Publish(collection string, docs []feed.Document) {
	coll := make(map[string]map[string]any, len(docs))
	for _, d := range docs {
		coll[d.ID] = d.Clone().Data
	}

	s.mu.Lock()
	s.collections[collection] = coll
	s.mu.Unlock()

	s.notify(collection)
}

// Fail reports err to every subscription of a collection.
func (s *Source) Fail(collection string, err error) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	for _, sub := range s.subscriptions(collection) {
		sub.h.OnError(err)
	}
}

// Documents returns a copy of a collection sorted by id.
func (s *Source) Documents(collection string) []feed.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.documentsLocked(collection)
	for i := range docs {
		docs[i] = docs[i].Clone()
	}
	return docs
}

// Subscribers returns the number of live subscriptions.
func (s *Source) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Source) notify(collection string) {
	s.deliverMu.Lock()
	defer s.deliverMu.Unlock()

	s.mu.Lock()
	docs := s.documentsLocked(collection)
	s.mu.Unlock()

	for _, sub := range s.subscriptions(collection) {
		sub.h.OnSnapshot(feed.Snapshot{Documents: sub.desc.Apply(docs)})
	}
}

func (s *Source) subscriptions(collection string) []*subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.subs))
	for id, sub := range s.subs {
		if sub.desc.Source == collection {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*subscription, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.subs[id])
	}
	return out
}

// documentsLocked returns the documents of a collection sorted by id. The
// data maps are shared; callers copy before handing them out.
func (s *Source) documentsLocked(collection string) []feed.Document {
	coll := s.collections[collection]
	out := make([]feed.Document, 0, len(coll))
	for id, data := range coll {
		out = append(out, feed.Document{ID: id, Data: data})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
