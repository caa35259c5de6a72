// Package store keeps discovered articles in memory for the life of the
// process.
package store

import (
	"sync"

	"github.com/newsbrief/newsbrief/internal/types"
)

// ArticleStore maps headline ids to article records. Content is written at
// most once per id; writers for the same id are serialized by a key lock.
type ArticleStore struct {
	mu       sync.RWMutex
	articles map[string]*types.Article

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates an empty ArticleStore.
func New() *ArticleStore {
	return &ArticleStore{
		articles: make(map[string]*types.Article),
		locks:    make(map[string]*sync.Mutex),
	}
}

// Put inserts a record for a newly discovered headline. An existing record
// with the same id is left untouched.
func (s *ArticleStore) Put(a types.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.articles[a.ID]; exists {
		return
	}
	rec := a
	s.articles[a.ID] = &rec
}

// Get returns a copy of the record for id.
func (s *ArticleStore) Get(id string) (types.Article, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.articles[id]
	if !ok {
		return types.Article{}, false
	}
	return *a, true
}

// Len returns the number of stored articles.
func (s *ArticleStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.articles)
}

// EnsureContent returns the record for id with its content populated. When
// content is missing, load is called once, under the id's lock, and the
// record it returns is stored. Concurrent callers for the same id wait and
// then see the stored content. loaded reports whether load ran.
func (s *ArticleStore) EnsureContent(id string, load func(types.Article) types.Article) (a types.Article, loaded bool, err error) {
	current, ok := s.Get(id)
	if !ok {
		return types.Article{}, false, types.ErrArticleNotFound
	}
	if current.HasContent() {
		return current, false, nil
	}

	lock := s.keyLock(id)
	lock.Lock()
	defer lock.Unlock()

	current, _ = s.Get(id)
	if current.HasContent() {
		return current, false, nil
	}

	updated := load(current)
	updated.ID = current.ID
	if !updated.HasContent() {
		// Nothing to write; the next request tries again.
		return updated, true, nil
	}

	s.mu.Lock()
	rec := updated
	s.articles[id] = &rec
	s.mu.Unlock()
	return updated, true, nil
}

func (s *ArticleStore) keyLock(id string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}
