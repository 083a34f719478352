package lexical

import (
	"sync/atomic"

	"github.com/kirillkom/knowledge-agents/internal/core/domain"
)

// Store holds the live index and swaps in fresh snapshots atomically.
// Searches see either the old snapshot or the new one, never a mix.
type Store struct {
	params  Params
	current atomic.Pointer[Index]
}

func NewStore(params Params) *Store {
	s := &Store{params: params.withDefaults()}
	s.current.Store(Build(nil, s.params))
	return s
}

func (s *Store) Rebuild(docs []domain.Document) {
	s.current.Store(Build(docs, s.params))
}

func (s *Store) Search(query string, limit int) []domain.SearchHit {
	return s.current.Load().Search(query, limit)
}

func (s *Store) Size() int {
	return s.current.Load().Size()
}
