package session

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/seventv/common/sync_map"
)

var ErrNotFound = errors.New("session not found")

// Store keeps every open session by id.
type Store struct {
	opts     Options
	sessions *sync_map.Map[string, *Session]
}

func NewStore(opts Options) *Store {
	return &Store{
		opts:     opts,
		sessions: &sync_map.Map[string, *Session]{},
	}
}

func (st *Store) Create(ctx context.Context, name string, data []byte) (*Session, error) {
	s, err := New(ctx, uuid.New().String(), name, data, st.opts)
	if err != nil {
		return nil, err
	}

	st.sessions.Store(s.ID, s)

	return s, nil
}

func (st *Store) Get(id string) (*Session, error) {
	s, ok := st.sessions.Load(id)
	if !ok {
		return nil, ErrNotFound
	}

	return s, nil
}

func (st *Store) Delete(id string) error {
	s, ok := st.sessions.LoadAndDelete(id)
	if !ok {
		return ErrNotFound
	}

	s.Close()

	return nil
}

func (st *Store) Len() int {
	n := 0
	st.sessions.Range(func(_ string, _ *Session) bool {
		n++
		return true
	})

	return n
}

// Close closes every session.
func (st *Store) Close() {
	st.sessions.Range(func(id string, s *Session) bool {
		st.sessions.Delete(id)
		s.Close()

		return true
	})
}
