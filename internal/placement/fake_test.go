package placement

import (
	"context"
	"sort"
	"sync"

	"github.com/abhisek/gauge/internal/apperr"
	"github.com/abhisek/gauge/internal/bank"
	"github.com/abhisek/gauge/internal/level"
)

// memStore is an in-memory SessionStore. WithinTx works on a copy of the
// state and swaps it in only when fn succeeds.
type memStore struct {
	mu    sync.Mutex
	items map[int64]*bank.Item
	state memState
}

type memState struct {
	sessions  map[string]Session
	responses map[string][]Response
	nextResp  int64
}

func (s memState) clone() memState {
	c := memState{
		sessions:  make(map[string]Session, len(s.sessions)),
		responses: make(map[string][]Response, len(s.responses)),
		nextResp:  s.nextResp,
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.responses {
		c.responses[k] = append([]Response(nil), v...)
	}
	return c
}

func newMemStore(items []*bank.Item) *memStore {
	m := &memStore{
		items: make(map[int64]*bank.Item, len(items)),
		state: memState{sessions: map[string]Session{}, responses: map[string][]Response{}},
	}
	for _, it := range items {
		m.items[it.ID] = it
	}
	return m
}

// fullBank builds perCell items for every level and skill. Every item's
// correct answer is "right".
func fullBank(perCell int) []*bank.Item {
	var items []*bank.Item
	var id int64
	for _, l := range level.All() {
		for _, sk := range bank.Rotation() {
			for i := 0; i < perCell; i++ {
				id++
				items = append(items, &bank.Item{
					ID:            id,
					Text:          "q",
					Type:          bank.TypeMultipleChoice,
					Level:         l,
					Skill:         sk,
					Options:       []string{"right", "wrong"},
					CorrectAnswer: "right",
				})
			}
		}
	}
	return items
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memTx{items: m.items, st: m.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = tx.st
	return nil
}

func (m *memStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{items: m.items, st: m.state}).GetSession(ctx, id)
}

func (m *memStore) Responses(ctx context.Context, id string) ([]Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{items: m.items, st: m.state}).Responses(ctx, id)
}

func (m *memStore) ListByOwner(ctx context.Context, owner string, limit int) ([]*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return (&memTx{items: m.items, st: m.state}).ListByOwner(ctx, owner, limit)
}

func (m *memStore) GetItem(ctx context.Context, id int64) (*bank.Item, error) {
	return (&memTx{items: m.items}).GetItem(ctx, id)
}

func (m *memStore) sessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.sessions)
}

type memTx struct {
	items map[int64]*bank.Item
	st    memState
}

func (t *memTx) FindCandidate(_ context.Context, lvl level.Level, skill bank.Skill, exclude []int64) (*bank.Item, error) {
	skip := make(map[int64]bool, len(exclude))
	for _, id := range exclude {
		skip[id] = true
	}
	var best *bank.Item
	for _, it := range t.items {
		if it.Level != lvl || (skill != "" && it.Skill != skill) || skip[it.ID] {
			continue
		}
		if best == nil || it.ID < best.ID {
			best = it
		}
	}
	if best == nil {
		return nil, apperr.Exhausted("memstore.find", "no item at %s/%s", lvl, skill)
	}
	return best, nil
}

func (t *memTx) GetItem(_ context.Context, id int64) (*bank.Item, error) {
	it, ok := t.items[id]
	if !ok {
		return nil, apperr.NotFound("memstore.item", "item %d not found", id).WithItem(id)
	}
	return it, nil
}

func (t *memTx) GetSession(_ context.Context, id string) (*Session, error) {
	s, ok := t.st.sessions[id]
	if !ok {
		return nil, apperr.NotFound("memstore.session", "session %s not found", id).WithSession(id)
	}
	return &s, nil
}

func (t *memTx) Responses(_ context.Context, id string) ([]Response, error) {
	return append([]Response(nil), t.st.responses[id]...), nil
}

func (t *memTx) ListByOwner(_ context.Context, owner string, limit int) ([]*Session, error) {
	var out []*Session
	for _, s := range t.st.sessions {
		if s.OwnerID == owner {
			s := s
			out = append(out, &s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (t *memTx) ActiveForOwner(_ context.Context, owner string) (*Session, error) {
	for _, s := range t.st.sessions {
		if s.OwnerID == owner && s.Status == StatusActive {
			s := s
			return &s, nil
		}
	}
	return nil, nil
}

func (t *memTx) CreateSession(_ context.Context, s *Session) error {
	for _, o := range t.st.sessions {
		if o.OwnerID == s.OwnerID && o.Status == StatusActive {
			return apperr.Conflict("memstore.create", "owner has an active session")
		}
	}
	t.st.sessions[s.ID] = *s
	return nil
}

func (t *memTx) UpdateSession(_ context.Context, s *Session) error {
	t.st.sessions[s.ID] = *s
	return nil
}

func (t *memTx) AppendResponse(_ context.Context, r *Response) error {
	for _, o := range t.st.responses[r.SessionID] {
		if o.Sequence == r.Sequence {
			return apperr.Conflict("memstore.append", "sequence %d taken", r.Sequence)
		}
	}
	t.st.nextResp++
	r.ID = t.st.nextResp
	t.st.responses[r.SessionID] = append(t.st.responses[r.SessionID], *r)
	return nil
}
