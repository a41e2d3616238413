package sales

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Store persists sale records. InsertSales must be atomic for one call and
// return ErrDuplicate (wrapped) when the unique (order_id, line_item_id)
// constraint rejects the batch.
type Store interface {
	InsertSales(ctx context.Context, records []Record) ([]Record, error)
	FirstUserID(ctx context.Context) (*string, error)
}

// MemoryStore is an in-process Store with the same uniqueness rule as the
// real table. Used by tests and the dev server.
type MemoryStore struct {
	mu     sync.Mutex
	rows   []Record
	keys   map[string]bool
	users  []string
	nextID int64
}

func NewMemoryStore(users ...string) *MemoryStore {
	return &MemoryStore{
		keys:   map[string]bool{},
		users:  users,
		nextID: 1,
	}
}

func rowKey(r Record) string {
	return r.OrderID + "/" + r.LineItemID
}

func (m *MemoryStore) InsertSales(ctx context.Context, records []Record) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	batch := map[string]bool{}
	for _, r := range records {
		k := rowKey(r)
		if m.keys[k] || batch[k] {
			return nil, fmt.Errorf("insert %s: %w", k, ErrDuplicate)
		}
		batch[k] = true
	}

	now := time.Now().UTC()
	out := make([]Record, 0, len(records))
	for _, r := range records {
		r.ID = m.nextID
		m.nextID++
		created := now
		r.CreatedAt = &created
		m.keys[rowKey(r)] = true
		m.rows = append(m.rows, r)
		out = append(out, r)
	}
	return out, nil
}

func (m *MemoryStore) FirstUserID(ctx context.Context) (*string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.users) == 0 {
		return nil, nil
	}
	u := m.users[0]
	return &u, nil
}

// All returns a copy of every stored row in insertion order.
func (m *MemoryStore) All() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Record(nil), m.rows...)
}
