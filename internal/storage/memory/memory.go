// Package memory is an in-process storage.Store. Writers for a user are
// serialized and work on a private copy that is published on commit, so
// readers always see either the old or the new state.
package memory

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/storage"
)

var errReadOnly = errors.New("write in read-only transaction")

type Storage struct {
	mu     sync.Mutex
	users  map[domain.UserID]*userState
	nextID atomic.Int64
	now    func() time.Time
}

type userState struct {
	write sync.Mutex

	mu   sync.RWMutex
	data *dataset
}

type dataset struct {
	categories   map[int64]domain.Category
	transactions map[int64]domain.Transaction
	positions    map[string]domain.Position
	lots         []domain.LotEvent
}

func newDataset() *dataset {
	return &dataset{
		categories:   map[int64]domain.Category{},
		transactions: map[int64]domain.Transaction{},
		positions:    map[string]domain.Position{},
	}
}

func (d *dataset) clone() *dataset {
	return &dataset{
		categories:   maps.Clone(d.categories),
		transactions: maps.Clone(d.transactions),
		positions:    maps.Clone(d.positions),
		lots:         slices.Clone(d.lots),
	}
}

func NewStorage() *Storage {
	return &Storage{users: map[domain.UserID]*userState{}, now: time.Now}
}

func (s *Storage) user(id domain.UserID) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		u = &userState{data: newDataset()}
		s.users[id] = u
	}
	return u
}

func (s *Storage) Update(ctx context.Context, user domain.UserID, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	u := s.user(user)
	u.write.Lock()
	defer u.write.Unlock()

	u.mu.RLock()
	working := u.data.clone()
	u.mu.RUnlock()

	if err := fn(&tx{store: s, user: user, data: working}); err != nil {
		return err
	}

	u.mu.Lock()
	u.data = working
	u.mu.Unlock()
	return nil
}

func (s *Storage) View(ctx context.Context, user domain.UserID, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	u := s.user(user)
	u.mu.RLock()
	snapshot := u.data
	u.mu.RUnlock()
	return fn(&tx{store: s, user: user, data: snapshot, readOnly: true})
}

type tx struct {
	store    *Storage
	user     domain.UserID
	data     *dataset
	readOnly bool
}

func (t *tx) writable() error {
	if t.readOnly {
		return fmt.Errorf("%w: %v", domain.ErrPersistence, errReadOnly)
	}
	return nil
}

func (t *tx) GetCategory(_ context.Context, id int64) (domain.Category, error) {
	c, ok := t.data.categories[id]
	if !ok {
		return domain.Category{}, fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (t *tx) ListCategories(_ context.Context, kind domain.Kind) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range t.data.categories {
		if kind == "" || c.Kind == kind {
			out = append(out, c)
		}
	}
	slices.SortFunc(out, func(a, b domain.Category) int {
		if a.IsDefault != b.IsDefault {
			if a.IsDefault {
				return 1
			}
			return -1
		}
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return compareInt(a.ID, b.ID)
	})
	return out, nil
}

func (t *tx) UpsertCategory(_ context.Context, c domain.Category) (domain.Category, error) {
	if err := t.writable(); err != nil {
		return c, err
	}
	if c.ID == 0 {
		c.ID = t.store.nextID.Add(1)
		c.CreatedAt = t.store.now()
	} else if _, ok := t.data.categories[c.ID]; !ok {
		return c, fmt.Errorf("category %d: %w", c.ID, domain.ErrNotFound)
	}
	c.UserID = t.user
	t.data.categories[c.ID] = c
	return c, nil
}

func (t *tx) DeleteCategory(_ context.Context, id int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.categories[id]; !ok {
		return fmt.Errorf("category %d: %w", id, domain.ErrNotFound)
	}
	delete(t.data.categories, id)
	return nil
}

func (t *tx) CountTransactions(_ context.Context, categoryID int64) (int, error) {
	n := 0
	for _, tr := range t.data.transactions {
		if tr.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

func (t *tx) ReassignTransactions(_ context.Context, from, to int64) (int, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	n := 0
	for id, tr := range t.data.transactions {
		if tr.CategoryID == from {
			tr.CategoryID = to
			t.data.transactions[id] = tr
			n++
		}
	}
	return n, nil
}

func (t *tx) GetTransaction(_ context.Context, id int64) (domain.Transaction, error) {
	tr, ok := t.data.transactions[id]
	if !ok {
		return domain.Transaction{}, fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	return tr, nil
}

func (t *tx) ListTransactions(_ context.Context, f storage.TransactionFilter) ([]domain.Transaction, error) {
	var out []domain.Transaction
	for _, tr := range t.data.transactions {
		if matches(tr, f) {
			out = append(out, tr)
		}
	}
	slices.SortFunc(out, func(a, b domain.Transaction) int {
		if c := b.OccurredOn.Compare(a.OccurredOn); c != 0 {
			return c
		}
		return compareInt(b.ID, a.ID)
	})
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func matches(tr domain.Transaction, f storage.TransactionFilter) bool {
	switch {
	case !f.From.IsZero() && tr.OccurredOn.Before(f.From):
		return false
	case !f.To.IsZero() && !tr.OccurredOn.Before(f.To):
		return false
	case f.Kind != "" && tr.Kind != f.Kind:
		return false
	case f.CategoryID != 0 && tr.CategoryID != f.CategoryID:
		return false
	case f.PaymentMethod != "" && !strings.EqualFold(tr.PaymentMethod, f.PaymentMethod):
		return false
	}
	if f.After != nil {
		// strictly after the cursor in descending order
		if tr.OccurredOn.After(f.After.OccurredOn) {
			return false
		}
		if tr.OccurredOn.Equal(f.After.OccurredOn) && tr.ID >= f.After.ID {
			return false
		}
	}
	return true
}

func (t *tx) UpsertTransaction(_ context.Context, tr domain.Transaction) (domain.Transaction, error) {
	if err := t.writable(); err != nil {
		return tr, err
	}
	if _, ok := t.data.categories[tr.CategoryID]; !ok {
		return tr, fmt.Errorf("category %d: %w", tr.CategoryID, domain.ErrNotFound)
	}
	if tr.ID == 0 {
		tr.ID = t.store.nextID.Add(1)
		tr.CreatedAt = t.store.now()
	} else if _, ok := t.data.transactions[tr.ID]; !ok {
		return tr, fmt.Errorf("transaction %d: %w", tr.ID, domain.ErrNotFound)
	}
	tr.UserID = t.user
	t.data.transactions[tr.ID] = tr
	return tr, nil
}

func (t *tx) DeleteTransaction(_ context.Context, id int64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.data.transactions[id]; !ok {
		return fmt.Errorf("transaction %d: %w", id, domain.ErrNotFound)
	}
	delete(t.data.transactions, id)
	return nil
}

func (t *tx) GetPosition(_ context.Context, ticker string) (domain.Position, error) {
	p, ok := t.data.positions[ticker]
	if !ok {
		return domain.Position{}, fmt.Errorf("position %s: %w", ticker, domain.ErrNotFound)
	}
	return p, nil
}

func (t *tx) ListPositions(_ context.Context) ([]domain.Position, error) {
	keys := slices.Sorted(maps.Keys(t.data.positions))
	out := make([]domain.Position, 0, len(keys))
	for _, k := range keys {
		out = append(out, t.data.positions[k])
	}
	return out, nil
}

func (t *tx) UpsertPosition(_ context.Context, p domain.Position) (domain.Position, error) {
	if err := t.writable(); err != nil {
		return p, err
	}
	p.UserID = t.user
	p.UpdatedAt = t.store.now()
	t.data.positions[p.Ticker] = p
	return p, nil
}

func (t *tx) AppendLot(_ context.Context, e domain.LotEvent) (domain.LotEvent, error) {
	if err := t.writable(); err != nil {
		return e, err
	}
	e.ID = t.store.nextID.Add(1)
	e.UserID = t.user
	t.data.lots = append(t.data.lots, e)
	return e, nil
}

func (t *tx) ListLots(_ context.Context, ticker string) ([]domain.LotEvent, error) {
	var out []domain.LotEvent
	for _, e := range t.data.lots {
		if ticker == "" || e.Ticker == ticker {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.LotEvent) int {
		if c := a.OccurredOn.Compare(b.OccurredOn); c != 0 {
			return c
		}
		return compareInt(a.ID, b.ID)
	})
	return out, nil
}

func (t *tx) DeleteAll(_ context.Context) (storage.Purged, error) {
	if err := t.writable(); err != nil {
		return storage.Purged{}, err
	}
	p := storage.Purged{
		Transactions: len(t.data.transactions),
		Categories:   len(t.data.categories),
		Positions:    len(t.data.positions),
		Lots:         len(t.data.lots),
	}
	*t.data = *newDataset()
	return p, nil
}

func compareInt(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
