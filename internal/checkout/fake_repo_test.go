package checkout_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/checkout"
	inventoryDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/inventory"
	orderDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/order"
)

// memoryStore imitates the row locks and rollback of the database. Each item
// has its own mutex held from LockItem until the transaction ends, and writes
// are staged until commit.
type memoryStore struct {
	mu      sync.Mutex
	rowLock map[int64]*sync.Mutex
	items   map[int64]inventoryDatamodel.Item
	orders  []*orderDatamodel.Order
	lines   []*orderDatamodel.OrderItem
	nextID  int64

	// lockLog records lock acquisition order per transaction.
	lockLog [][]int64
	// failOn makes the named step fail.
	failOn string
	// holding counts concurrent holders of an item lock past the stock check.
	holding    map[int64]int
	maxHolding map[int64]int
}

func newMemoryStore(items ...inventoryDatamodel.Item) *memoryStore {
	s := &memoryStore{
		rowLock:    map[int64]*sync.Mutex{},
		items:      map[int64]inventoryDatamodel.Item{},
		nextID:     1,
		holding:    map[int64]int{},
		maxHolding: map[int64]int{},
	}
	for _, it := range items {
		s.items[it.ID] = it
		s.rowLock[it.ID] = &sync.Mutex{}
	}
	return s
}

func (s *memoryStore) quantity(id int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[id].Quantity
}

func (s *memoryStore) orderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *memoryStore) WithinTransaction(ctx context.Context, fn func(tx checkout.TxAPI) error) error {
	tx := &memoryTx{store: s, decrements: map[int64]int64{}}
	err := fn(tx)
	if err == nil {
		s.mu.Lock()
		for id, q := range tx.decrements {
			it := s.items[id]
			it.Quantity -= q
			s.items[id] = it
		}
		s.orders = append(s.orders, tx.orders...)
		s.lines = append(s.lines, tx.lines...)
		s.mu.Unlock()
	}
	s.mu.Lock()
	s.lockLog = append(s.lockLog, tx.locked)
	for _, id := range tx.locked {
		s.holding[id]--
	}
	s.mu.Unlock()
	for i := len(tx.locked) - 1; i >= 0; i-- {
		s.rowLock[tx.locked[i]].Unlock()
	}
	return err
}

func (s *memoryStore) ListOrders(_ context.Context, userID int64) ([]*orderDatamodel.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*orderDatamodel.Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memoryStore) ListOrderItems(_ context.Context, ids []int64) ([]*orderDatamodel.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[int64]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var out []*orderDatamodel.OrderItem
	for _, l := range s.lines {
		if want[l.OrderID] {
			out = append(out, l)
		}
	}
	return out, nil
}

type memoryTx struct {
	store      *memoryStore
	locked     []int64
	decrements map[int64]int64
	orders     []*orderDatamodel.Order
	lines      []*orderDatamodel.OrderItem
}

func (t *memoryTx) LockItem(_ context.Context, id int64) (*inventoryDatamodel.Item, error) {
	if t.store.failOn == "lock" {
		return nil, errors.New("connection reset")
	}
	t.store.mu.Lock()
	lock, ok := t.store.rowLock[id]
	t.store.mu.Unlock()
	if !ok {
		return nil, internal.ErrInventoryNotFound
	}

	lock.Lock()
	t.store.mu.Lock()
	t.locked = append(t.locked, id)
	t.store.holding[id]++
	if t.store.holding[id] > t.store.maxHolding[id] {
		t.store.maxHolding[id] = t.store.holding[id]
	}
	it := t.store.items[id]
	t.store.mu.Unlock()
	// widen the window for interleavings
	time.Sleep(100 * time.Microsecond)
	return &it, nil
}

func (t *memoryTx) DecrementQuantity(_ context.Context, id, quantity int64) error {
	if t.store.failOn == "decrement" {
		return errors.New("disk full")
	}
	t.decrements[id] += quantity
	return nil
}

func (t *memoryTx) CreateOrder(_ context.Context, o *orderDatamodel.Order) error {
	if t.store.failOn == "order" {
		return errors.New("insert failed")
	}
	t.store.mu.Lock()
	o.ID = t.store.nextID
	t.store.nextID++
	t.store.mu.Unlock()
	o.CreatedAt = time.Now()
	t.orders = append(t.orders, o)
	return nil
}

func (t *memoryTx) CreateOrderItems(_ context.Context, items []*orderDatamodel.OrderItem) error {
	if t.store.failOn == "items" {
		return errors.New("insert failed")
	}
	t.store.mu.Lock()
	for _, it := range items {
		it.ID = t.store.nextID
		t.store.nextID++
	}
	t.store.mu.Unlock()
	t.lines = append(t.lines, items...)
	return nil
}
