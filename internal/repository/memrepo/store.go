// Package memrepo is an in-memory DataStore with the same contracts as the
// postgres repositories. Transactions snapshot the whole store and restore
// it when the transaction function fails.
package memrepo

import (
	"context"
	"sort"
	"sync"

	"marketplace/internal/domain"
	"marketplace/internal/repository"

	"github.com/google/uuid"
)

type txKey struct{}

type state struct {
	users      map[uuid.UUID]domain.User
	categories map[uuid.UUID]domain.Category
	products   map[uuid.UUID]domain.Product
	cart       map[uuid.UUID]domain.CartItem
	orders     map[uuid.UUID]domain.Order
	orderItems map[uuid.UUID]domain.OrderItem
	// seq records insertion order for newest-first listings
	seq  map[uuid.UUID]uint64
	next uint64
}

// Store holds every table
type Store struct {
	mu     sync.Mutex
	st     state
	faults map[string]error
}

var _ repository.Transactor = (*Store)(nil)

// New creates an empty Store
func New() *Store {
	return &Store{
		st: state{
			users:      map[uuid.UUID]domain.User{},
			categories: map[uuid.UUID]domain.Category{},
			products:   map[uuid.UUID]domain.Product{},
			cart:       map[uuid.UUID]domain.CartItem{},
			orders:     map[uuid.UUID]domain.Order{},
			orderItems: map[uuid.UUID]domain.OrderItem{},
			seq:        map[uuid.UUID]uint64{},
		},
		faults: map[string]error{},
	}
}

// Fail makes every later call of op (for example "orders.CreateItem") return err.
// A nil err clears the fault.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	return s.faults[op]
}

// WithinTx restores the state seen on entry when fn or the commit fails.
// A fault registered for "tx.Commit" fails the commit. Nested calls join the outer one.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	snap := s.st.clone()
	s.mu.Unlock()

	err := fn(context.WithValue(ctx, txKey{}, true))

	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		err = s.fault("tx.Commit")
	}
	if err != nil {
		s.st = snap
	}
	return err
}

func (st *state) clone() state {
	out := state{
		users:      make(map[uuid.UUID]domain.User, len(st.users)),
		categories: make(map[uuid.UUID]domain.Category, len(st.categories)),
		products:   make(map[uuid.UUID]domain.Product, len(st.products)),
		cart:       make(map[uuid.UUID]domain.CartItem, len(st.cart)),
		orders:     make(map[uuid.UUID]domain.Order, len(st.orders)),
		orderItems: make(map[uuid.UUID]domain.OrderItem, len(st.orderItems)),
		seq:        make(map[uuid.UUID]uint64, len(st.seq)),
		next:       st.next,
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.categories {
		out.categories[k] = v
	}
	for k, v := range st.products {
		out.products[k] = v
	}
	for k, v := range st.cart {
		out.cart[k] = v
	}
	for k, v := range st.orders {
		out.orders[k] = v
	}
	for k, v := range st.orderItems {
		out.orderItems[k] = v
	}
	for k, v := range st.seq {
		out.seq[k] = v
	}
	return out
}

func (st *state) track(id uuid.UUID) {
	st.next++
	st.seq[id] = st.next
}

// newestFirst sorts ids by descending insertion order
func (st *state) newestFirst(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return st.seq[ids[i]] > st.seq[ids[j]] })
}

func (st *state) oldestFirst(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return st.seq[ids[i]] < st.seq[ids[j]] })
}

// Users returns the user table
func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

// Categories returns the category table
func (s *Store) Categories() repository.CategoryRepository { return &categoryRepo{s} }

// Products returns the product table
func (s *Store) Products() repository.ProductRepository { return &productRepo{s} }

// Carts returns the cart table
func (s *Store) Carts() repository.CartRepository { return &cartRepo{s} }

// Orders returns the order and order item tables
func (s *Store) Orders() repository.OrderRepository { return &orderRepo{s} }
