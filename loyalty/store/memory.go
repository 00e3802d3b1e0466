// Package store provides in-memory implementations of the loyalty stores.
package store

import (
	"context"
	"sync"

	"github.com/milhas/loyalty-engine/loyalty"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements loyalty.UserDirectory, loyalty.CardRegistry and
// loyalty.PurchaseLedger.
type Memory struct {
	mu        sync.RWMutex
	users     map[loyalty.UserID]loyalty.User
	byEmail   map[string]loyalty.UserID
	cards     map[loyalty.CardID]loyalty.Card
	purchases map[loyalty.PurchaseID]loyalty.Purchase

	nextUser     loyalty.UserID
	nextCard     loyalty.CardID
	nextPurchase loyalty.PurchaseID
}

var (
	_ loyalty.UserDirectory  = (*Memory)(nil)
	_ loyalty.CardRegistry   = (*Memory)(nil)
	_ loyalty.PurchaseLedger = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		users:     make(map[loyalty.UserID]loyalty.User),
		byEmail:   make(map[string]loyalty.UserID),
		cards:     make(map[loyalty.CardID]loyalty.Card),
		purchases: make(map[loyalty.PurchaseID]loyalty.Purchase),
	}
}

// AddUser stores u, assigning an ID when u.ID is zero.
func (m *Memory) AddUser(u loyalty.User) (loyalty.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	email := u.Email
	if existing, ok := m.byEmail[email]; ok && existing != u.ID {
		return loyalty.User{}, loyalty.ErrDuplicate
	}
	if u.ID == 0 {
		m.nextUser++
		u.ID = m.nextUser
	} else if u.ID > m.nextUser {
		m.nextUser = u.ID
	}
	m.users[u.ID] = u
	m.byEmail[email] = u.ID
	return u, nil
}

// AddCard stores c, assigning an ID when c.ID is zero.
func (m *Memory) AddCard(c loyalty.Card) loyalty.Card {
	m.mu.Lock()
	defer m.mu.Unlock()

	if c.ID == 0 {
		m.nextCard++
		c.ID = m.nextCard
	} else if c.ID > m.nextCard {
		m.nextCard = c.ID
	}
	m.cards[c.ID] = c
	return c
}

func (m *Memory) FindUserByEmail(_ context.Context, email string) (*loyalty.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, nil
	}
	u := m.users[id]
	return &u, nil
}

func (m *Memory) FindCardByID(_ context.Context, id loyalty.CardID) (*loyalty.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.cards[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// SavePurchase appends p with the next sequential ID.
func (m *Memory) SavePurchase(_ context.Context, p loyalty.Purchase) (loyalty.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPurchase++
	p.ID = m.nextPurchase
	m.purchases[p.ID] = p
	return p, nil
}

func (m *Memory) GetPurchase(_ context.Context, id loyalty.PurchaseID) (*loyalty.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.purchases[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *Memory) ListPurchases(_ context.Context, filter loyalty.PurchaseFilter) ([]loyalty.Purchase, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []loyalty.Purchase{}
	for _, p := range m.purchases {
		if filter.Matches(p) {
			result = append(result, p)
		}
	}
	loyalty.SortNewestFirst(result)
	return result, nil
}

func (m *Memory) UpdatePurchaseStatus(_ context.Context, id loyalty.PurchaseID, from, to loyalty.PurchaseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.purchases[id]
	if !ok {
		return loyalty.NotFound(loyalty.KindPurchase, id)
	}
	if p.Status != from {
		return &loyalty.TransitionError{PurchaseID: id, From: p.Status, To: to}
	}
	p.Status = to
	m.purchases[id] = p
	return nil
}
