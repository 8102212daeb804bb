package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	apperrors "cardauth/internal/errors"
	"cardauth/internal/model"
	"cardauth/internal/repository"
)

// memStore is an in-memory Policy Store and Ledger. WithTransaction holds a store-wide
// lock, standing in for the card row lock, and rolls back on error.
type memStore struct {
	txMu sync.Mutex

	mu    sync.Mutex
	cards map[uuid.UUID]model.Card
	txns  []model.CardTransaction
}

func newMemStore(cards ...*model.Card) *memStore {
	s := &memStore{cards: make(map[uuid.UUID]model.Card)}
	for _, c := range cards {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		s.cards[c.ID] = *c
	}
	return s
}

func (s *memStore) Cards() repository.CardRepository         { return memCards{s: s} }
func (s *memStore) Ledger() repository.TransactionRepository { return memLedger{s: s} }

// card returns a snapshot of the stored card.
func (s *memStore) card(id uuid.UUID) model.Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cards[id]
}

func (s *memStore) transactions() []model.CardTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.CardTransaction(nil), s.txns...)
}

func (s *memStore) addTransaction(txn model.CardTransaction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.Status == "" {
		txn.Status = model.TransactionStatusApproved
	}
	s.txns = append(s.txns, txn)
}

func (s *memStore) WithTransaction(ctx context.Context, fn func(ctx context.Context, cards repository.CardRepository, ledger repository.TransactionRepository) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	var undo []func()
	if err := fn(ctx, memCards{s, &undo}, memLedger{s, &undo}); err != nil {
		s.mu.Lock()
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// undo is non-nil inside WithTransaction and collects rollback steps. They run with mu held.
type memCards struct {
	s    *memStore
	undo *[]func()
}

func (r memCards) Save(_ context.Context, card *model.Card) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	r.s.cards[card.ID] = *card
	return nil
}

func (r memCards) FindByID(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok {
		return nil, apperrors.ErrCardNotFound
	}
	return &c, nil
}

func (r memCards) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Card, error) {
	return r.FindByID(ctx, id)
}

func (r memCards) MarkUsed(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok || c.LastUsedAt != nil {
		return false, nil
	}
	c.LastUsedAt = &at
	r.s.cards[id] = c
	return true, nil
}

func (r memCards) Cancel(_ context.Context, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok || c.Status == model.CardStatusCancelled {
		return false, nil
	}
	c.Status = model.CardStatusCancelled
	r.s.cards[id] = c
	return true, nil
}

func (r memCards) IncrementSpend(_ context.Context, id uuid.UUID, amount decimal.Decimal, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cards[id]
	if !ok || exceeds(c.SpendingLimit, c.TotalSpent, amount) || exceeds(c.MonthlyLimit, c.MonthlySpent, amount) {
		return apperrors.ErrLimitExceeded
	}
	if r.undo != nil {
		prev := r.s.cards[id]
		*r.undo = append(*r.undo, func() {
			cur := r.s.cards[id]
			cur.TotalSpent, cur.MonthlySpent, cur.LastUsedAt = prev.TotalSpent, prev.MonthlySpent, prev.LastUsedAt
			r.s.cards[id] = cur
		})
	}
	c.TotalSpent = c.TotalSpent.Add(amount)
	c.MonthlySpent = c.MonthlySpent.Add(amount)
	c.LastUsedAt = &at
	r.s.cards[id] = c
	return nil
}

type memLedger struct {
	s    *memStore
	undo *[]func()
}

func (r memLedger) Create(_ context.Context, txn *model.CardTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	txn.CreatedAt = time.Now()
	if r.undo != nil {
		id := txn.ID
		*r.undo = append(*r.undo, func() {
			for i, t := range r.s.txns {
				if t.ID == id {
					r.s.txns = append(r.s.txns[:i], r.s.txns[i+1:]...)
					return
				}
			}
		})
	}
	r.s.txns = append(r.s.txns, *txn)
	return nil
}

func (r memLedger) approved(cardID uuid.UUID, keep func(model.CardTransaction) bool) []model.CardTransaction {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CardTransaction
	for _, t := range r.s.txns {
		if t.CardID == cardID && t.Status == model.TransactionStatusApproved && keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func (r memLedger) SumApprovedAmount(_ context.Context, cardID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, t := range r.approved(cardID, func(t model.CardTransaction) bool { return !t.TransactionDate.Before(since) }) {
		total = total.Add(t.Amount)
	}
	return total, nil
}

func (r memLedger) CountApproved(_ context.Context, cardID uuid.UUID, since time.Time) (int64, error) {
	rows := r.approved(cardID, func(t model.CardTransaction) bool { return !t.TransactionDate.Before(since) })
	return int64(len(rows)), nil
}

func (r memLedger) DistinctMCCHistory(_ context.Context, cardID uuid.UUID) (map[string]struct{}, error) {
	history := make(map[string]struct{})
	for _, t := range r.approved(cardID, func(model.CardTransaction) bool { return true }) {
		history[t.MCC] = struct{}{}
	}
	return history, nil
}

func (r memLedger) LastGeoTagged(_ context.Context, cardID uuid.UUID) (*model.CardTransaction, error) {
	rows := r.approved(cardID, func(t model.CardTransaction) bool { return t.HasCoordinates() })
	if len(rows) == 0 {
		return nil, nil
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].TransactionDate.After(rows[j].TransactionDate) })
	return &rows[0], nil
}

func (r memLedger) ListByCard(_ context.Context, cardID uuid.UUID, limit int) ([]model.CardTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.CardTransaction
	for _, t := range r.s.txns {
		if t.CardID == cardID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionDate.After(out[j].TransactionDate) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
