package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finance-tracker/internal/domain"
	"finance-tracker/internal/money"
	"finance-tracker/internal/storage"
)

var ctx = context.Background()

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func seedCategory(t *testing.T, s *Storage, user domain.UserID) domain.Category {
	t.Helper()
	var c domain.Category
	err := s.Update(ctx, user, func(tx storage.Tx) error {
		var err error
		c, err = tx.UpsertCategory(ctx, domain.Category{Name: "Food", Kind: domain.Expense})
		return err
	})
	if err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return c
}

func TestUpdateRollsBackOnError(t *testing.T) {
	s := NewStorage()
	cat := seedCategory(t, s, 1)
	boom := errors.New("boom")

	err := s.Update(ctx, 1, func(tx storage.Tx) error {
		if _, err := tx.UpsertTransaction(ctx, domain.Transaction{
			Kind: domain.Expense, Amount: money.FromInt(10), CategoryID: cat.ID, OccurredOn: day(2025, 1, 1),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update() = %v, want boom", err)
	}

	_ = s.View(ctx, 1, func(tx storage.Tx) error {
		got, _ := tx.ListTransactions(ctx, storage.TransactionFilter{})
		if len(got) != 0 {
			t.Errorf("rolled back write is visible: %v", got)
		}
		return nil
	})
}

func TestUsersAreIsolated(t *testing.T) {
	s := NewStorage()
	cat := seedCategory(t, s, 1)

	err := s.View(ctx, 2, func(tx storage.Tx) error {
		_, err := tx.GetCategory(ctx, cat.ID)
		return err
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("other user's category lookup = %v, want ErrNotFound", err)
	}
}

func TestViewIsReadOnly(t *testing.T) {
	s := NewStorage()
	err := s.View(ctx, 1, func(tx storage.Tx) error {
		_, err := tx.UpsertCategory(ctx, domain.Category{Name: "x", Kind: domain.Income})
		return err
	})
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("write in View = %v, want ErrPersistence", err)
	}
}

func TestConcurrentUpdatesAreSerialized(t *testing.T) {
	s := NewStorage()
	const n = 50

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.Update(ctx, 1, func(tx storage.Tx) error {
				p, err := tx.GetPosition(ctx, "BTC")
				if err != nil && !errors.Is(err, domain.ErrNotFound) {
					return err
				}
				p.Ticker = "BTC"
				p.Quantity = p.Quantity.Add(money.FromInt(1))
				_, err = tx.UpsertPosition(ctx, p)
				return err
			})
		}()
	}
	wg.Wait()

	_ = s.View(ctx, 1, func(tx storage.Tx) error {
		p, err := tx.GetPosition(ctx, "BTC")
		if err != nil {
			t.Fatal(err)
		}
		if !p.Quantity.Equal(money.FromInt(n)) {
			t.Errorf("quantity = %s, want %d", p.Quantity, n)
		}
		return nil
	})
}

func TestListTransactionsOrderAndCursor(t *testing.T) {
	s := NewStorage()
	cat := seedCategory(t, s, 1)
	dates := []time.Time{day(2025, 1, 2), day(2025, 1, 5), day(2025, 1, 5), day(2025, 1, 1)}
	_ = s.Update(ctx, 1, func(tx storage.Tx) error {
		for _, d := range dates {
			if _, err := tx.UpsertTransaction(ctx, domain.Transaction{
				Kind: domain.Expense, Amount: money.FromInt(1), CategoryID: cat.ID, OccurredOn: d,
			}); err != nil {
				return err
			}
		}
		return nil
	})

	_ = s.View(ctx, 1, func(tx storage.Tx) error {
		all, _ := tx.ListTransactions(ctx, storage.TransactionFilter{})
		if len(all) != 4 {
			t.Fatalf("len = %d", len(all))
		}
		for i := 1; i < len(all); i++ {
			prev, cur := all[i-1], all[i]
			if cur.OccurredOn.After(prev.OccurredOn) ||
				(cur.OccurredOn.Equal(prev.OccurredOn) && cur.ID > prev.ID) {
				t.Errorf("order broken at %d: %v then %v", i, prev, cur)
			}
		}

		page, _ := tx.ListTransactions(ctx, storage.TransactionFilter{
			After: &storage.Cursor{OccurredOn: all[1].OccurredOn, ID: all[1].ID},
		})
		if len(page) != 2 || page[0].ID != all[2].ID {
			t.Errorf("after cursor = %v, want starting at %d", page, all[2].ID)
		}

		jan5, _ := tx.ListTransactions(ctx, storage.TransactionFilter{From: day(2025, 1, 5), To: day(2025, 1, 6)})
		if len(jan5) != 2 {
			t.Errorf("window filter returned %d, want 2", len(jan5))
		}
		return nil
	})
}

func TestDeleteAllWipesOnlyThatUser(t *testing.T) {
	s := NewStorage()
	for _, user := range []domain.UserID{1, 2} {
		cat := seedCategory(t, s, user)
		err := s.Update(ctx, user, func(tx storage.Tx) error {
			if _, err := tx.UpsertTransaction(ctx, domain.Transaction{
				Kind: domain.Expense, Amount: money.FromInt(10), CategoryID: cat.ID, OccurredOn: day(2025, 1, 1),
			}); err != nil {
				return err
			}
			if _, err := tx.UpsertPosition(ctx, domain.Position{Ticker: "ABC", Quantity: money.FromInt(1)}); err != nil {
				return err
			}
			_, err := tx.AppendLot(ctx, domain.LotEvent{Ticker: "ABC", Side: domain.Buy, Quantity: money.FromInt(1), UnitPrice: money.FromInt(5)})
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if err := s.View(ctx, 1, func(tx storage.Tx) error {
		_, err := tx.DeleteAll(ctx)
		return err
	}); err == nil {
		t.Error("DeleteAll succeeded in a read-only view")
	}

	var purged storage.Purged
	if err := s.Update(ctx, 1, func(tx storage.Tx) error {
		var err error
		purged, err = tx.DeleteAll(ctx)
		return err
	}); err != nil {
		t.Fatal(err)
	}
	if purged != (storage.Purged{Transactions: 1, Categories: 1, Positions: 1, Lots: 1}) {
		t.Errorf("purged = %+v", purged)
	}

	counts := func(user domain.UserID) (int, int, int) {
		var txs, pos, lots int
		_ = s.View(ctx, user, func(tx storage.Tx) error {
			all, _ := tx.ListTransactions(ctx, storage.TransactionFilter{})
			ps, _ := tx.ListPositions(ctx)
			ls, _ := tx.ListLots(ctx, "")
			txs, pos, lots = len(all), len(ps), len(ls)
			return nil
		})
		return txs, pos, lots
	}
	if a, b, c := counts(1); a+b+c != 0 {
		t.Errorf("user 1 still has %d transactions, %d positions, %d lots", a, b, c)
	}
	if a, b, c := counts(2); a != 1 || b != 1 || c != 1 {
		t.Errorf("user 2 lost data: %d transactions, %d positions, %d lots", a, b, c)
	}
}
