package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	alertDomain "nifty-breakout/internal/domain/alert"
	"nifty-breakout/internal/domain/watchlist"
)

func TestStore_Alerts(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2024, 12, 2, 10, 0, 0, 0, time.UTC)

	t.Run("PutAndGet", func(t *testing.T) {
		a := alertDomain.Alert{ID: "TCS-1", Symbol: "TCS", Type: alertDomain.TypeBreakout, TriggeredAt: base}
		if err := s.Put(ctx, a); err != nil {
			t.Fatal(err)
		}
		got, ok, err := s.Get(ctx, "TCS-1")
		if err != nil || !ok {
			t.Fatalf("get failed: ok=%v err=%v", ok, err)
		}
		if got.Symbol != "TCS" {
			t.Errorf("unexpected symbol: %s", got.Symbol)
		}
		if _, ok, _ := s.Get(ctx, "missing"); ok {
			t.Error("expected miss")
		}
		if err := s.Put(ctx, alertDomain.Alert{}); err == nil {
			t.Error("expected error for empty id")
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		_ = s.Put(ctx, alertDomain.Alert{ID: "INFY-2", Symbol: "INFY", TriggeredAt: base.Add(time.Minute)})
		list, err := s.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(list) != 2 || list[0].ID != "INFY-2" {
			t.Errorf("unexpected order: %+v", list)
		}
	})

	t.Run("MarkRead", func(t *testing.T) {
		n, _ := s.UnreadCount(ctx)
		if n != 2 {
			t.Fatalf("expected 2 unread, got %d", n)
		}
		if err := s.MarkRead(ctx, "TCS-1"); err != nil {
			t.Fatal(err)
		}
		n, _ = s.UnreadCount(ctx)
		if n != 1 {
			t.Errorf("expected 1 unread, got %d", n)
		}
		if err := s.MarkRead(ctx, "nope"); !errors.Is(err, alertDomain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestStore_Watchlist(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	clock := time.Date(2024, 12, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	for _, sym := range []string{"reliance", " tcs "} {
		if err := s.AddSymbol(ctx, watchlist.Symbol{Symbol: sym}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.AddSymbol(ctx, watchlist.Symbol{Symbol: "TCS", Name: "Tata Consultancy"}); err != nil {
		t.Fatal(err)
	}
	if err := s.AddSymbol(ctx, watchlist.Symbol{Symbol: "  "}); err == nil {
		t.Error("expected error for blank symbol")
	}

	list, _ := s.ListWatchlist(ctx)
	if len(list) != 2 || list[0].Symbol != "RELIANCE" || list[1].Name != "Tata Consultancy" {
		t.Fatalf("unexpected watchlist: %+v", list)
	}

	_ = s.RemoveSymbol(ctx, "reliance")
	list, _ = s.ListWatchlist(ctx)
	if len(list) != 1 || list[0].Symbol != "TCS" {
		t.Errorf("unexpected watchlist after remove: %+v", list)
	}
}
