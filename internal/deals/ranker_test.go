package deals

import (
	"reflect"
	"testing"
	"time"

	"github.com/angelmondragon/wishlist-backend/internal/wishlist"
)

func ptr(v float64) *float64 { return &v }

func history(prices ...float64) []HistoryPoint {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]HistoryPoint, len(prices))
	for i, p := range prices {
		out[i] = HistoryPoint{Date: start.AddDate(0, 0, i), Price: p}
	}
	return out
}

func keys(badges []Badge) []Kind {
	out := make([]Kind, 0, len(badges))
	for _, b := range badges {
		out = append(out, b.Key)
	}
	return out
}

func hasKind(badges []Badge, kind Kind) bool {
	for _, b := range badges {
		if b.Key == kind {
			return true
		}
	}
	return false
}

func TestDealAlertNeedsThreePoints(t *testing.T) {
	for n := 0; n < 3; n++ {
		prices := make([]float64, n)
		for i := range prices {
			prices[i] = 1000
		}
		got := Rank(Input{CurrentPrice: 1, History: history(prices...), MaxBadges: 4})
		if hasKind(got, KindDealAlert) {
			t.Fatalf("deal alert fired with %d history points", n)
		}
	}
}

func TestVolatilityNeedsSevenPoints(t *testing.T) {
	wild := []float64{10, 100, 10, 100, 10, 100}
	for n := 0; n <= len(wild); n++ {
		got := Rank(Input{CurrentPrice: 50, History: history(wild[:n]...), MaxBadges: 4})
		if hasKind(got, KindVolatility) {
			t.Fatalf("volatility fired with %d history points", n)
		}
	}

	got := Rank(Input{CurrentPrice: 50, History: history(append(wild, 10)...), MaxBadges: 4})
	if !hasKind(got, KindVolatility) {
		t.Fatalf("expected volatility with 7 points, got %v", keys(got))
	}
}

func TestTargetReached(t *testing.T) {
	got := Rank(Input{CurrentPrice: 90, TargetPrice: ptr(100)})
	if len(got) != 1 || got[0].Key != KindTargetReached || got[0].Priority != 1 {
		t.Fatalf("expected target reached, got %+v", got)
	}
	if got := Rank(Input{CurrentPrice: 100, TargetPrice: ptr(100)}); !hasKind(got, KindTargetReached) {
		t.Fatal("target reached should fire at equality")
	}
	if got := Rank(Input{CurrentPrice: 101, TargetPrice: ptr(100)}); got != nil {
		t.Fatalf("expected no badges, got %+v", got)
	}
}

func TestPriceChangeTextAndTone(t *testing.T) {
	tests := []struct {
		current float64
		text    string
		tone    Tone
	}{
		{current: 80, text: "-20.0%", tone: ToneFavorable},
		{current: 120, text: "+20.0%", tone: ToneUnfavorable},
		{current: 99.9, text: "-0.1%", tone: ToneFavorable},
	}
	for _, tt := range tests {
		got := Rank(Input{CurrentPrice: tt.current, PreviousPrice: ptr(100)})
		if len(got) != 1 || got[0].Key != KindPriceChange {
			t.Fatalf("current %v: expected a price change badge, got %+v", tt.current, got)
		}
		if got[0].Text != tt.text {
			t.Fatalf("current %v: expected text %q, got %q", tt.current, tt.text, got[0].Text)
		}
		if got[0].Tone != tt.tone {
			t.Fatalf("current %v: expected tone %s, got %s", tt.current, tt.tone, got[0].Tone)
		}
	}

	if got := Rank(Input{CurrentPrice: 100, PreviousPrice: ptr(100)}); got != nil {
		t.Fatalf("unchanged price should not produce a badge, got %+v", got)
	}
	if got := Rank(Input{CurrentPrice: 5, PreviousPrice: ptr(0)}); got != nil {
		t.Fatalf("zero previous price should not produce a badge, got %+v", got)
	}
}

func TestDealAlertThreshold(t *testing.T) {
	flat := history(100, 100, 100, 100, 100)
	if got := Rank(Input{CurrentPrice: 89, History: flat}); !hasKind(got, KindDealAlert) {
		t.Fatalf("expected deal alert at 89, got %v", keys(got))
	}
	if got := Rank(Input{CurrentPrice: 90, History: flat}); !hasKind(got, KindDealAlert) {
		t.Fatalf("expected deal alert at the threshold, got %v", keys(got))
	}
	if got := Rank(Input{CurrentPrice: 91, History: flat}); hasKind(got, KindDealAlert) {
		t.Fatalf("deal alert should not fire at 91")
	}
}

func TestDealAlertUsesLastFivePoints(t *testing.T) {
	// The early 1000s fall outside the window; the mean of the last five is 100.
	h := history(1000, 1000, 100, 100, 100, 100, 100)
	if got := Rank(Input{CurrentPrice: 95, History: h}); hasKind(got, KindDealAlert) {
		t.Fatal("deal alert should only average the last five points")
	}
}

func TestRankTruncatesByPriority(t *testing.T) {
	in := Input{
		CurrentPrice:  80,
		PreviousPrice: ptr(100),
		History:       history(100, 120, 100, 120, 100, 120, 100),
		TargetPrice:   ptr(100),
		MaxBadges:     4,
	}
	all := Rank(in)
	want := []Kind{KindTargetReached, KindDealAlert, KindPriceChange, KindVolatility}
	if !reflect.DeepEqual(keys(all), want) {
		t.Fatalf("expected all four badges in order, got %v", keys(all))
	}

	in.MaxBadges = 2
	top := Rank(in)
	if !reflect.DeepEqual(keys(top), want[:2]) {
		t.Fatalf("expected the two highest-precedence badges, got %v", keys(top))
	}

	in.MaxBadges = 0
	if got := Rank(in); len(got) != DefaultMaxBadges {
		t.Fatalf("expected default of %d badges, got %d", DefaultMaxBadges, len(got))
	}
}

func TestRankIsDeterministic(t *testing.T) {
	in := Input{CurrentPrice: 80, PreviousPrice: ptr(100), History: history(100, 100, 100), TargetPrice: ptr(85)}
	first := Rank(in)
	for i := 0; i < 10; i++ {
		if got := Rank(in); !reflect.DeepEqual(got, first) {
			t.Fatalf("rank changed between calls: %+v vs %+v", got, first)
		}
	}
}

func TestRankReturnsNilWhenNothingQualifies(t *testing.T) {
	if got := Rank(Input{CurrentPrice: 50}); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestForItem(t *testing.T) {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	item := wishlist.Item{
		PriceHistory: []wishlist.PricePoint{
			{Amount: 100, CreatedAt: at},
			{Amount: 80, CreatedAt: at.Add(time.Hour)},
		},
		TargetPrice: ptr(90),
	}
	item.DerivePrice()

	got := ForItem(item, 2)
	want := []Kind{KindTargetReached, KindPriceChange}
	if !reflect.DeepEqual(keys(got), want) {
		t.Fatalf("expected %v, got %v", want, keys(got))
	}
	if got[1].Text != "-20.0%" {
		t.Fatalf("unexpected change text %q", got[1].Text)
	}

	if got := ForItem(wishlist.Item{}, 2); got != nil {
		t.Fatalf("items without a price get no badges, got %+v", got)
	}
}
