// Package deals derives advisory price badges from a price and its history.
package deals

import (
	"fmt"
	"sort"
	"time"
)

// DefaultMaxBadges is the number of badges shown when the caller does not say.
const DefaultMaxBadges = 2

const (
	dealMinPoints       = 3
	dealWindow          = 5
	dealThresholdFactor = 0.9

	volatilityWindow    = 7
	volatilityThreshold = 15.0
)

// Kind names a badge semantically; presentation is left to the caller.
type Kind string

const (
	KindTargetReached Kind = "target_reached"
	KindDealAlert     Kind = "deal_alert"
	KindPriceChange   Kind = "price_change"
	KindVolatility    Kind = "volatility"
)

// Tone tells the presentation layer whether a badge is good or bad news.
type Tone string

const (
	ToneFavorable   Tone = "favorable"
	ToneUnfavorable Tone = "unfavorable"
	ToneNeutral     Tone = "neutral"
)

// Fixed precedence; lower wins.
const (
	priorityTargetReached = 1
	priorityDealAlert     = 2
	priorityPriceChange   = 3
	priorityVolatility    = 4
)

// Badge is a transient advisory signal. Value carries the computed number
// behind the badge (percent change, volatility percent, threshold).
type Badge struct {
	Key      Kind    `json:"key"`
	Priority int     `json:"priority"`
	Text     string  `json:"text"`
	Tone     Tone    `json:"tone"`
	Value    float64 `json:"value,omitempty"`
}

// HistoryPoint is one chronological observation.
type HistoryPoint struct {
	Date  time.Time `json:"date"`
	Price float64   `json:"price"`
}

// Input is everything Rank looks at. History is in ascending date order.
type Input struct {
	CurrentPrice  float64
	PreviousPrice *float64
	History       []HistoryPoint
	TargetPrice   *float64
	MaxBadges     int
}

// Rank evaluates every signal and returns the MaxBadges highest-precedence
// ones in priority order. A non-positive MaxBadges means DefaultMaxBadges.
// The result is nil when nothing qualifies.
func Rank(in Input) []Badge {
	limit := in.MaxBadges
	if limit <= 0 {
		limit = DefaultMaxBadges
	}

	var badges []Badge
	for _, eval := range []func(Input) (Badge, bool){
		targetReached,
		dealAlert,
		priceChange,
		volatility,
	} {
		if b, ok := eval(in); ok {
			badges = append(badges, b)
		}
	}

	sort.SliceStable(badges, func(i, j int) bool {
		return badges[i].Priority < badges[j].Priority
	})
	if len(badges) > limit {
		badges = badges[:limit]
	}
	return badges
}

func targetReached(in Input) (Badge, bool) {
	if in.TargetPrice == nil || in.CurrentPrice > *in.TargetPrice {
		return Badge{}, false
	}
	return Badge{
		Key:      KindTargetReached,
		Priority: priorityTargetReached,
		Text:     "Target reached",
		Tone:     ToneFavorable,
		Value:    *in.TargetPrice,
	}, true
}

func dealAlert(in Input) (Badge, bool) {
	if len(in.History) < dealMinPoints {
		return Badge{}, false
	}
	recent := lastN(in.History, dealWindow)
	var sum float64
	for _, p := range recent {
		sum += p.Price
	}
	threshold := sum / float64(len(recent)) * dealThresholdFactor
	if in.CurrentPrice > threshold {
		return Badge{}, false
	}
	return Badge{
		Key:      KindDealAlert,
		Priority: priorityDealAlert,
		Text:     "Deal alert",
		Tone:     ToneFavorable,
		Value:    threshold,
	}, true
}

func priceChange(in Input) (Badge, bool) {
	if in.PreviousPrice == nil {
		return Badge{}, false
	}
	previous := *in.PreviousPrice
	// A zero previous price has no meaningful percentage.
	if previous == 0 || previous == in.CurrentPrice {
		return Badge{}, false
	}
	pct := (in.CurrentPrice - previous) / previous * 100

	b := Badge{
		Key:      KindPriceChange,
		Priority: priorityPriceChange,
		Text:     fmt.Sprintf("%.1f%%", pct),
		Tone:     ToneFavorable,
		Value:    pct,
	}
	if pct > 0 {
		b.Text = fmt.Sprintf("+%.1f%%", pct)
		b.Tone = ToneUnfavorable
	}
	return b, true
}

func volatility(in Input) (Badge, bool) {
	if len(in.History) < volatilityWindow {
		return Badge{}, false
	}
	recent := lastN(in.History, volatilityWindow)
	lo, hi := recent[0].Price, recent[0].Price
	for _, p := range recent[1:] {
		if p.Price < lo {
			lo = p.Price
		}
		if p.Price > hi {
			hi = p.Price
		}
	}
	if lo <= 0 {
		return Badge{}, false
	}
	spread := (hi - lo) / lo * 100
	if spread <= volatilityThreshold {
		return Badge{}, false
	}
	return Badge{
		Key:      KindVolatility,
		Priority: priorityVolatility,
		Text:     "High volatility",
		Tone:     ToneNeutral,
		Value:    spread,
	}, true
}

func lastN(points []HistoryPoint, n int) []HistoryPoint {
	if len(points) <= n {
		return points
	}
	return points[len(points)-n:]
}
