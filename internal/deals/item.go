package deals

import "github.com/angelmondragon/wishlist-backend/internal/wishlist"

// ForItem ranks the signals of a cached item. The current price is the latest
// history entry and the previous price the one before it. Items without a
// price yield no badges.
func ForItem(item wishlist.Item, maxBadges int) []Badge {
	if item.Price == nil {
		return nil
	}

	in := Input{
		CurrentPrice: *item.Price,
		History:      make([]HistoryPoint, 0, len(item.PriceHistory)),
		TargetPrice:  item.TargetPrice,
		MaxBadges:    maxBadges,
	}
	for _, p := range item.PriceHistory {
		in.History = append(in.History, HistoryPoint{Date: p.CreatedAt, Price: p.Amount})
	}
	if n := len(item.PriceHistory); n >= 2 {
		previous := item.PriceHistory[n-2].Amount
		in.PreviousPrice = &previous
	}
	return Rank(in)
}
