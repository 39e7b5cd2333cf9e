package payments

// PriceWillingness summarizes the prices wishlisters react to.
type PriceWillingness struct {
	CurrentPrice              float64 `json:"currentPrice"`
	AverageWishlistPricePoint float64 `json:"averageWishlistPricePoint"`
	PriceDropThreshold        float64 `json:"priceDropThreshold"`
}

// CompetitorBenchmark compares the product with the market.
type CompetitorBenchmark struct {
	YourPosition           string `json:"yourPosition"`
	OptimalDiscountToMatch string `json:"optimalDiscountToMatch"`
	ProjectedSalesLift     string `json:"projectedSalesLift"`
}

// UrgencySignals are percentages of wishlisters by behavior.
type UrgencySignals struct {
	RemoveFromWishlistRate float64 `json:"removeFromWishlistRate"`
	PurchaseElsewhere      float64 `json:"purchaseElsewhere"`
	WaitingForDiscount     float64 `json:"waitingForDiscount"`
}

// WishlistInsights is the paid analytics answer.
type WishlistInsights struct {
	TotalWishlistAdds      int                 `json:"totalWishlistAdds"`
	AverageDaysOnWishlist  float64             `json:"averageDaysOnWishlist"`
	ConversionFromWishlist float64             `json:"conversionFromWishlist"`
	PriceWillingness       PriceWillingness    `json:"priceWillingness"`
	CompetitorBenchmark    CompetitorBenchmark `json:"competitorBenchmark"`
	UrgencySignals         UrgencySignals      `json:"urgencySignals"`
}

// InsightsResponse wraps the insights for the query endpoint.
type InsightsResponse struct {
	Query            string           `json:"query"`
	WishlistInsights WishlistInsights `json:"wishlistInsights"`
}

// Insights answers a paid query. The figures are a fixed sample until an
// analytics source backs them.
func Insights(query string) InsightsResponse {
	return InsightsResponse{
		Query: query,
		WishlistInsights: WishlistInsights{
			TotalWishlistAdds:      12847,
			AverageDaysOnWishlist:  18.4,
			ConversionFromWishlist: 14.2,
			PriceWillingness: PriceWillingness{
				CurrentPrice:              349,
				AverageWishlistPricePoint: 287,
				PriceDropThreshold:        299,
			},
			CompetitorBenchmark: CompetitorBenchmark{
				YourPosition:           "23% above market average",
				OptimalDiscountToMatch: "18%",
				ProjectedSalesLift:     "280%",
			},
			UrgencySignals: UrgencySignals{
				RemoveFromWishlistRate: 8.3,
				PurchaseElsewhere:      31.7,
				WaitingForDiscount:     67.1,
			},
		},
	}
}
