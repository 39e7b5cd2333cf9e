package controllers

import (
	"net/http"
	"sort"
	"time"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/api/validators"
	"github.com/angelmondragon/wishlist-backend/internal/deals"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

type historyPointPayload struct {
	Date  time.Time `json:"date" validate:"required"`
	Price float64   `json:"price" validate:"gte=0"`
}

type rankPayload struct {
	CurrentPrice  *float64              `json:"current_price" validate:"required,gte=0"`
	PreviousPrice *float64              `json:"previous_price" validate:"omitempty,gte=0"`
	History       []historyPointPayload `json:"history" validate:"max=1000,dive"`
	TargetPrice   *float64              `json:"target_price" validate:"omitempty,gte=0"`
	MaxBadges     int                   `json:"max_badges" validate:"gte=0,max=4"`
}

// BadgesRank computes badges for an arbitrary price series.
func BadgesRank(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload rankPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		in := deals.Input{
			CurrentPrice:  *payload.CurrentPrice,
			PreviousPrice: payload.PreviousPrice,
			History:       make([]deals.HistoryPoint, 0, len(payload.History)),
			TargetPrice:   payload.TargetPrice,
			MaxBadges:     payload.MaxBadges,
		}
		for _, p := range payload.History {
			in.History = append(in.History, deals.HistoryPoint{Date: p.Date, Price: p.Price})
		}
		sort.SliceStable(in.History, func(i, j int) bool {
			return in.History[i].Date.Before(in.History[j].Date)
		})

		responses.WriteSuccess(w, map[string]any{"badges": presentBadges(deals.Rank(in))})
	}
}
