package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/api/validators"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

// OnrampLinker produces a checkout link that funds a wallet.
type OnrampLinker interface {
	SessionURL(ctx context.Context, address string) (string, error)
}

type onrampPayload struct {
	Address string `json:"address" validate:"required,max=64"`
}

// WishlistOnramp returns a fiat onramp link for the caller's wallet.
func WishlistOnramp(onramp OnrampLinker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if _, err := requireUser(r); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		var payload onrampPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		link, err := onramp.SessionURL(ctx, payload.Address)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"url": link})
	}
}
