package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/wishlist-backend/api/responses"
	"github.com/angelmondragon/wishlist-backend/api/validators"
	"github.com/angelmondragon/wishlist-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/wishlist-backend/pkg/errors"
	"github.com/angelmondragon/wishlist-backend/pkg/logger"
)

const headerPaymentReceipt = "X-Payment-Receipt"

type queryPayload struct {
	Query string `json:"query" validate:"required,max=1000"`
}

// PaidQuery answers an insights query once the X-Payment proof verifies.
// The body is validated first so callers never pay for a malformed request.
func PaidQuery(gate *payments.Gate, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		var payload queryPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		query := strings.TrimSpace(payload.Query)
		if query == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "query must not be blank"))
			return
		}

		receipt, err := gate.Check(ctx, r.Header.Get(payments.HeaderPayment))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if receipt.TxID != "" {
			w.Header().Set(headerPaymentReceipt, receipt.TxID)
		}
		if logg != nil {
			logg.Info(logg.WithField(ctx, "tx_id", receipt.TxID), "paid query served")
		}
		responses.WriteSuccess(w, payments.Insights(query))
	}
}
