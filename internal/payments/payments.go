package payments

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/angelmondragon/wishlist-backend/pkg/config"
	"github.com/shopspring/decimal"
)

// HeaderPayment carries the opaque payment proof on a paid request.
const HeaderPayment = "X-Payment"

// Capability is the wallet collaborator: given an amount and a destination it
// pays and returns a transaction identifier, or fails. Callers do not retry.
type Capability interface {
	Pay(ctx context.Context, amount decimal.Decimal, destination string) (string, error)
}

// Requirement describes what a paid resource costs. It is returned with a 402.
type Requirement struct {
	Resource    string          `json:"resource"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Network     string          `json:"network"`
	PayTo       string          `json:"payTo"`
}

// Receipt is a verified payment.
type Receipt struct {
	TxID    string `json:"txId"`
	Network string `json:"network"`
}

// RequirementFromConfig builds the requirement for resource from the payments
// config section.
func RequirementFromConfig(cfg config.PaymentsConfig, resource, description string) (Requirement, error) {
	if !cfg.Enabled() {
		return Requirement{}, errors.New("payments are not configured")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(cfg.QueryPrice))
	if err != nil {
		return Requirement{}, err
	}
	if !price.IsPositive() {
		return Requirement{}, errors.New("query price must be positive")
	}
	return Requirement{
		Resource:    resource,
		Description: description,
		Price:       price,
		Network:     cfg.Network,
		PayTo:       strings.TrimSpace(cfg.PayTo),
	}, nil
}

// decodeRequirement reads the requirement out of an error envelope's details.
func decodeRequirement(details json.RawMessage) (Requirement, error) {
	var req Requirement
	if len(details) == 0 {
		return req, errors.New("payment requirement missing")
	}
	if err := json.Unmarshal(details, &req); err != nil {
		return req, err
	}
	if req.PayTo == "" || !req.Price.IsPositive() {
		return req, errors.New("payment requirement incomplete")
	}
	return req, nil
}
