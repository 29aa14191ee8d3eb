package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tiliavir/mitebill/internal/alphaflow"
)

var (
	// ErrNoDefaultPartner signals that no override was given and no
	// default trading partner is configured.
	ErrNoDefaultPartner = errors.New("no trading partner given and no default configured")
	// ErrConflictingOverride signals that both an explicit id and an
	// explicit number were supplied. The run fails hard instead of
	// guessing which one was meant.
	ErrConflictingOverride = errors.New("cannot use both a trading partner id and a trading partner number")
)

// PartnerLookup resolves a trading partner number to its record.
type PartnerLookup interface {
	FindPartnerByNumber(ctx context.Context, number string) (alphaflow.TradingPartner, error)
}

// PartnerSelector names the invoice counterparty. At most one of ID and
// Number may be set; DefaultID applies when neither is.
type PartnerSelector struct {
	ID        string
	Number    string
	DefaultID string
}

// ResolvePartner determines the trading partner id for the invoice.
// Precedence: explicit id (returned unvalidated), then explicit number
// resolved via lookup, then the configured default. Exactly one branch
// executes per call.
func ResolvePartner(ctx context.Context, sel PartnerSelector, lookup PartnerLookup) (string, error) {
	switch {
	case sel.ID != "" && sel.Number != "":
		return "", ErrConflictingOverride
	case sel.ID != "":
		return sel.ID, nil
	case sel.Number != "":
		partner, err := lookup.FindPartnerByNumber(ctx, sel.Number)
		if err != nil {
			return "", fmt.Errorf("resolving trading partner number %q: %w", sel.Number, err)
		}
		return partner.ID, nil
	case sel.DefaultID != "":
		return sel.DefaultID, nil
	default:
		return "", ErrNoDefaultPartner
	}
}
