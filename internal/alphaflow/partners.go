package alphaflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// TradingPartner is the billing counterparty of an invoice.
type TradingPartner struct {
	ID          string `json:"id"`
	Number      string `json:"number"`
	Name        string `json:"name"`
	CompanyName string `json:"companyName"`
}

// partnerList tolerates the different envelope keys the trading
// partner service has been seen to use.
type partnerList struct {
	Items           []TradingPartner `json:"items"`
	Data            []TradingPartner `json:"data"`
	TradingPartners []TradingPartner `json:"tradingPartners"`
}

func (l partnerList) all() []TradingPartner {
	if len(l.Items) > 0 {
		return l.Items
	}
	if len(l.Data) > 0 {
		return l.Data
	}
	return l.TradingPartners
}

// FindPartnerByNumber resolves a human-readable trading partner number
// (e.g. "10001") to the partner record. Returns ErrPartnerNotFound when
// no partner matches the number exactly.
func (c *Client) FindPartnerByNumber(ctx context.Context, number string) (TradingPartner, error) {
	params := url.Values{}
	params.Set("filter[number]", number)
	params.Set("count", "10")
	params.Set("start", "0")
	params.Set("i18n", "true")
	params.Set("continue", "true")

	status, body, err := c.do(ctx, http.MethodGet, partnersPath, params, nil)
	if err != nil {
		return TradingPartner{}, fmt.Errorf("looking up trading partner %q: %w", number, err)
	}
	if status != http.StatusOK {
		return TradingPartner{}, fmt.Errorf("%w: trading partner lookup returned HTTP %d", ErrUnavailable, status)
	}

	partners, err := decodePartners(body)
	if err != nil {
		return TradingPartner{}, fmt.Errorf("decoding trading partner response: %w", err)
	}

	// The filter is a prefix match on some deployments; require an
	// exact number match.
	for _, p := range partners {
		if p.Number == number {
			c.log.Debug().Str("number", number).Str("partner_id", p.ID).Msg("trading partner resolved")
			return p, nil
		}
	}
	return TradingPartner{}, fmt.Errorf("%w: number %q", ErrPartnerNotFound, number)
}

// decodePartners accepts either a bare array or an enveloped list.
func decodePartners(body []byte) ([]TradingPartner, error) {
	var direct []TradingPartner
	if err := json.Unmarshal(body, &direct); err == nil {
		return direct, nil
	}
	var list partnerList
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, err
	}
	return list.all(), nil
}
