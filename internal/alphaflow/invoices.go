package alphaflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// APIDateLayout is the date-time format the invoice service expects.
const APIDateLayout = "2006-01-02 15:04:05"

// FormatAPIDate renders a date the way the invoice service expects,
// with the time fixed to midnight.
func FormatAPIDate(t time.Time) string {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).Format(APIDateLayout)
}

// Ref references a platform entity by id.
type Ref struct {
	ID string `json:"id"`
}

// TypedValue is the platform's {name, value} enum wrapper.
type TypedValue struct {
	Name  *string `json:"name"`
	Value string  `json:"value"`
}

// InvoiceItem is a single invoice line.
type InvoiceItem struct {
	Number         int     `json:"number"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitOfMeasure  string  `json:"unitOfMeasure"`
	UnitPrice      float64 `json:"unitPrice"`
	Discount       float64 `json:"discount"`
	TotalNetAmount float64 `json:"totalNetAmount"`
	VATRate        float64 `json:"vatRate"`
}

// OutgoingInvoice is the invoice creation payload. Totals are
// precomputed by the caller; the platform stores them as submitted.
type OutgoingInvoice struct {
	Type                     TypedValue    `json:"type"`
	Status                   TypedValue    `json:"status"`
	PaidStatus               TypedValue    `json:"paidStatus"`
	Currency                 TypedValue    `json:"currency"`
	TradingPartner           Ref           `json:"tradingPartner"`
	Organization             Ref           `json:"organization"`
	ResponsibleAdministrator Ref           `json:"responsibleAdministrator"`
	InvoiceItems             []InvoiceItem `json:"invoiceItems"`
	ServiceDateStart         string        `json:"serviceDateStart"`
	ServiceDateEnd           string        `json:"serviceDateEnd"`
	Date                     string        `json:"date"`
	DueDate                  string        `json:"dueDate"`
	DaysDue                  int           `json:"daysDue"`
	BuyerReference           string        `json:"buyerReference"`
	AccountingText           string        `json:"accountingText"`
	Remarks                  string        `json:"remarks"`
	TotalNetAmount           float64       `json:"totalNetAmount"`
	TotalVATAmount           float64       `json:"totalVatAmount"`
	TotalAmount              float64       `json:"totalAmount"`
	NetAmount1               float64       `json:"netAmount1"`
	VATRate1                 float64       `json:"vatRate1"`
	VATAmount1               float64       `json:"vatAmount1"`
	TotalAmount1             float64       `json:"totalAmount1"`
}

// CreatedInvoice is the platform's answer to a successful submission.
type CreatedInvoice struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}

// CreateInvoice submits the invoice. This creates a real invoice record
// on the platform; the call is not idempotent and must happen at most
// once per run. On a non-success response the platform's error body is
// attached for diagnostics.
func (c *Client) CreateInvoice(ctx context.Context, inv OutgoingInvoice) (CreatedInvoice, error) {
	payload, err := json.Marshal(inv)
	if err != nil {
		return CreatedInvoice{}, fmt.Errorf("encoding invoice: %w", err)
	}

	status, body, err := c.do(ctx, http.MethodPost, invoicesPath, nil, payload)
	if err != nil {
		return CreatedInvoice{}, fmt.Errorf("submitting invoice: %w", err)
	}
	if status != http.StatusOK && status != http.StatusCreated {
		return CreatedInvoice{}, fmt.Errorf("%w: HTTP %d: %s", ErrInvoiceCreationFailed, status, body)
	}

	var created CreatedInvoice
	if err := json.Unmarshal(body, &created); err != nil {
		return CreatedInvoice{}, fmt.Errorf("decoding invoice response: %w", err)
	}
	c.log.Info().Str("invoice_id", created.ID).Str("invoice_number", created.Number).Msg("invoice created")
	return created, nil
}
