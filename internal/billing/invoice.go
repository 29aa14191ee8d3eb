package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/Tiliavir/mitebill/internal/alphaflow"
)

// hoursUnitID is the platform's unit-of-measure id for hours.
const hoursUnitID = "607da1058592fb520cff7451"

// BillingTerms carries the invoice defaults that are not derived from
// the time entries themselves.
type BillingTerms struct {
	VATRate         float64
	DueDays         int
	OrganizationID  string
	AdministratorID string
}

// BuildInvoice maps an aggregate and the resolved trading partner to
// the platform's invoice payload. The due date is the invoice date plus
// the configured due days.
func BuildInvoice(agg Aggregate, partnerID string, terms BillingTerms, invoiceDate time.Time) alphaflow.OutgoingInvoice {
	net := agg.Amount
	vat := round2(net * terms.VATRate / 100)
	total := round2(net + vat)

	item := alphaflow.InvoiceItem{
		Number:         1,
		Title:          "Standard-DL-Text",
		Description:    "Dienstleistung gem. Tätigkeitsbericht",
		Quantity:       round2(agg.Hours()),
		UnitOfMeasure:  hoursUnitID,
		UnitPrice:      agg.HourlyRate,
		Discount:       0,
		TotalNetAmount: net,
		VATRate:        terms.VATRate,
	}

	return alphaflow.OutgoingInvoice{
		Type:                     alphaflow.TypedValue{Value: "INVOICE"},
		Status:                   alphaflow.TypedValue{Value: "NEW"},
		PaidStatus:               alphaflow.TypedValue{Value: "UNPAID"},
		Currency:                 alphaflow.TypedValue{Value: agg.Currency},
		TradingPartner:           alphaflow.Ref{ID: partnerID},
		Organization:             alphaflow.Ref{ID: terms.OrganizationID},
		ResponsibleAdministrator: alphaflow.Ref{ID: terms.AdministratorID},
		InvoiceItems:             []alphaflow.InvoiceItem{item},
		ServiceDateStart:         alphaflow.FormatAPIDate(agg.From),
		ServiceDateEnd:           alphaflow.FormatAPIDate(agg.To),
		Date:                     alphaflow.FormatAPIDate(invoiceDate),
		DueDate:                  alphaflow.FormatAPIDate(invoiceDate.AddDate(0, 0, terms.DueDays)),
		DaysDue:                  terms.DueDays,
		BuyerReference:           BuyerReference(agg.ProjectName),
		AccountingText:           fmt.Sprintf("Consulting %s - %s", agg.From.Format("2006-01"), agg.ProjectName),
		Remarks:                  remarks(agg),
		TotalNetAmount:           net,
		TotalVATAmount:           vat,
		TotalAmount:              total,
		NetAmount1:               net,
		VATRate1:                 terms.VATRate,
		VATAmount1:               vat,
		TotalAmount1:             total,
	}
}

// BuyerReference extracts the order number prefix from a project name,
// e.g. "BE24-2001 - Einführung Vertragsmanagement" yields "BE24-2001".
// Returns "" when the project name carries no " - " separator.
func BuyerReference(projectName string) string {
	if before, _, found := strings.Cut(projectName, " - "); found {
		return strings.TrimSpace(before)
	}
	return ""
}

// remarks renders the human-readable invoice remarks for one project.
func remarks(agg Aggregate) string {
	parts := []string{
		fmt.Sprintf("Beratungsleistungen für Projekt '%s'", agg.ProjectName),
		fmt.Sprintf("Zeitraum: %s - %s", agg.From.Format("02.01.2006"), agg.To.Format("02.01.2006")),
		fmt.Sprintf("Geleistete Stunden: %.2fh", agg.Hours()),
		fmt.Sprintf("Anzahl Buchungen: %d", len(agg.EntryIDs)),
	}
	if agg.CustomerName != "" && agg.CustomerName != agg.ProjectName {
		parts = append(parts[:1], append([]string{fmt.Sprintf("Kunde: %s", agg.CustomerName)}, parts[1:]...)...)
	}
	return strings.Join(parts, " | ")
}
