package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Tiliavir/mitebill/internal/alphaflow"
	"github.com/Tiliavir/mitebill/internal/mite"
	"github.com/Tiliavir/mitebill/internal/timeutil"
)

// ErrNoUnlockedEntries signals that the fetch found nothing to bill.
// This is a terminal stop, not a retryable failure: entries that were
// billed before are locked and excluded on purpose.
var ErrNoUnlockedEntries = errors.New("no unlocked time entries found")

// EntrySource fetches billable time entries and locks them after a
// successful invoice submission.
type EntrySource interface {
	FetchUnlocked(ctx context.Context, q mite.Query) ([]mite.TimeEntry, error)
	LockEntries(ctx context.Context, entries []mite.TimeEntry) (mite.LockSummary, error)
}

// InvoicePlatform is the invoicing side: session login, trading partner
// lookup and invoice creation.
type InvoicePlatform interface {
	Authenticate(ctx context.Context) (string, error)
	FindPartnerByNumber(ctx context.Context, number string) (alphaflow.TradingPartner, error)
	CreateInvoice(ctx context.Context, inv alphaflow.OutgoingInvoice) (alphaflow.CreatedInvoice, error)
}

// Orchestrator sequences one billing run: fetch unlocked entries,
// aggregate, resolve the trading partner, authenticate, create the
// invoice, then lock exactly the entries that were billed.
type Orchestrator struct {
	Source   EntrySource
	Platform InvoicePlatform
	Log      zerolog.Logger
}

// RunOptions are the inputs of one billing run.
type RunOptions struct {
	ProjectID    int
	From, To     time.Time
	BillableOnly bool
	DryRun       bool
	Partner      PartnerSelector
	HourlyRate   float64
	Currency     string
	Terms        BillingTerms
	// InvoiceDate defaults to today when zero.
	InvoiceDate time.Time
}

// RunReport is the outcome of a run that got past the fetch step.
type RunReport struct {
	Entries   []mite.TimeEntry
	Aggregate Aggregate
	PartnerID string
	DryRun    bool
	Invoice   alphaflow.CreatedInvoice
	Lock      mite.LockSummary
	// LockErr is set when locking could not be attempted at all. The
	// invoice exists regardless; the caller reports this as a warning,
	// not a failure.
	LockErr error
}

// Run executes one billing run. Any failure up to and including invoice
// creation aborts before entries are locked; once the invoice exists,
// lock problems are recorded in the report and do not fail the run.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (*RunReport, error) {
	o.Log.Info().
		Int("project_id", opts.ProjectID).
		Str("from", timeutil.FormatDate(opts.From)).
		Str("to", timeutil.FormatDate(opts.To)).
		Bool("billable_only", opts.BillableOnly).
		Bool("dry_run", opts.DryRun).
		Msg("fetching time entries")

	entries, err := o.Source.FetchUnlocked(ctx, mite.Query{
		ProjectID:    opts.ProjectID,
		From:         opts.From,
		To:           opts.To,
		BillableOnly: opts.BillableOnly,
	})
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w for project %d between %s and %s",
			ErrNoUnlockedEntries, opts.ProjectID,
			timeutil.FormatDate(opts.From), timeutil.FormatDate(opts.To))
	}
	o.Log.Info().Int("entries", len(entries)).Msg("time entries fetched")

	agg, err := Summarize(entries, opts.HourlyRate, opts.Currency, opts.From, opts.To)
	if err != nil {
		return nil, fmt.Errorf("aggregating time entries: %w", err)
	}
	o.Log.Info().
		Str("project", agg.ProjectName).
		Int("total_minutes", agg.TotalMinutes).
		Float64("amount", agg.Amount).
		Str("currency", agg.Currency).
		Msg("aggregated project data")

	partnerID, err := ResolvePartner(ctx, opts.Partner, o.Platform)
	if err != nil {
		return nil, err
	}
	o.Log.Info().Str("trading_partner_id", partnerID).Msg("trading partner resolved")

	report := &RunReport{
		Entries:   entries,
		Aggregate: agg,
		PartnerID: partnerID,
		DryRun:    opts.DryRun,
	}

	if opts.DryRun {
		o.Log.Info().Msg("dry run, stopping before authentication")
		return report, nil
	}

	if _, err := o.Platform.Authenticate(ctx); err != nil {
		return nil, err
	}
	o.Log.Info().Msg("authenticated with invoicing platform")

	invoiceDate := opts.InvoiceDate
	if invoiceDate.IsZero() {
		invoiceDate = time.Now()
	}
	invoice := BuildInvoice(agg, partnerID, opts.Terms, invoiceDate)

	created, err := o.Platform.CreateInvoice(ctx, invoice)
	if err != nil {
		// No locking: the interlock forbids locking entries that were
		// not actually invoiced.
		return nil, err
	}
	report.Invoice = created

	// From here on the invoice exists and cannot be un-created. A crash
	// before locking completes leaves the entries unlocked, and a later
	// run would bill them again; the gap is accepted because the
	// platform offers no transaction spanning both services.
	summary, lockErr := o.Source.LockEntries(ctx, entries)
	report.Lock = summary
	if lockErr != nil {
		report.LockErr = lockErr
		o.Log.Warn().Err(lockErr).
			Str("invoice_id", created.ID).
			Msg("invoice created but locking could not be attempted; entries remain billable")
		return report, nil
	}
	if summary.Failed > 0 {
		o.Log.Warn().
			Int("failed", summary.Failed).
			Int("newly_locked", summary.NewlyLocked).
			Msg("some time entries could not be locked; they remain billable")
	}
	return report, nil
}
