package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/mitebill/internal/alphaflow"
	"github.com/Tiliavir/mitebill/internal/billing"
	"github.com/Tiliavir/mitebill/internal/config"
	"github.com/Tiliavir/mitebill/internal/mite"
	"github.com/Tiliavir/mitebill/internal/timeutil"
)

var (
	createProjectID     int
	createFrom          string
	createTo            string
	createLastMonth     bool
	createConfigPath    string
	createBillableOnly  bool
	createDryRun        bool
	createVerbose       bool
	createPartnerID     string
	createPartnerNumber string
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an invoice from unlocked time entries",
	Long: `Create fetches the unlocked time entries of one mite project for a
date range, aggregates them into a single invoice, submits it to
Alphaflow and locks the billed entries.

Without --from/--to the previous calendar month is billed.

Exit codes:
  0  invoice created (or dry run completed)
  1  the run failed; no entries were locked unless an invoice exists
  2  no unlocked time entries found in the range`,
	Args: cobra.NoArgs,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().IntVar(&createProjectID, "project-id", 0, "mite project id to bill (required)")
	createCmd.Flags().StringVar(&createFrom, "from", "", "Start date (YYYY-MM-DD)")
	createCmd.Flags().StringVar(&createTo, "to", "", "End date (YYYY-MM-DD); defaults to today when --from is given")
	createCmd.Flags().BoolVar(&createLastMonth, "last-month", false, "Bill the previous calendar month (default when no range is given)")
	createCmd.Flags().StringVar(&createConfigPath, "config", "config.yaml", "Path to the configuration file")
	createCmd.Flags().BoolVar(&createBillableOnly, "billable-only", true, "Only include entries marked billable (use --billable-only=false to include all)")
	createCmd.Flags().BoolVar(&createDryRun, "dry-run", false, "Show what would be billed without creating an invoice or locking entries")
	createCmd.Flags().BoolVar(&createVerbose, "verbose", false, "Verbose output, includes the fetched entries")
	createCmd.Flags().StringVar(&createPartnerID, "trading-partner-id", "", "Bill this trading partner id instead of the configured default")
	createCmd.Flags().StringVar(&createPartnerNumber, "trading-partner-number", "", "Resolve and bill the trading partner with this number")
	_ = createCmd.MarkFlagRequired("project-id")
}

func runCreate(cmd *cobra.Command, args []string) error {
	now := time.Now()

	from, to, err := resolveRange(now)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	cfg, err := config.Load(createConfigPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := newLogger(cfg.Logging.Level, createVerbose)

	source := mite.New(cfg.Mite.Account, cfg.Mite.APIKey, log)
	platform := alphaflow.New(cfg.Alphaflow.BaseURL, cfg.Alphaflow.APIKey, log)
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: log}

	dryTag := ""
	if createDryRun {
		dryTag = " [dry-run]"
	}
	fmt.Printf("Billing project %d (%s → %s)%s...\n",
		createProjectID, timeutil.FormatDate(from), timeutil.FormatDate(to), dryTag)

	report, err := orch.Run(context.Background(), billing.RunOptions{
		ProjectID:    createProjectID,
		From:         from,
		To:           to,
		BillableOnly: createBillableOnly,
		DryRun:       createDryRun,
		Partner: billing.PartnerSelector{
			ID:        createPartnerID,
			Number:    createPartnerNumber,
			DefaultID: cfg.Alphaflow.DefaultTradingPartnerID,
		},
		HourlyRate: cfg.Alphaflow.DefaultHourlyRate,
		Currency:   cfg.Alphaflow.DefaultCurrency,
		Terms: billing.BillingTerms{
			VATRate:         cfg.Alphaflow.DefaultVATRate,
			DueDays:         cfg.Alphaflow.DefaultDueDays,
			OrganizationID:  cfg.Alphaflow.OrganizationID,
			AdministratorID: cfg.Alphaflow.AdministratorID,
		},
		InvoiceDate: now,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, billing.ErrNoUnlockedEntries) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if createVerbose {
		printEntries(report.Entries)
	}

	agg := report.Aggregate
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Project:  %s\n", agg.ProjectName)
	fmt.Printf("  Entries:  %d (%s)\n", len(agg.EntryIDs), timeutil.FormatHours(agg.TotalMinutes))
	fmt.Printf("  Amount:   %.2f %s (net, %.2f %s/h)\n",
		agg.Amount, agg.Currency, agg.HourlyRate, agg.Currency)
	fmt.Printf("  Partner:  %s\n", report.PartnerID)

	if report.DryRun {
		fmt.Println()
		fmt.Println("Dry run: no invoice created, no entries locked.")
		return nil
	}

	fmt.Printf("  Invoice:  %s (id %s)\n", report.Invoice.Number, report.Invoice.ID)

	switch {
	case report.LockErr != nil:
		fmt.Fprintf(os.Stderr, "\nWARNING: invoice created but entries could not be locked: %v\n", report.LockErr)
		fmt.Fprintln(os.Stderr, "The entries remain billable; lock them manually before the next run.")
	case report.Lock.Failed > 0:
		fmt.Printf("  Locked:   %d of %d entries\n", report.Lock.NewlyLocked, report.Lock.Total)
		fmt.Fprintf(os.Stderr, "\nWARNING: %d entries could not be locked and remain billable:\n", report.Lock.Failed)
		for _, e := range report.Lock.Errors {
			fmt.Fprintf(os.Stderr, "  %s\n", e)
		}
	default:
		fmt.Printf("  Locked:   %d entries\n", report.Lock.NewlyLocked)
	}
	return nil
}

// resolveRange turns the date flags into the billing period.
func resolveRange(now time.Time) (time.Time, time.Time, error) {
	var zero time.Time

	switch {
	case createLastMonth && (createFrom != "" || createTo != ""):
		return zero, zero, fmt.Errorf("--last-month cannot be combined with --from/--to")

	case createLastMonth:
		from, to := timeutil.LastMonth(now)
		return from, to, nil

	case createFrom == "" && createTo == "":
		from, to := timeutil.LastMonth(now)
		return from, to, nil

	case createFrom == "":
		return zero, zero, fmt.Errorf("--from is required when --to is specified")

	default:
		from, err := timeutil.ParseDate(createFrom)
		if err != nil {
			return zero, zero, err
		}
		to := now
		if createTo != "" {
			if to, err = timeutil.ParseDate(createTo); err != nil {
				return zero, zero, err
			}
		}
		return from, to, nil
	}
}

// printEntries lists the fetched entries, capped so that large months
// stay readable.
func printEntries(entries []mite.TimeEntry) {
	const maxShown = 10
	fmt.Println()
	fmt.Println("Entries:")
	for i, e := range entries {
		if i == maxShown {
			fmt.Printf("  ... and %d more\n", len(entries)-maxShown)
			break
		}
		fmt.Printf("  %s  %-8s  %s\n", e.DateAt, timeutil.FormatHours(e.Minutes), e.Note)
	}
}
