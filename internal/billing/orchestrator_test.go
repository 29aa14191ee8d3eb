package billing_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/mitebill/internal/alphaflow"
	"github.com/Tiliavir/mitebill/internal/billing"
	"github.com/Tiliavir/mitebill/internal/mite"
)

type fakeSource struct {
	entries    []mite.TimeEntry
	fetchErr   error
	fetchCalls int

	lockCalls int
	locked    []mite.TimeEntry
	lockErr   error
	failIDs   map[int]bool
}

func (f *fakeSource) FetchUnlocked(_ context.Context, _ mite.Query) ([]mite.TimeEntry, error) {
	f.fetchCalls++
	return f.entries, f.fetchErr
}

func (f *fakeSource) LockEntries(_ context.Context, entries []mite.TimeEntry) (mite.LockSummary, error) {
	f.lockCalls++
	summary := mite.LockSummary{Total: len(entries)}
	if f.lockErr != nil {
		return summary, f.lockErr
	}
	for _, e := range entries {
		if f.failIDs[e.ID] {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("entry %d: lock failed", e.ID))
			continue
		}
		f.locked = append(f.locked, e)
		summary.NewlyLocked++
	}
	return summary, nil
}

type fakePlatform struct {
	authCalls   int
	authErr     error
	lookupCalls int
	partner     alphaflow.TradingPartner
	lookupErr   error
	createCalls int
	createErr   error
	created     alphaflow.CreatedInvoice
	lastInvoice alphaflow.OutgoingInvoice
}

func (f *fakePlatform) Authenticate(_ context.Context) (string, error) {
	f.authCalls++
	if f.authErr != nil {
		return "", f.authErr
	}
	return "session-123", nil
}

func (f *fakePlatform) FindPartnerByNumber(_ context.Context, _ string) (alphaflow.TradingPartner, error) {
	f.lookupCalls++
	if f.lookupErr != nil {
		return alphaflow.TradingPartner{}, f.lookupErr
	}
	return f.partner, nil
}

func (f *fakePlatform) CreateInvoice(_ context.Context, inv alphaflow.OutgoingInvoice) (alphaflow.CreatedInvoice, error) {
	f.createCalls++
	f.lastInvoice = inv
	if f.createErr != nil {
		return alphaflow.CreatedInvoice{}, f.createErr
	}
	return f.created, nil
}

func runOptions() billing.RunOptions {
	return billing.RunOptions{
		ProjectID:    42,
		From:         from,
		To:           to,
		BillableOnly: true,
		Partner:      billing.PartnerSelector{DefaultID: "tp-default"},
		HourlyRate:   100,
		Currency:     "EUR",
		Terms: billing.BillingTerms{
			VATRate:         19,
			DueDays:         30,
			OrganizationID:  "org-1",
			AdministratorID: "admin-1",
		},
		InvoiceDate: time.Date(2025, 1, 7, 0, 0, 0, 0, time.UTC),
	}
}

func TestRun_FullBillingCycle(t *testing.T) {
	source := &fakeSource{entries: []mite.TimeEntry{entry(1, 60), entry(2, 90), entry(3, 30)}}
	platform := &fakePlatform{created: alphaflow.CreatedInvoice{ID: "inv-1", Number: "RE-2025-001"}}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	report, err := orch.Run(context.Background(), runOptions())
	require.NoError(t, err)

	assert.Equal(t, 180, report.Aggregate.TotalMinutes)
	assert.Equal(t, 300.00, report.Aggregate.Amount)
	assert.Equal(t, "tp-default", report.PartnerID)
	assert.Equal(t, "inv-1", report.Invoice.ID)
	assert.Equal(t, "RE-2025-001", report.Invoice.Number)

	assert.Equal(t, 1, platform.authCalls)
	assert.Equal(t, 1, platform.createCalls)
	assert.Equal(t, 300.00, platform.lastInvoice.TotalNetAmount)
	assert.Equal(t, "tp-default", platform.lastInvoice.TradingPartner.ID)

	assert.Equal(t, 1, source.lockCalls, "locking happens after the invoice exists")
	assert.Equal(t, 3, report.Lock.NewlyLocked)
	assert.Zero(t, report.Lock.Failed)
	assert.NoError(t, report.LockErr)
}

func TestRun_NoUnlockedEntries(t *testing.T) {
	source := &fakeSource{}
	platform := &fakePlatform{}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	_, err := orch.Run(context.Background(), runOptions())
	require.ErrorIs(t, err, billing.ErrNoUnlockedEntries)

	assert.Zero(t, platform.authCalls, "the invoicing platform must not be contacted")
	assert.Zero(t, platform.lookupCalls)
	assert.Zero(t, platform.createCalls)
	assert.Zero(t, source.lockCalls)
}

func TestRun_SubmissionFailureLocksNothing(t *testing.T) {
	source := &fakeSource{entries: []mite.TimeEntry{entry(1, 60), entry(2, 90)}}
	platform := &fakePlatform{createErr: fmt.Errorf("%w: HTTP 500", alphaflow.ErrInvoiceCreationFailed)}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	_, err := orch.Run(context.Background(), runOptions())
	require.ErrorIs(t, err, alphaflow.ErrInvoiceCreationFailed)

	assert.Equal(t, 1, platform.createCalls)
	assert.Zero(t, source.lockCalls, "entries stay unlocked when the invoice was not created")
	assert.Empty(t, source.locked)
}

func TestRun_PartialLockFailureIsNotFatal(t *testing.T) {
	source := &fakeSource{
		entries: []mite.TimeEntry{entry(1, 60), entry(2, 90), entry(3, 30)},
		failIDs: map[int]bool{2: true},
	}
	platform := &fakePlatform{created: alphaflow.CreatedInvoice{ID: "inv-1"}}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	report, err := orch.Run(context.Background(), runOptions())
	require.NoError(t, err, "the invoice exists, the run succeeded")

	assert.Equal(t, "inv-1", report.Invoice.ID)
	assert.Equal(t, 2, report.Lock.NewlyLocked)
	assert.Equal(t, 1, report.Lock.Failed)
	assert.Contains(t, report.Lock.Errors[0], "entry 2")
	assert.NoError(t, report.LockErr)
}

func TestRun_LockingUnreachableIsNotFatal(t *testing.T) {
	source := &fakeSource{
		entries: []mite.TimeEntry{entry(1, 60)},
		lockErr: fmt.Errorf("locking aborted, service unreachable: %w", mite.ErrUnavailable),
	}
	platform := &fakePlatform{created: alphaflow.CreatedInvoice{ID: "inv-1"}}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	report, err := orch.Run(context.Background(), runOptions())
	require.NoError(t, err)

	assert.Equal(t, "inv-1", report.Invoice.ID)
	assert.ErrorIs(t, report.LockErr, mite.ErrUnavailable)
	assert.Zero(t, report.Lock.NewlyLocked)
}

func TestRun_DryRunStopsBeforeAuthentication(t *testing.T) {
	source := &fakeSource{entries: []mite.TimeEntry{entry(1, 60), entry(2, 90), entry(3, 30)}}
	platform := &fakePlatform{}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	opts := runOptions()
	opts.DryRun = true
	report, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.True(t, report.DryRun)
	assert.Equal(t, 180, report.Aggregate.TotalMinutes, "the preview matches what a real run would bill")
	assert.Equal(t, 300.00, report.Aggregate.Amount)
	assert.Equal(t, "tp-default", report.PartnerID)

	assert.Zero(t, platform.authCalls)
	assert.Zero(t, platform.createCalls)
	assert.Zero(t, source.lockCalls)
	assert.Empty(t, report.Invoice.ID)
}

func TestRun_DryRunWithNumberStillResolves(t *testing.T) {
	source := &fakeSource{entries: []mite.TimeEntry{entry(1, 60)}}
	platform := &fakePlatform{partner: alphaflow.TradingPartner{ID: "tp-99", Number: "10001"}}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	opts := runOptions()
	opts.DryRun = true
	opts.Partner = billing.PartnerSelector{Number: "10001"}
	report, err := orch.Run(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, "tp-99", report.PartnerID)
	assert.Equal(t, 1, platform.lookupCalls, "the lookup is read-only and safe in a dry run")
	assert.Zero(t, platform.createCalls)
}

func TestRun_AuthenticationFailure(t *testing.T) {
	source := &fakeSource{entries: []mite.TimeEntry{entry(1, 60)}}
	platform := &fakePlatform{authErr: alphaflow.ErrAuthenticationFailed}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	_, err := orch.Run(context.Background(), runOptions())
	require.ErrorIs(t, err, alphaflow.ErrAuthenticationFailed)
	assert.Zero(t, platform.createCalls)
	assert.Zero(t, source.lockCalls)
}

func TestRun_FetchFailure(t *testing.T) {
	source := &fakeSource{fetchErr: mite.ErrUnavailable}
	platform := &fakePlatform{}
	orch := &billing.Orchestrator{Source: source, Platform: platform, Log: zerolog.Nop()}

	_, err := orch.Run(context.Background(), runOptions())
	require.ErrorIs(t, err, mite.ErrUnavailable)
	assert.Zero(t, platform.authCalls)
	assert.Zero(t, source.lockCalls)
}
