package mite

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Tiliavir/mitebill/internal/timeutil"
)

// TimeEntry is a single tracked time entry as returned by mite.
type TimeEntry struct {
	ID           int     `json:"id"`
	Minutes      int     `json:"minutes"`
	DateAt       string  `json:"date_at"`
	Note         string  `json:"note"`
	Billable     bool    `json:"billable"`
	Locked       bool    `json:"locked"`
	UserName     string  `json:"user_name"`
	CustomerID   int     `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	ProjectID    int     `json:"project_id"`
	ProjectName  string  `json:"project_name"`
	ServiceName  string  `json:"service_name"`
	HourlyRate   float64 `json:"hourly_rate"`
}

// entryEnvelope matches mite's response shape: every entry is wrapped
// in a {"time_entry": {...}} object.
type entryEnvelope struct {
	TimeEntry TimeEntry `json:"time_entry"`
}

// Query selects the time entries of one billing run.
type Query struct {
	ProjectID    int
	From, To     time.Time
	BillableOnly bool
}

// FetchUnlocked returns the unlocked time entries matching q, in the
// order the service returns them. locked=false is always requested
// server-side, and locked entries are dropped client-side as well, so
// an already-invoiced entry can never enter a billing run. An empty
// result is not an error.
func (c *Client) FetchUnlocked(ctx context.Context, q Query) ([]TimeEntry, error) {
	if q.From.After(q.To) {
		return nil, fmt.Errorf("%w (%s > %s)", ErrInvalidRange,
			timeutil.FormatDate(q.From), timeutil.FormatDate(q.To))
	}

	params := url.Values{}
	params.Set("from", timeutil.FormatDate(q.From))
	params.Set("to", timeutil.FormatDate(q.To))
	params.Set("project_id", fmt.Sprint(q.ProjectID))
	params.Set("locked", "false")
	if q.BillableOnly {
		params.Set("billable", "true")
	}

	body, err := c.do(ctx, http.MethodGet, "time_entries.json", params, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching time entries: %w", err)
	}

	var envelopes []entryEnvelope
	if err := json.Unmarshal(body, &envelopes); err != nil {
		return nil, fmt.Errorf("decoding time entries: %w", err)
	}

	entries := make([]TimeEntry, 0, len(envelopes))
	for _, env := range envelopes {
		e := env.TimeEntry
		if e.Locked {
			// The server filter should already exclude these.
			c.log.Warn().Int("entry_id", e.ID).Msg("locked entry in unlocked listing, dropped")
			continue
		}
		if q.BillableOnly && !e.Billable {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// LockSummary counts the per-entry outcomes of a locking pass.
type LockSummary struct {
	Total         int
	NewlyLocked   int
	AlreadyLocked int
	Failed        int
	Errors        []string
}

// LockEntries marks the given entries as locked, one by one. An entry
// that is already locked counts as already-locked, not as an error.
// A failure on one entry is recorded and the remaining entries are
// still processed. Only total unreachability of the service, detected
// before the first attempt, returns a non-nil error.
func (c *Client) LockEntries(ctx context.Context, entries []TimeEntry) (LockSummary, error) {
	summary := LockSummary{Total: len(entries)}

	if err := c.Ping(ctx); err != nil {
		return summary, fmt.Errorf("locking aborted, service unreachable: %w", err)
	}

	for _, e := range entries {
		if e.Locked {
			summary.AlreadyLocked++
			c.log.Debug().Int("entry_id", e.ID).Msg("entry already locked")
			continue
		}
		if err := c.lockEntry(ctx, e.ID); err != nil {
			summary.Failed++
			summary.Errors = append(summary.Errors, fmt.Sprintf("entry %d: %v", e.ID, err))
			c.log.Warn().Err(err).Int("entry_id", e.ID).Msg("failed to lock entry")
			continue
		}
		summary.NewlyLocked++
		c.log.Debug().Int("entry_id", e.ID).Msg("entry locked")
	}
	return summary, nil
}

// lockEntry sets locked=true on a single entry. mite answers a
// successful update with an empty body, so only the status matters.
// Setting locked=true on an entry that is already locked is a no-op
// success on the mite side.
func (c *Client) lockEntry(ctx context.Context, id int) error {
	payload := map[string]map[string]bool{
		"time-entry": {"locked": true},
	}
	_, err := c.do(ctx, http.MethodPatch, fmt.Sprintf("time_entries/%d.json", id), nil, payload)
	return err
}
