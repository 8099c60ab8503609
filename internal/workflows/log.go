package workflows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/emerald-finance/emerald/internal/audit"
	"github.com/emerald-finance/emerald/internal/models"
)

const auditTimestampLayout = "2006-01-02T15:04:05.000000Z"

// LogOptions configures ReadLog.
type LogOptions struct {
	// Limit is the maximum number of entries to return. 0 means no limit.
	Limit int

	// Reverse orders entries from most recent to oldest when true.
	Reverse bool

	// User filters entries by display name.
	User string

	// Operations filters entries by operation, comma-separated.
	Operations string

	// Tenant filters entries by budget context id.
	Tenant string

	// Since and Until bound the entries by day, YYYY-MM-DD, inclusive.
	Since string
	Until string
}

// LogResult contains the outcome of ReadLog.
type LogResult struct {
	Entries []audit.Entry

	// Total is the count of entries before filtering.
	Total int
}

// ReadLog reads and filters the audit log. A missing log yields an empty
// result. Malformed dates fail with a *models.ValidationError.
func ReadLog(ctx context.Context, opts LogOptions) (*LogResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	verr := &models.ValidationError{}
	since, hasSince := parseDay(verr, "since", opts.Since)
	until, hasUntil := parseDay(verr, "until", opts.Until)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	entries, err := audit.ReadEntries()
	if err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	result := &LogResult{Total: len(entries)}

	var ops []string
	if opts.Operations != "" {
		ops = strings.Split(opts.Operations, ",")
	}
	filtered := audit.Filter(entries, ops...)

	var out []audit.Entry
	for _, e := range filtered {
		if opts.User != "" && !strings.EqualFold(e.User, opts.User) {
			continue
		}
		if opts.Tenant != "" && e.Tenant != opts.Tenant {
			continue
		}
		if hasSince || hasUntil {
			ts, ok := parseTimestamp(e.Timestamp)
			if !ok {
				continue
			}
			if hasSince && ts.Before(since) {
				continue
			}
			if hasUntil && ts.After(until.Add(24*time.Hour-time.Nanosecond)) {
				continue
			}
		}
		out = append(out, e)
	}

	if opts.Reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	// The limit always keeps the most recent entries.
	if opts.Limit > 0 && len(out) > opts.Limit {
		if opts.Reverse {
			out = out[:opts.Limit]
		} else {
			out = out[len(out)-opts.Limit:]
		}
	}

	result.Entries = out
	return result, nil
}

func parseDay(verr *models.ValidationError, field, s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		verr.Add(field, "must be a date in YYYY-MM-DD format")
		return time.Time{}, false
	}
	return t, true
}

func parseTimestamp(ts string) (time.Time, bool) {
	t, err := time.Parse(auditTimestampLayout, ts)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, ts)
	}
	return t, err == nil
}

// FormatDate formats an audit timestamp as YYYY-MM-DD.
func FormatDate(ts string) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		if len(ts) >= 10 {
			return ts[:10]
		}
		return ts
	}
	return t.Format("2006-01-02")
}

// FormatDateTime formats an audit timestamp as YYYY-MM-DD HH:MM:SS.
func FormatDateTime(ts string) string {
	t, ok := parseTimestamp(ts)
	if !ok {
		if len(ts) >= 19 {
			return ts[:19]
		}
		return ts
	}
	return t.Format("2006-01-02 15:04:05")
}

// FormatDetails describes what an entry touched.
func FormatDetails(e audit.Entry) string {
	switch e.Operation {
	case "backup", "sync":
		return fmt.Sprintf("%s (%d records, %d attachments)", e.Path, e.Records, e.Attachments)
	case "restore":
		details := fmt.Sprintf("%d records, %d attachments", e.Records, e.Attachments)
		if e.Failed > 0 {
			details += fmt.Sprintf(", %d failed", e.Failed)
		}
		if e.Path != "" {
			details = e.Path + " (" + details + ")"
		}
		return details
	case "import":
		return fmt.Sprintf("%d transactions into %s", e.Records, e.Tenant)
	case "context-add", "context-rename":
		return fmt.Sprintf("%s (%s)", e.Name, e.Tenant)
	case "context-delete":
		return e.Tenant
	case "onboard":
		return e.Name
	default:
		return ""
	}
}

// FormatDetailsOneline is the compact form of FormatDetails.
func FormatDetailsOneline(e audit.Entry) string {
	switch e.Operation {
	case "backup", "sync", "restore":
		return fmt.Sprintf("%d records", e.Records)
	case "import":
		return fmt.Sprintf("%d into %s", e.Records, e.Tenant)
	case "context-add", "context-rename":
		return e.Name
	case "context-delete":
		return e.Tenant
	default:
		return ""
	}
}
