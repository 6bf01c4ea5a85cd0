package utils

import (
	"context"
	"time"
)

const DateLayout = "2006-01-02"

// Club-local time (America/New_York); falls back to a fixed EST offset when tzdata is missing.
var clubLoc = func() *time.Location {
	if loc, err := time.LoadLocation("America/New_York"); err == nil {
		return loc
	}
	return time.FixedZone("EST", -5*3600)
}()

func ClubLocation() *time.Location { return clubLoc }

// ParseDate parses a YYYY-MM-DD calendar date and returns it in canonical form.
func ParseDate(s string) (string, error) {
	t, err := time.ParseInLocation(DateLayout, s, clubLoc)
	if err != nil {
		return "", err
	}
	return t.Format(DateLayout), nil
}

func DateKey(t time.Time) string {
	return t.In(clubLoc).Format(DateLayout)
}

// WithinTolerance reports whether a and b differ by at most tol. Two nil times are equal,
// one nil time never is.
func WithinTolerance(a, b *time.Time, tol time.Duration) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	d := a.Sub(*b)
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func FormatDisplay(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(clubLoc).Format("Mon, Jan 2 2006 3:04 PM")
}

type traceKey struct{}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func TraceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceKey{}).(string); ok {
		return v
	}
	return ""
}
