// Package crashreport sends best-effort crash reports for pipeline
// failures. Reporting is fire-and-forget: its absence or failure must
// never change pipeline control flow, so Reporter.Report has no return
// value for callers to react to.
package crashreport

import "context"

// Reporter records an error along with free-form tags (at minimum
// "mode" and "block_number") for later diagnosis.
type Reporter interface {
	Report(ctx context.Context, err error, tags map[string]string)
}

// NoOp is a Reporter that discards everything. It is the default when
// no DSN is configured.
type NoOp struct{}

// Report does nothing.
func (NoOp) Report(context.Context, error, map[string]string) {}
