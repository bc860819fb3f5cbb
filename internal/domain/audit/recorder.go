// Package audit defines the audit trail contract used by domain services.
// The PostgreSQL implementation lives in infrastructure/storage/postgres.
package audit

import (
	"context"
)

// Action is the kind of change being recorded.
type Action string

const (
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionIssue     Action = "issue"
	ActionPay       Action = "pay"
	ActionCancel    Action = "cancel"
	ActionConfigure Action = "configure"
)

// Entity types written to the trail.
const (
	EntityDocument      = "document"
	EntityNumberingRule = "numbering_rule"
)

// Recorder appends entries to the audit trail. Implementations write through
// the transaction carried in ctx, so an entry commits or rolls back together
// with the change it describes.
type Recorder interface {
	Record(ctx context.Context, entityType, entityID string, action Action, changes map[string]any) error
}

// NopRecorder discards every entry.
type NopRecorder struct{}

// Record implements Recorder.
func (NopRecorder) Record(context.Context, string, string, Action, map[string]any) error {
	return nil
}
