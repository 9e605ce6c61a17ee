// Package notify delivers workflow alerts to the people who act on them:
// the quality manager when a report escalates to the review board, the
// originator when a disposition closes, the assignee when a corrective action
// lands on their desk.
//
// Delivery is best-effort. A lost alert is an inconvenience; a failed
// disposition write is a compliance problem. Services log and swallow
// notifier errors.
package notify

import (
	"context"
	"strings"
	"time"

	"conforma/pkg/email"
)

// Notification kinds.
const (
	KindEscalated         = "ncr_escalated"
	KindDispositionClosed = "disposition_closed"
	KindCAPAAssigned      = "capa_assigned"
)

// Notification is one workflow alert. It crosses the wire as JSON on the
// Redis channel, so field names follow the API wire format.
type Notification struct {
	Kind         string    `json:"kind"`
	RecordType   string    `json:"recordType"`
	RecordID     string    `json:"recordId"`
	RecordNumber string    `json:"recordNumber,omitempty"`
	Message      string    `json:"message"`
	Actor        string    `json:"actor,omitempty"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// Notifier delivers workflow alerts.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// DisplayName renders an actor identity for human-readable alert text.
// CRM tokens carry emails; shop-floor terminals send plain names.
func DisplayName(actor string) string {
	if actor == "" {
		return "someone"
	}
	if !strings.ContainsRune(actor, '@') {
		return actor
	}
	first, last := email.DeriveNameFromEmail(actor)
	if last == "User" {
		return first
	}
	return first + " " + last
}
