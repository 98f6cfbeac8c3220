package models

import "time"

// JournalAction is a mutation this client submitted to the build service.
type JournalAction string

const (
	JournalAssign        JournalAction = "assign"
	JournalUnassign      JournalAction = "unassign"
	JournalApprove       JournalAction = "approve"
	JournalApproveGroup  JournalAction = "approve_group"
	JournalReject        JournalAction = "reject"
	JournalComment       JournalAction = "comment"
	JournalDeleteComment JournalAction = "delete_comment"
)

// JournalEntry records one submitted mutation.
type JournalEntry struct {
	ID        string
	RequestID string
	Action    JournalAction
	User      string
	Groups    []string
	Reasons   []string
	Message   string
	DryRun    bool
	CreatedAt time.Time
}
