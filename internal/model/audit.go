package model

import "time"

// Audit actions.
const (
	ActionLogin       = "auth.login"
	ActionLoginFailed = "auth.login_failed"
	ActionLogout      = "auth.logout"
	ActionUserUpdate  = "user.update"
	ActionUserDelete  = "user.delete"
	ActionPanelCreate = "panel.create"
)

// Audit outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// AuditEvent represents the audit_events table.
type AuditEvent struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
	Actor     string    `gorm:"index;size:32" json:"actor"`
	Action    string    `gorm:"index;size:32;not null" json:"action"`
	Target    string    `gorm:"size:64" json:"target"`
	Outcome   string    `gorm:"size:16" json:"outcome"`
	ClientIP  string    `gorm:"size:64" json:"clientIp"`
}
