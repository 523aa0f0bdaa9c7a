package domain

import "time"

// Audit action labels emitted by the authentication core.
const (
	AuditLogin                = "login"
	AuditRefresh              = "refresh"
	AuditLogout               = "logout"
	AuditChangePassword       = "change_password"
	AuditInvite               = "invite"
	AuditCompleteRegistration = "complete_registration"
	AuditForgotPassword       = "forgot_password"
	AuditResetPassword        = "reset_password"
	AuditUserUpdate           = "user_update"
	AuditUserDelete           = "user_delete"
	AuditAdminSetPassword     = "admin_set_password"
)

// AuditEntry records one authentication-relevant event. UserID is empty when
// the actor could not be resolved (e.g. a failed login).
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	IP        string
	UserAgent string
	Success   bool
	Details   map[string]any
	CreatedAt time.Time
}
