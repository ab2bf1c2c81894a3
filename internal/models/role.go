package models

// TenantRole is the caller's role within a tenant, supplied by the upstream
// auth layer. The engine trusts it as already verified.
type TenantRole string

const (
	RoleViewer   TenantRole = "viewer"
	RoleEditor   TenantRole = "editor"
	RoleManager  TenantRole = "manager"
	RoleDirector TenantRole = "director"
	RoleAdmin    TenantRole = "admin"
)

// CanManageWebhooks reports whether the role may mutate subscriptions.
// Reads require only tenant membership.
func (r TenantRole) CanManageWebhooks() bool {
	switch r {
	case RoleManager, RoleDirector, RoleAdmin:
		return true
	}
	return false
}
