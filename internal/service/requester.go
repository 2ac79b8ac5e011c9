package service

import "autoparts-service/internal/models"

// Requester is the authorization capability resolved once at the HTTP
// boundary and checked at the workflow boundary. Identity verification
// itself happens upstream (gateway/Clerk); this service only trusts
// the resolved id, email and role.
type Requester struct {
	ID    string
	Email string
	Role  string
}

// IsAdmin reports whether the requester holds the admin role
func (r Requester) IsAdmin() bool {
	return r.Role == models.RoleAdmin
}

// CanAccessOrder reports whether the requester may read or cancel an
// order: its owner, or any admin.
func (r Requester) CanAccessOrder(order *models.Order) bool {
	return r.IsAdmin() || order.UserID == r.ID
}
