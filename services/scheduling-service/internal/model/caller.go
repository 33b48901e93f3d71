package model

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleStaff    Role = "staff"
	RoleProvider Role = "provider"
	RoleOwner    Role = "owner"
)

// Caller is the authenticated actor behind a request.
type Caller struct {
	ID   string
	Role Role
}

func (c Caller) Privileged() bool {
	return c.Role == RoleAdmin || c.Role == RoleStaff
}
