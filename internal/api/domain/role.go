package domain

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultRoles are granted to newly created users.
var DefaultRoles = []string{RoleUser}
