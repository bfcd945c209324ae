package model

// RoleAdmin is the role required for back-office operations.
const RoleAdmin = "admin"

// Identity is the verified caller, taken from a signed token.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Role   string
}

// DisplayName is the actor name recorded on timeline entries.
func (i *Identity) DisplayName() string {
	if i == nil {
		return ""
	}
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}
