package grid

import "strings"

const RoleAdmin = "ADMIN"

// Operator is the authenticated session an Editor acts on behalf of. It is
// handed to the editor explicitly rather than read from ambient state.
type Operator struct {
	ID   string
	Role string
}

func (o Operator) CanEditAvailability() bool {
	return strings.EqualFold(strings.TrimSpace(o.Role), RoleAdmin)
}
