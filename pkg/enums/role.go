package enums

import "strings"

// Role is the closed set of marketplace actor roles.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleVendor   Role = "vendor"
	RoleSupplier Role = "supplier"
	RoleAdmin    Role = "admin"
)

var roles = closedSet[Role]{RoleCustomer, RoleVendor, RoleSupplier, RoleAdmin}

// Roles returns every known role.
func Roles() []Role {
	return append([]Role(nil), roles...)
}

func (r Role) String() string { return string(r) }

func (r Role) IsValid() bool { return roles.has(r) }

// CanPlaceOrders reports whether the role buys from suppliers.
func (r Role) CanPlaceOrders() bool {
	return r == RoleVendor || r == RoleCustomer
}

// SelfRegistrable reports whether the role may be chosen at sign-up.
func (r Role) SelfRegistrable() bool {
	return r.IsValid() && r != RoleAdmin
}

// ParseRole accepts any casing and surrounding whitespace.
func ParseRole(value string) (Role, error) {
	return roles.parse("role", strings.ToLower(strings.TrimSpace(value)))
}
