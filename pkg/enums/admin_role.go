package enums

import "fmt"

// AdminRole distinguishes tenant owners from cashier logins.
type AdminRole string

const (
	AdminRoleOwner   AdminRole = "owner"
	AdminRoleCashier AdminRole = "cashier"
)

var validAdminRoles = []AdminRole{
	AdminRoleOwner,
	AdminRoleCashier,
}

func (r AdminRole) String() string {
	return string(r)
}

func (r AdminRole) IsValid() bool {
	for _, candidate := range validAdminRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseAdminRole converts raw input into an AdminRole.
func ParseAdminRole(value string) (AdminRole, error) {
	for _, candidate := range validAdminRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin role %q", value)
}
