package enums

// UserRole is the coarse role carried on access tokens.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var validUserRoles = []UserRole{
	UserRoleCustomer,
	UserRoleAdmin,
}

func (r UserRole) String() string {
	return string(r)
}

func (r UserRole) IsValid() bool {
	return oneOf(r, validUserRoles)
}

func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", value, validUserRoles)
}
