package domain

// Role — роль пользователя магазина.
type Role string

const (
	// RoleAdmin управляет каталогом и видит все заказы.
	RoleAdmin Role = "ROLE_ADMIN"
	// RoleBuyer собирает корзину, оформляет заказы и оставляет отзывы.
	RoleBuyer Role = "ROLE_BUYER"
)

// Valid проверяет, что роль относится к поддерживаемым значениям.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleBuyer:
		return true
	default:
		return false
	}
}

// User — зарегистрированный пользователь. Логином служит email.
type User struct {
	ID    int64
	Name  string
	Email string
	Role  Role
}

// HasAdminRole — предикат доступа к административным операциям.
func HasAdminRole(user User) bool {
	return user.Role == RoleAdmin
}
