package domain

import "time"

// UserRole — роль пользователя.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCustomer UserRole = "customer"
)

// User — владелец заказов.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      UserRole
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate проверяет обязательные поля пользователя.
func (u *User) Validate() []error {
	var errs []error

	if u.Email == "" {
		errs = append(errs, ErrUserEmailRequired)
	}
	if u.Name == "" {
		errs = append(errs, ErrUserNameRequired)
	}
	if u.Role != UserRoleAdmin && u.Role != UserRoleCustomer {
		errs = append(errs, ErrUserRoleInvalid)
	}

	return errs
}
