package user

import (
	"strings"
	"time"

	userDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/user"
)

// User is the credential record. PasswordHash never leaves the service layer.
type User struct {
	ID           int64     `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CompanyName  string    `json:"company_name,omitempty"`
	RoleID       int64     `json:"role_id"`
	TempPassword bool      `json:"requires_password_reset"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NormalizeEmail is applied at the storage boundary, so email uniqueness and
// lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func ToDataModel(u *User) *userDatamodel.User {
	return &userDatamodel.User{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        NormalizeEmail(u.Email),
		PasswordHash: u.PasswordHash,
		CompanyName:  u.CompanyName,
		RoleID:       u.RoleID,
		TempPassword: u.TempPassword,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:           u.ID,
		FullName:     u.FullName,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CompanyName:  u.CompanyName,
		RoleID:       u.RoleID,
		TempPassword: u.TempPassword,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}
