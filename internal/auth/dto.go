package auth

import (
	"time"

	"github.com/frahmantamala/inventory-checkout/internal/user"
)

type LoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterSuperAdminDTO struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,max=72,password"`
	CompanyName string `json:"company_name" validate:"max=255"`
}

type RegisterDTO = user.CreateUserDTO

type ChangePasswordDTO struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,max=72,password,nefield=CurrentPassword"`
}

type ResetPasswordDTO struct {
	Email string `json:"email" validate:"required,email"`
}

// TokenResponse is returned by login and the super admin bootstrap.
type TokenResponse struct {
	AccessToken           string     `json:"access_token"`
	TokenType             string     `json:"token_type"`
	ExpiresAt             time.Time  `json:"expires_at"`
	RequiresPasswordReset bool       `json:"requires_password_reset"`
	User                  *user.User `json:"user"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
