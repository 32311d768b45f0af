package user

type CreateUserDTO struct {
	FullName    string `json:"full_name" validate:"required,min=2,max=100"`
	Email       string `json:"email" validate:"required,email,max=255"`
	CompanyName string `json:"company_name" validate:"max=255"`
	RoleID      int64  `json:"role_id" validate:"required,gt=0"`
}

// UpdateUserDTO is a partial update; nil fields are left unchanged.
type UpdateUserDTO struct {
	FullName    *string `json:"full_name" validate:"omitempty,min=2,max=100"`
	Email       *string `json:"email" validate:"omitempty,email,max=255"`
	CompanyName *string `json:"company_name" validate:"omitempty,max=255"`
	RoleID      *int64  `json:"role_id" validate:"omitempty,gt=0"`
}

type RoleSummary struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}

type ProfileResponse struct {
	*User
	Role RoleSummary `json:"role"`
}

type UsersResponse struct {
	Users []*User `json:"users"`
}
