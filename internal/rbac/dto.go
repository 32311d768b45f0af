package rbac

type CreateRoleDTO struct {
	Name          string  `json:"name" validate:"required,min=2,max=100"`
	Description   string  `json:"description" validate:"max=255"`
	PermissionIDs []int64 `json:"permission_ids" validate:"omitempty,dive,gt=0"`
}

type UpdateRoleDTO struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

type AssignPermissionDTO struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
}

type CreatePermissionDTO struct {
	Name        string `json:"name" validate:"required,max=100,permission"`
	Description string `json:"description" validate:"max=255"`
}

type UpdatePermissionDTO struct {
	Name        *string `json:"name" validate:"omitempty,max=100,permission"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

type RolesResponse struct {
	Roles []*Role `json:"roles"`
}

type PermissionsResponse struct {
	Permissions []*Permission `json:"permissions"`
}

type BootstrapReport struct {
	RolesCreated       int `json:"roles_created"`
	PermissionsCreated int `json:"permissions_created"`
	LinksCreated       int `json:"links_created"`
}
