package rbac

import (
	"sort"
	"time"

	rbacDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/rbac"
)

const (
	RoleSuperAdmin       = "Super Admin"
	RoleInventoryManager = "Inventory Manager"
	RoleCashier          = "Cashier"
)

// Permission vocabulary guarded by the HTTP routes.
const (
	PermUserCreate = "user:create"
	PermUserRead   = "user:read"
	PermUserUpdate = "user:update"
	PermUserDelete = "user:delete"

	PermRoleCreate = "role:create"
	PermRoleRead   = "role:read"
	PermRoleUpdate = "role:update"
	PermRoleDelete = "role:delete"

	PermPermissionCreate = "permission:create"
	PermPermissionRead   = "permission:read"
	PermPermissionUpdate = "permission:update"
	PermPermissionDelete = "permission:delete"

	PermInventoryCreate = "inventory:create"
	PermInventoryRead   = "inventory:read"
	PermInventoryUpdate = "inventory:update"
	PermInventoryDelete = "inventory:delete"

	PermCheckoutProcess = "checkout:process"
)

// Vocabulary returns every built-in permission name.
func Vocabulary() []string {
	return []string{
		PermUserCreate, PermUserRead, PermUserUpdate, PermUserDelete,
		PermRoleCreate, PermRoleRead, PermRoleUpdate, PermRoleDelete,
		PermPermissionCreate, PermPermissionRead, PermPermissionUpdate, PermPermissionDelete,
		PermInventoryCreate, PermInventoryRead, PermInventoryUpdate, PermInventoryDelete,
		PermCheckoutProcess,
	}
}

func IsBuiltinPermission(name string) bool {
	for _, p := range Vocabulary() {
		if p == name {
			return true
		}
	}
	return false
}

type RoleDefinition struct {
	Name        string
	Description string
	Permissions []string
}

// DefaultRoles is the fixed role table reconciled at startup. Roles are
// matched by name, never by id.
func DefaultRoles() []RoleDefinition {
	return []RoleDefinition{
		{
			Name:        RoleSuperAdmin,
			Description: "Full access to every resource",
			Permissions: Vocabulary(),
		},
		{
			Name:        RoleInventoryManager,
			Description: "Manages the inventory catalogue",
			Permissions: []string{PermInventoryCreate, PermInventoryRead, PermInventoryUpdate, PermInventoryDelete},
		},
		{
			Name:        RoleCashier,
			Description: "Processes checkouts",
			Permissions: []string{PermInventoryRead, PermCheckoutProcess},
		},
	}
}

type Permission struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (r *Role) IsSuperAdmin() bool {
	return r.Name == RoleSuperAdmin
}

func (r *Role) PermissionNames() []string {
	names := make([]string, 0, len(r.Permissions))
	for _, p := range r.Permissions {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names
}

// HasAll reports whether the role grants every one of required.
func (r *Role) HasAll(required ...string) bool {
	granted := make(map[string]struct{}, len(r.Permissions))
	for _, p := range r.Permissions {
		granted[p.Name] = struct{}{}
	}
	for _, name := range required {
		if _, ok := granted[name]; !ok {
			return false
		}
	}
	return true
}

func RoleFromDataModel(r *rbacDatamodel.Role, perms []*rbacDatamodel.Permission) *Role {
	role := &Role{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Permissions: make([]Permission, 0, len(perms)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	for _, p := range perms {
		role.Permissions = append(role.Permissions, *PermissionFromDataModel(p))
	}
	return role
}

func PermissionFromDataModel(p *rbacDatamodel.Permission) *Permission {
	return &Permission{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}
