package postgres

import (
	"context"

	"github.com/frahmantamala/inventory-checkout/internal"
	rbacDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/user"
	"github.com/frahmantamala/inventory-checkout/internal/core/storage"
	"github.com/frahmantamala/inventory-checkout/internal/rbac"
	"gorm.io/gorm"
)

type RBACRepository struct {
	db *gorm.DB
}

func NewRBACRepository(db *gorm.DB) rbac.RepositoryAPI {
	return &RBACRepository{db: db}
}

func (r *RBACRepository) WithinTransaction(ctx context.Context, fn func(repo rbac.RepositoryAPI) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RBACRepository{db: tx})
	})
}

func (r *RBACRepository) GetRoleByID(ctx context.Context, id int64) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&role).Error; err != nil {
		if storage.IsNotFound(err) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *RBACRepository) GetRoleByName(ctx context.Context, name string) (*rbacDatamodel.Role, error) {
	var role rbacDatamodel.Role
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&role).Error; err != nil {
		if storage.IsNotFound(err) {
			return nil, internal.ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

func (r *RBACRepository) ListRoles(ctx context.Context) ([]*rbacDatamodel.Role, error) {
	var roles []*rbacDatamodel.Role
	err := r.db.WithContext(ctx).Order("id ASC").Find(&roles).Error
	return roles, err
}

func (r *RBACRepository) CreateRole(ctx context.Context, role *rbacDatamodel.Role) error {
	if err := r.db.WithContext(ctx).Create(role).Error; err != nil {
		if storage.IsUniqueViolation(err) {
			return internal.ErrRoleNameTaken
		}
		return err
	}
	return nil
}

func (r *RBACRepository) UpdateRole(ctx context.Context, role *rbacDatamodel.Role) error {
	res := r.db.WithContext(ctx).Model(&rbacDatamodel.Role{}).Where("id = ?", role.ID).Updates(map[string]interface{}{
		"name":        role.Name,
		"description": role.Description,
		"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
	})
	if res.Error != nil {
		if storage.IsUniqueViolation(res.Error) {
			return internal.ErrRoleNameTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrRoleNotFound
	}
	return nil
}

func (r *RBACRepository) DeleteRole(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("role_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&rbacDatamodel.Role{})
		if res.Error != nil {
			if storage.IsForeignKeyViolation(res.Error) {
				return internal.ErrRoleInUse
			}
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrRoleNotFound
		}
		return nil
	})
}

func (r *RBACRepository) CountUsersWithRole(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("role_id = ?", roleID).Count(&count).Error
	return count, err
}

func (r *RBACRepository) GetPermissionByID(ctx context.Context, id int64) (*rbacDatamodel.Permission, error) {
	var perm rbacDatamodel.Permission
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&perm).Error; err != nil {
		if storage.IsNotFound(err) {
			return nil, internal.ErrPermissionNotFound
		}
		return nil, err
	}
	return &perm, nil
}

func (r *RBACRepository) GetPermissionByName(ctx context.Context, name string) (*rbacDatamodel.Permission, error) {
	var perm rbacDatamodel.Permission
	if err := r.db.WithContext(ctx).Where("name = ?", name).First(&perm).Error; err != nil {
		if storage.IsNotFound(err) {
			return nil, internal.ErrPermissionNotFound
		}
		return nil, err
	}
	return &perm, nil
}

func (r *RBACRepository) ListPermissions(ctx context.Context) ([]*rbacDatamodel.Permission, error) {
	var perms []*rbacDatamodel.Permission
	err := r.db.WithContext(ctx).Order("name ASC").Find(&perms).Error
	return perms, err
}

func (r *RBACRepository) CreatePermission(ctx context.Context, perm *rbacDatamodel.Permission) error {
	if err := r.db.WithContext(ctx).Create(perm).Error; err != nil {
		if storage.IsUniqueViolation(err) {
			return internal.ErrPermissionNameTaken
		}
		return err
	}
	return nil
}

func (r *RBACRepository) UpdatePermission(ctx context.Context, perm *rbacDatamodel.Permission) error {
	res := r.db.WithContext(ctx).Model(&rbacDatamodel.Permission{}).Where("id = ?", perm.ID).Updates(map[string]interface{}{
		"name":        perm.Name,
		"description": perm.Description,
		"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
	})
	if res.Error != nil {
		if storage.IsUniqueViolation(res.Error) {
			return internal.ErrPermissionNameTaken
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrPermissionNotFound
	}
	return nil
}

func (r *RBACRepository) DeletePermission(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("permission_id = ?", id).Delete(&rbacDatamodel.RolePermission{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&rbacDatamodel.Permission{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return internal.ErrPermissionNotFound
		}
		return nil
	})
}

func (r *RBACRepository) PermissionsForRole(ctx context.Context, roleID int64) ([]*rbacDatamodel.Permission, error) {
	var perms []*rbacDatamodel.Permission
	err := r.db.WithContext(ctx).
		Model(&rbacDatamodel.Permission{}).
		Joins("JOIN role_permissions rp ON rp.permission_id = permissions.id").
		Where("rp.role_id = ?", roleID).
		Order("permissions.name ASC").
		Find(&perms).Error
	return perms, err
}

// AssignPermission reports ErrDuplicateAssignment for an existing link, both
// from the pre-check and from the primary key when two writers race.
func (r *RBACRepository) AssignPermission(ctx context.Context, roleID, permissionID int64) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&rbacDatamodel.RolePermission{}).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return internal.ErrDuplicateAssignment
	}

	link := &rbacDatamodel.RolePermission{RoleID: roleID, PermissionID: permissionID}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		switch {
		case storage.IsUniqueViolation(err):
			return internal.ErrDuplicateAssignment
		case storage.IsForeignKeyViolation(err):
			return internal.ErrRoleNotFound
		}
		return err
	}
	return nil
}

func (r *RBACRepository) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	res := r.db.WithContext(ctx).
		Where("role_id = ? AND permission_id = ?", roleID, permissionID).
		Delete(&rbacDatamodel.RolePermission{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrAssignmentNotFound
	}
	return nil
}
