package postgres

import (
	"context"

	"github.com/frahmantamala/inventory-checkout/internal"
	rbacDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/rbac"
	userDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/user"
	"github.com/frahmantamala/inventory-checkout/internal/core/storage"
	"github.com/frahmantamala/inventory-checkout/internal/user"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) user.RepositoryAPI {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if storage.IsNotFound(err) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	if err := r.db.WithContext(ctx).Where("email = ?", user.NormalizeEmail(email)).First(&u).Error; err != nil {
		if storage.IsNotFound(err) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) List(ctx context.Context) ([]*userDatamodel.User, error) {
	var users []*userDatamodel.User
	err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error
	return users, err
}

func (r *UserRepository) Create(ctx context.Context, u *userDatamodel.User) error {
	return create(r.db.WithContext(ctx), u)
}

// CreateFirstWithRole inserts u only if nobody holds u.RoleID yet. The role row
// is locked for the count and the insert, so concurrent callers serialize and
// at most one of them succeeds.
func (r *UserRepository) CreateFirstWithRole(ctx context.Context, u *userDatamodel.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var role rbacDatamodel.Role
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", u.RoleID).First(&role).Error
		if err != nil {
			if storage.IsNotFound(err) {
				return internal.ErrRoleNotFound
			}
			return err
		}

		var holders int64
		if err := tx.Model(&userDatamodel.User{}).Where("role_id = ?", u.RoleID).Count(&holders).Error; err != nil {
			return err
		}
		if holders > 0 {
			return internal.ErrBootstrapClosed
		}
		return create(tx, u)
	})
}

func create(db *gorm.DB, u *userDatamodel.User) error {
	u.Email = user.NormalizeEmail(u.Email)
	if err := db.Create(u).Error; err != nil {
		switch {
		case storage.IsUniqueViolation(err):
			return internal.ErrEmailTaken
		case storage.IsForeignKeyViolation(err):
			return internal.ErrRoleNotFound
		}
		return err
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u *userDatamodel.User) error {
	u.Email = user.NormalizeEmail(u.Email)
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", u.ID).Updates(map[string]interface{}{
		"full_name":    u.FullName,
		"email":        u.Email,
		"company_name": u.CompanyName,
		"role_id":      u.RoleID,
		"updated_at":   gorm.Expr("CURRENT_TIMESTAMP"),
	})
	if res.Error != nil {
		switch {
		case storage.IsUniqueViolation(res.Error):
			return internal.ErrEmailTaken
		case storage.IsForeignKeyViolation(res.Error):
			return internal.ErrRoleNotFound
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string, temp bool) error {
	res := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("id = ?", id).Updates(map[string]interface{}{
		"password_hash": passwordHash,
		"temp_password": temp,
		"updated_at":    gorm.Expr("CURRENT_TIMESTAMP"),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&userDatamodel.User{})
	if res.Error != nil {
		if storage.IsForeignKeyViolation(res.Error) {
			return internal.ErrUserHasOrders
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) CountByRole(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&userDatamodel.User{}).Where("role_id = ?", roleID).Count(&count).Error
	return count, err
}
