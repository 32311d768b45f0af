package postgres

import (
	"context"
	"strings"

	"github.com/frahmantamala/inventory-checkout/internal"
	inventoryDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/inventory"
	"github.com/frahmantamala/inventory-checkout/internal/core/storage"
	"github.com/frahmantamala/inventory-checkout/internal/inventory"
	"gorm.io/gorm"
)

type InventoryRepository struct {
	db *gorm.DB
}

func NewInventoryRepository(db *gorm.DB) inventory.RepositoryAPI {
	return &InventoryRepository{db: db}
}

func (r *InventoryRepository) List(ctx context.Context, filter inventory.ListFilter) ([]*inventoryDatamodel.Item, error) {
	q := r.db.WithContext(ctx).Model(&inventoryDatamodel.Item{})
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(sku) LIKE ?", like, like)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}

	var items []*inventoryDatamodel.Item
	err := q.Order("id ASC").Find(&items).Error
	return items, err
}

func (r *InventoryRepository) GetByID(ctx context.Context, id int64) (*inventoryDatamodel.Item, error) {
	var item inventoryDatamodel.Item
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if storage.IsNotFound(err) {
			return nil, internal.ErrInventoryNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (r *InventoryRepository) Create(ctx context.Context, item *inventoryDatamodel.Item) error {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *InventoryRepository) Update(ctx context.Context, item *inventoryDatamodel.Item) error {
	res := r.db.WithContext(ctx).Model(&inventoryDatamodel.Item{}).Where("id = ?", item.ID).Updates(map[string]interface{}{
		"name":        item.Name,
		"description": item.Description,
		"price":       item.Price,
		"quantity":    item.Quantity,
		"sku":         item.SKU,
		"updated_at":  gorm.Expr("CURRENT_TIMESTAMP"),
	})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return internal.ErrInventoryNotFound
	}
	return nil
}

func (r *InventoryRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&inventoryDatamodel.Item{})
	if res.Error != nil {
		if storage.IsForeignKeyViolation(res.Error) {
			return internal.ErrInventoryInUse
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrInventoryNotFound
	}
	return nil
}

func translate(err error) error {
	switch {
	case storage.IsUniqueViolation(err):
		return internal.ErrSKUTaken
	case storage.IsCheckViolation(err):
		return internal.NewValidationError("Price must be positive and quantity non-negative", internal.ErrCodeValidationFailed).WithCause(err)
	}
	return err
}
