package inventory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/frahmantamala/inventory-checkout/internal"
	inventoryDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/inventory"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

type RepositoryAPI interface {
	List(ctx context.Context, filter ListFilter) ([]*inventoryDatamodel.Item, error)
	GetByID(ctx context.Context, id int64) (*inventoryDatamodel.Item, error)
	Create(ctx context.Context, item *inventoryDatamodel.Item) error
	Update(ctx context.Context, item *inventoryDatamodel.Item) error
	Delete(ctx context.Context, id int64) error
}

type Service struct {
	repo   RepositoryAPI
	logger *slog.Logger
}

func NewService(repo RepositoryAPI, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Item, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	filter.Search = strings.TrimSpace(filter.Search)

	dms, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.Error("failed to list inventory", "error", err)
		return nil, err
	}
	items := make([]*Item, 0, len(dms))
	for _, dm := range dms {
		items = append(items, FromDataModel(dm))
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*Item, error) {
	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return FromDataModel(dm), nil
}

// Create records createdBy as the owner of the new item.
func (s *Service) Create(ctx context.Context, createdBy int64, dto CreateItemDTO) (*Item, error) {
	item := &Item{
		Name:        strings.TrimSpace(dto.Name),
		Description: dto.Description,
		Price:       dto.Price,
		Quantity:    dto.Quantity,
		SKU:         strings.TrimSpace(dto.SKU),
	}
	if createdBy > 0 {
		item.CreatedBy = &createdBy
	}
	if err := validateAmounts(item); err != nil {
		return nil, err
	}

	dm := ToDataModel(item)
	if err := s.repo.Create(ctx, dm); err != nil {
		return nil, err
	}
	s.logger.Info("inventory item created", "item_id", dm.ID, "sku", dm.SKU, "created_by", createdBy)
	return FromDataModel(dm), nil
}

func (s *Service) Update(ctx context.Context, id int64, dto UpdateItemDTO) (*Item, error) {
	dm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	item := FromDataModel(dm)

	if dto.Name != nil {
		item.Name = strings.TrimSpace(*dto.Name)
	}
	if dto.Description != nil {
		item.Description = *dto.Description
	}
	if dto.Price != nil {
		item.Price = *dto.Price
	}
	if dto.Quantity != nil {
		item.Quantity = *dto.Quantity
	}
	if dto.SKU != nil {
		item.SKU = strings.TrimSpace(*dto.SKU)
	}
	if err := validateAmounts(item); err != nil {
		return nil, err
	}

	updated := ToDataModel(item)
	if err := s.repo.Update(ctx, updated); err != nil {
		return nil, err
	}
	s.logger.Info("inventory item updated", "item_id", id)
	return FromDataModel(updated), nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("inventory item deleted", "item_id", id)
	return nil
}

func validateAmounts(item *Item) error {
	var fields []internal.ValidationError
	if item.Price <= 0 {
		fields = append(fields, internal.ValidationError{Field: "price", Message: "price must be greater than 0", Code: "GT"})
	}
	if item.Quantity < 0 {
		fields = append(fields, internal.ValidationError{Field: "quantity", Message: "quantity must be at least 0", Code: "GTE"})
	}
	if item.Name == "" {
		fields = append(fields, internal.ValidationError{Field: "name", Message: "name is required", Code: "REQUIRED"})
	}
	if len(fields) > 0 {
		return internal.NewValidationFieldErrors(fields)
	}
	return nil
}
