package inventory

import "time"

// Item prices are stored in minor currency units.
type Item struct {
	ID          int64     `gorm:"primaryKey" db:"id"`
	Name        string    `gorm:"column:name;not null" db:"name"`
	Description string    `gorm:"column:description" db:"description"`
	Price       int64     `gorm:"column:price;not null" db:"price"`
	Quantity    int64     `gorm:"column:quantity;not null;default:0" db:"quantity"`
	SKU         string    `gorm:"column:sku;uniqueIndex;not null" db:"sku"`
	CreatedBy   *int64    `gorm:"column:created_by" db:"created_by"`
	CreatedAt   time.Time `gorm:"column:created_at" db:"created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at" db:"updated_at"`
}

func (Item) TableName() string {
	return "inventory"
}
