package order

import "time"

const StatusCompleted = "completed"

type Order struct {
	ID        int64     `gorm:"primaryKey" db:"id"`
	UserID    int64     `gorm:"column:user_id;not null;index" db:"user_id"`
	Status    string    `gorm:"column:status;not null" db:"status"`
	Total     int64     `gorm:"column:total;not null" db:"total"`
	CreatedAt time.Time `gorm:"column:created_at" db:"created_at"`
}

func (Order) TableName() string {
	return "orders"
}

// OrderItem snapshots quantity and unit price at purchase time.
type OrderItem struct {
	ID          int64 `gorm:"primaryKey" db:"id"`
	OrderID     int64 `gorm:"column:order_id;not null;index" db:"order_id"`
	InventoryID int64 `gorm:"column:inventory_id;not null" db:"inventory_id"`
	Quantity    int64 `gorm:"column:quantity;not null" db:"quantity"`
	Price       int64 `gorm:"column:price;not null" db:"price"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
