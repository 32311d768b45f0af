package checkout

import (
	"sort"
	"time"

	orderDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/order"
)

type Order struct {
	ID        int64        `json:"id"`
	UserID    int64        `json:"user_id"`
	Status    string       `json:"status"`
	Total     int64        `json:"total"`
	CreatedAt time.Time    `json:"created_at"`
	Items     []*OrderItem `json:"items"`
}

// OrderItem keeps the price paid; later inventory price changes do not touch it.
type OrderItem struct {
	ID          int64 `json:"id"`
	OrderID     int64 `json:"order_id"`
	InventoryID int64 `json:"inventory_id"`
	Quantity    int64 `json:"quantity"`
	Price       int64 `json:"price"`
}

func (i *OrderItem) Subtotal() int64 {
	return i.Price * i.Quantity
}

// Units is the total number of pieces across all lines.
func (o *Order) Units() int64 {
	var n int64
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

// demand sums requested quantities per inventory item.
type demand map[int64]int64

func demandOf(lines []LineDTO) demand {
	d := make(demand, len(lines))
	for _, l := range lines {
		d[l.InventoryID] += l.Quantity
	}
	return d
}

// lockOrder returns the item ids in ascending order. Every checkout locks in
// this order so overlapping carts cannot deadlock.
func (d demand) lockOrder() []int64 {
	ids := make([]int64, 0, len(d))
	for id := range d {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func FromDataModel(o *orderDatamodel.Order, items []*orderDatamodel.OrderItem) *Order {
	out := &Order{
		ID:        o.ID,
		UserID:    o.UserID,
		Status:    o.Status,
		Total:     o.Total,
		CreatedAt: o.CreatedAt,
		Items:     make([]*OrderItem, 0, len(items)),
	}
	for _, it := range items {
		out.Items = append(out.Items, &OrderItem{
			ID:          it.ID,
			OrderID:     it.OrderID,
			InventoryID: it.InventoryID,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return out
}
