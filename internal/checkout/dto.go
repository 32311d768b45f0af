package checkout

type LineDTO struct {
	InventoryID int64 `json:"inventory_id" validate:"required,gt=0"`
	Quantity    int64 `json:"quantity" validate:"required,gt=0"`
	// Price is only honoured when client pricing is enabled.
	Price int64 `json:"price" validate:"gte=0"`
}

type CheckoutDTO struct {
	Items []LineDTO `json:"items" validate:"required,min=1,max=100,dive"`
}

type HistoryResponse struct {
	Orders []*Order `json:"orders"`
}
