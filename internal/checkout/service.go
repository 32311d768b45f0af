package checkout

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal"
	inventoryDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/inventory"
	orderDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/order"
	"github.com/frahmantamala/inventory-checkout/internal/core/events"
	"github.com/frahmantamala/inventory-checkout/internal/observability"
)

// RepositoryAPI runs checkouts inside one database transaction.
type RepositoryAPI interface {
	WithinTransaction(ctx context.Context, fn func(tx TxAPI) error) error
	ListOrders(ctx context.Context, userID int64) ([]*orderDatamodel.Order, error)
	ListOrderItems(ctx context.Context, orderIDs []int64) ([]*orderDatamodel.OrderItem, error)
}

// TxAPI is the set of statements a checkout issues while holding its locks.
type TxAPI interface {
	// LockItem reads the row and holds an exclusive lock on it until the
	// transaction ends. A missing row yields internal.ErrInventoryNotFound.
	LockItem(ctx context.Context, id int64) (*inventoryDatamodel.Item, error)
	DecrementQuantity(ctx context.Context, id, quantity int64) error
	CreateOrder(ctx context.Context, order *orderDatamodel.Order) error
	CreateOrderItems(ctx context.Context, items []*orderDatamodel.OrderItem) error
}

type Options struct {
	// TrustClientPrice bills each line at the submitted price.
	TrustClientPrice   bool
	TransactionTimeout time.Duration
}

type Service struct {
	repo      RepositoryAPI
	publisher events.Publisher
	metrics   *observability.Metrics
	opts      Options
	logger    *slog.Logger
}

func NewService(repo RepositoryAPI, publisher events.Publisher, metrics *observability.Metrics, opts Options, logger *slog.Logger) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
		logger:    logger,
	}
}

// Process converts the cart into a completed order. Stock for every item is
// locked in ascending id order, checked against the summed demand and then
// decremented; the order and its lines are written in the same transaction.
// Nothing is applied unless everything is.
func (s *Service) Process(ctx context.Context, userID int64, dto CheckoutDTO) (*Order, error) {
	start := time.Now()

	if len(dto.Items) == 0 {
		s.metrics.RecordCheckout(observability.CheckoutRejected, 0, time.Since(start))
		return nil, internal.ErrEmptyCheckout
	}
	if err := s.checkLines(dto.Items); err != nil {
		s.metrics.RecordCheckout(observability.CheckoutRejected, 0, time.Since(start))
		return nil, err
	}

	ctx, cancel := internal.WithTimeout(ctx, s.opts.TransactionTimeout)
	defer cancel()

	need := demandOf(dto.Items)
	var (
		order *orderDatamodel.Order
		lines []*orderDatamodel.OrderItem
	)

	err := s.repo.WithinTransaction(ctx, func(tx TxAPI) error {
		locked := make(map[int64]*inventoryDatamodel.Item, len(need))
		for _, id := range need.lockOrder() {
			item, err := tx.LockItem(ctx, id)
			if errors.Is(err, internal.ErrInventoryNotFound) {
				return internal.NewInsufficientStockError(id, need[id], 0)
			}
			if err != nil {
				return err
			}
			if item.Quantity < need[id] {
				return internal.NewInsufficientStockError(id, need[id], item.Quantity)
			}
			locked[id] = item
		}

		for _, id := range need.lockOrder() {
			if err := tx.DecrementQuantity(ctx, id, need[id]); err != nil {
				return err
			}
		}

		var total int64
		lines = make([]*orderDatamodel.OrderItem, 0, len(dto.Items))
		for _, l := range dto.Items {
			price := locked[l.InventoryID].Price
			if s.opts.TrustClientPrice {
				price = l.Price
			}
			sub, ok := mulAdd(total, price, l.Quantity)
			if !ok {
				return internal.NewValidationError("Order total is too large", internal.ErrCodeValidationFailed)
			}
			total = sub
			lines = append(lines, &orderDatamodel.OrderItem{
				InventoryID: l.InventoryID,
				Quantity:    l.Quantity,
				Price:       price,
			})
		}

		order = &orderDatamodel.Order{UserID: userID, Status: orderDatamodel.StatusCompleted, Total: total}
		if err := tx.CreateOrder(ctx, order); err != nil {
			return err
		}
		for _, line := range lines {
			line.OrderID = order.ID
		}
		return tx.CreateOrderItems(ctx, lines)
	})
	if err != nil {
		return nil, s.fail(userID, err, start)
	}

	result := FromDataModel(order, lines)
	s.metrics.RecordCheckout(observability.CheckoutCompleted, result.Units(), time.Since(start))
	s.logger.Info("checkout completed",
		"order_id", result.ID,
		"user_id", userID,
		"total", result.Total,
		"lines", len(result.Items))

	if s.publisher != nil {
		ev := events.NewCheckoutCompletedEvent(result.ID, userID, result.Total, result.Units())
		if err := s.publisher.Publish(ctx, ev); err != nil {
			s.logger.Error("failed to publish checkout event", "order_id", result.ID, "error", err)
		}
	}
	return result, nil
}

// History returns the caller's orders, newest first, with their lines.
func (s *Service) History(ctx context.Context, userID int64) ([]*Order, error) {
	orders, err := s.repo.ListOrders(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list orders", "user_id", userID, "error", err)
		return nil, err
	}
	if len(orders) == 0 {
		return []*Order{}, nil
	}

	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := s.repo.ListOrderItems(ctx, ids)
	if err != nil {
		s.logger.Error("failed to list order items", "user_id", userID, "error", err)
		return nil, err
	}

	byOrder := make(map[int64][]*orderDatamodel.OrderItem, len(orders))
	for _, it := range items {
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	out := make([]*Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, FromDataModel(o, byOrder[o.ID]))
	}
	return out, nil
}

func (s *Service) checkLines(lines []LineDTO) error {
	var fields []internal.ValidationError
	for i, l := range lines {
		if l.InventoryID <= 0 {
			fields = append(fields, lineError(i, "inventory_id", "inventory_id must be a positive integer"))
		}
		if l.Quantity <= 0 {
			fields = append(fields, lineError(i, "quantity", "quantity must be at least 1"))
		}
		if s.opts.TrustClientPrice && l.Price <= 0 {
			fields = append(fields, lineError(i, "price", "price must be greater than 0"))
		}
	}
	if len(fields) > 0 {
		return internal.NewValidationFieldErrors(fields)
	}
	return nil
}

func (s *Service) fail(userID int64, err error, start time.Time) error {
	elapsed := time.Since(start)
	switch {
	case errors.Is(err, internal.ErrInsufficientStock):
		s.metrics.RecordCheckout(observability.CheckoutInsufficientStock, 0, elapsed)
		s.logger.Info("checkout rejected: insufficient stock", "user_id", userID, "error", err)
		return err
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordCheckout(observability.CheckoutFailed, 0, elapsed)
		s.logger.Error("checkout timed out", "user_id", userID, "elapsed", elapsed)
		return internal.NewInternalError("Checkout timed out", err)
	}

	if appErr, ok := internal.IsAppError(err); ok && appErr.StatusCode < 500 {
		s.metrics.RecordCheckout(observability.CheckoutRejected, 0, elapsed)
		return err
	}
	s.metrics.RecordCheckout(observability.CheckoutFailed, 0, elapsed)
	s.logger.Error("checkout failed", "user_id", userID, "error", err)
	return internal.NewInternalError("Checkout failed", err)
}

func lineError(i int, field, msg string) internal.ValidationError {
	return internal.ValidationError{
		Field:   "items[" + strconv.Itoa(i) + "]." + field,
		Message: msg,
		Code:    string(internal.ErrCodeValidationFailed),
	}
}

// mulAdd returns acc + price*qty, reporting false on overflow.
func mulAdd(acc, price, qty int64) (int64, bool) {
	if price < 0 || qty < 0 {
		return 0, false
	}
	if price != 0 && qty > math.MaxInt64/price {
		return 0, false
	}
	sub := price * qty
	if acc > math.MaxInt64-sub {
		return 0, false
	}
	return acc + sub, true
}
