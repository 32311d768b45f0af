package checkout_test

import (
	"context"
	"sync"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/checkout"
	inventoryDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/inventory"
	"github.com/frahmantamala/inventory-checkout/internal/observability"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

const (
	itemX int64 = 1
	itemY int64 = 2
	itemZ int64 = 3
)

var _ = Describe("Checkout Service", func() {
	var (
		ctx       context.Context
		store     *memoryStore
		publisher *recordingPublisher
		metrics   *observability.Metrics
	)

	newService := func(trust bool) *checkout.Service {
		return checkout.NewService(store, publisher, metrics,
			checkout.Options{TrustClientPrice: trust, TransactionTimeout: 5 * time.Second}, quietLogger())
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newMemoryStore(
			inventoryDatamodel.Item{ID: itemX, Name: "X", SKU: "X", Price: 500, Quantity: 5},
			inventoryDatamodel.Item{ID: itemY, Name: "Y", SKU: "Y", Price: 200, Quantity: 10},
			inventoryDatamodel.Item{ID: itemZ, Name: "Z", SKU: "Z", Price: 100, Quantity: 100},
		)
		publisher = &recordingPublisher{}
		metrics = observability.NewMetrics(prometheus.NewRegistry())
	})

	lines := func(pairs ...int64) checkout.CheckoutDTO {
		dto := checkout.CheckoutDTO{}
		for i := 0; i+1 < len(pairs); i += 2 {
			dto.Items = append(dto.Items, checkout.LineDTO{InventoryID: pairs[i], Quantity: pairs[i+1]})
		}
		return dto
	}

	It("aborts the whole checkout when one item is short", func() {
		_, err := newService(false).Process(ctx, 9, lines(itemY, 1, itemX, 6))

		Expect(err).To(MatchError(internal.ErrInsufficientStock))
		appErr, _ := internal.IsAppError(err)
		Expect(appErr.StatusCode).To(Equal(409))
		Expect(appErr.Details).To(HaveKeyWithValue("available", int64(5)))

		Expect(store.quantity(itemX)).To(Equal(int64(5)))
		Expect(store.quantity(itemY)).To(Equal(int64(10)))
		Expect(store.orderCount()).To(BeZero())
		Expect(publisher.count()).To(BeZero())
		Expect(testutil.ToFloat64(metrics.CheckoutsTotal.WithLabelValues(observability.CheckoutInsufficientStock))).To(Equal(1.0))
	})

	DescribeTable("decrements stock and snapshots the price",
		func(trust bool, clientPrice, wantPrice int64) {
			dto := checkout.CheckoutDTO{Items: []checkout.LineDTO{{InventoryID: itemY, Quantity: 3, Price: clientPrice}}}

			order, err := newService(trust).Process(ctx, 9, dto)

			Expect(err).NotTo(HaveOccurred())
			Expect(store.quantity(itemY)).To(Equal(int64(7)))
			Expect(order.Status).To(Equal("completed"))
			Expect(order.UserID).To(Equal(int64(9)))
			Expect(order.Total).To(Equal(wantPrice * 3))
			Expect(order.Items).To(HaveLen(1))
			Expect(*order.Items[0]).To(beLine(itemY, 3, wantPrice))
			Expect(publisher.count()).To(Equal(1))
		},
		Entry("inventory pricing", false, int64(200), int64(200)),
		Entry("inventory pricing ignores a tampered client price", false, int64(1), int64(200)),
		Entry("client pricing with the catalogue price", true, int64(200), int64(200)),
		Entry("client pricing bills the submitted price", true, int64(150), int64(150)),
	)

	It("sums duplicate lines for the stock check but keeps one order line each", func() {
		_, err := newService(false).Process(ctx, 9, lines(itemX, 3, itemX, 3))
		Expect(err).To(MatchError(internal.ErrInsufficientStock))
		Expect(store.quantity(itemX)).To(Equal(int64(5)))

		order, err := newService(false).Process(ctx, 9, lines(itemX, 2, itemX, 3))
		Expect(err).NotTo(HaveOccurred())
		Expect(order.Items).To(HaveLen(2))
		Expect(order.Total).To(Equal(int64(2500)))
		Expect(store.quantity(itemX)).To(BeZero())
	})

	It("treats unknown items as out of stock", func() {
		_, err := newService(false).Process(ctx, 9, lines(404, 1))
		Expect(err).To(MatchError(internal.ErrInsufficientStock))
	})

	It("locks rows in ascending id order regardless of cart order", func() {
		_, err := newService(false).Process(ctx, 9, lines(itemZ, 1, itemX, 1, itemY, 1))
		Expect(err).NotTo(HaveOccurred())
		Expect(store.lockLog).To(HaveLen(1))
		Expect(store.lockLog[0]).To(Equal([]int64{itemX, itemY, itemZ}))
	})

	DescribeTable("rolls back everything when a step fails",
		func(step string) {
			store.failOn = step

			_, err := newService(false).Process(ctx, 9, lines(itemY, 3))

			appErr, ok := internal.IsAppError(err)
			Expect(ok).To(BeTrue())
			Expect(appErr.StatusCode).To(Equal(500))
			Expect(appErr.Message).NotTo(ContainSubstring(step))
			Expect(store.quantity(itemY)).To(Equal(int64(10)))
			Expect(store.orderCount()).To(BeZero())
			Expect(testutil.ToFloat64(metrics.CheckoutsTotal.WithLabelValues(observability.CheckoutFailed))).To(Equal(1.0))
		},
		Entry("lock", "lock"),
		Entry("decrement", "decrement"),
		Entry("order insert", "order"),
		Entry("order item insert", "items"),
	)

	It("rejects empty carts and invalid lines before touching storage", func() {
		_, err := newService(false).Process(ctx, 9, checkout.CheckoutDTO{})
		Expect(err).To(MatchError(internal.ErrEmptyCheckout))

		_, err = newService(true).Process(ctx, 9, lines(itemY, 1))
		appErr, _ := internal.IsAppError(err)
		Expect(appErr.Type).To(Equal(internal.ErrorTypeValidation))
		Expect(store.lockLog).To(BeEmpty())
	})

	It("never oversells under concurrent checkouts", func() {
		service := newService(false)
		const workers = 60

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			sold     int64
			rejected int
		)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			qty := int64(i%3 + 1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				_, err := service.Process(ctx, 9, lines(itemY, qty))
				mu.Lock()
				defer mu.Unlock()
				if err == nil {
					sold += qty
					return
				}
				Expect(err).To(MatchError(internal.ErrInsufficientStock))
				rejected++
			}()
		}
		wg.Wait()

		Expect(store.quantity(itemY)).To(Equal(10 - sold))
		Expect(store.quantity(itemY)).To(BeNumerically(">=", 0))
		Expect(store.orderCount()).To(Equal(workers - rejected))
		Expect(store.maxHolding[itemY]).To(Equal(1))
	})

	It("does not deadlock on overlapping carts submitted in opposite orders", func() {
		service := newService(false)
		done := make(chan struct{})
		go func() {
			defer close(done)
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(2)
				go func() { defer wg.Done(); _, _ = service.Process(ctx, 1, lines(itemZ, 1, itemY, 1)) }()
				go func() { defer wg.Done(); _, _ = service.Process(ctx, 2, lines(itemY, 1, itemZ, 1)) }()
			}
			wg.Wait()
		}()
		Eventually(done, 10*time.Second).Should(BeClosed())
	})

	It("returns the caller's history with lines, newest first", func() {
		service := newService(false)
		_, err := service.Process(ctx, 9, lines(itemY, 1))
		Expect(err).NotTo(HaveOccurred())
		_, err = service.Process(ctx, 9, lines(itemZ, 2, itemY, 1))
		Expect(err).NotTo(HaveOccurred())
		_, err = service.Process(ctx, 10, lines(itemZ, 1))
		Expect(err).NotTo(HaveOccurred())

		history, err := service.History(ctx, 9)
		Expect(err).NotTo(HaveOccurred())
		Expect(history).To(HaveLen(2))
		Expect(history[0].Items).To(HaveLen(2))
		Expect(history[1].Items).To(HaveLen(1))

		empty, err := service.History(ctx, 404)
		Expect(err).NotTo(HaveOccurred())
		Expect(empty).To(BeEmpty())
	})
})

// beLine compares an order line's item, quantity and price.
func beLine(inventoryID, quantity, price int64) OmegaMatcher {
	return And(
		HaveField("InventoryID", inventoryID),
		HaveField("Quantity", quantity),
		HaveField("Price", price),
	)
}
