package checkout_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/checkout"
	inventoryDatamodel "github.com/frahmantamala/inventory-checkout/internal/core/datamodel/inventory"
	"github.com/frahmantamala/inventory-checkout/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Checkout Handler", func() {
	var (
		router *chi.Mux
		store  *memoryStore
	)

	BeforeEach(func() {
		store = newMemoryStore(
			inventoryDatamodel.Item{ID: 1, Name: "Widget", SKU: "W", Price: 250, Quantity: 4},
		)
		service := checkout.NewService(store, nil, nil, checkout.Options{TransactionTimeout: time.Second}, quietLogger())
		handler := checkout.NewHandler(transport.NewBaseHandler(quietLogger()), service)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := internal.ContextWithPrincipal(r.Context(), &internal.Principal{UserID: 7, RoleID: 3})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		})
		router.Post("/checkout", handler.ProcessCheckout)
		router.Get("/checkout/history", handler.History)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("creates an order for the caller and lists it in history", func() {
		rec := do(http.MethodPost, "/checkout", `{"items":[{"inventory_id":1,"quantity":3}]}`)

		Expect(rec.Code).To(Equal(http.StatusCreated))
		var order checkout.Order
		Expect(json.Unmarshal(rec.Body.Bytes(), &order)).To(Succeed())
		Expect(order.UserID).To(Equal(int64(7)))
		Expect(order.Total).To(Equal(int64(750)))
		Expect(store.quantity(1)).To(Equal(int64(1)))

		rec = do(http.MethodGet, "/checkout/history", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		var history checkout.HistoryResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &history)).To(Succeed())
		Expect(history.Orders).To(HaveLen(1))
		Expect(history.Orders[0].Items).To(HaveLen(1))
	})

	It("answers 409 with the item details when stock is short", func() {
		rec := do(http.MethodPost, "/checkout", `{"items":[{"inventory_id":1,"quantity":5}]}`)

		Expect(rec.Code).To(Equal(http.StatusConflict))
		body := rec.Body.String()
		Expect(body).To(ContainSubstring(`"INSUFFICIENT_STOCK"`))
		Expect(body).To(ContainSubstring(`"available":4`))
		Expect(store.quantity(1)).To(Equal(int64(4)))
	})

	It("rejects an empty cart with 400", func() {
		rec := do(http.MethodPost, "/checkout", `{"items":[]}`)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
	})

	It("rejects lines with non-positive quantities", func() {
		rec := do(http.MethodPost, "/checkout", `{"items":[{"inventory_id":1,"quantity":0}]}`)

		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		Expect(store.orderCount()).To(BeZero())
	})

	It("returns an empty list when the caller has no orders", func() {
		rec := do(http.MethodGet, "/checkout/history", "")

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"orders":[]`))
	})
})
