package inventory_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/core/storage/sqlitetest"
	"github.com/frahmantamala/inventory-checkout/internal/inventory"
	inventoryPostgres "github.com/frahmantamala/inventory-checkout/internal/inventory/postgres"
	"github.com/frahmantamala/inventory-checkout/internal/transport"
	"github.com/go-chi/chi"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Inventory Handler", func() {
	var router *chi.Mux

	BeforeEach(func() {
		db, err := sqlitetest.Open()
		Expect(err).NotTo(HaveOccurred())
		service := inventory.NewService(inventoryPostgres.NewInventoryRepository(db), quietLogger())
		handler := inventory.NewHandler(transport.NewBaseHandler(quietLogger()), service)

		router = chi.NewRouter()
		router.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				ctx := internal.ContextWithPrincipal(r.Context(), &internal.Principal{UserID: 5, RoleID: 2})
				next.ServeHTTP(w, r.WithContext(ctx))
			})
		})
		router.Get("/inventory", handler.ListItems)
		router.Post("/inventory", handler.CreateItem)
		router.Get("/inventory/{id}", handler.GetItem)
		router.Put("/inventory/{id}", handler.UpdateItem)
		router.Delete("/inventory/{id}", handler.DeleteItem)
	})

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	It("runs the item lifecycle", func() {
		rec := do(http.MethodPost, "/inventory", `{"name":"Widget","price":200,"quantity":10,"sku":"W-1"}`)
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var created inventory.Item
		Expect(json.Unmarshal(rec.Body.Bytes(), &created)).To(Succeed())
		Expect(created.CreatedBy).To(HaveValue(Equal(int64(5))))

		rec = do(http.MethodPut, "/inventory/1", `{"quantity":7}`)
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring(`"quantity":7`))

		rec = do(http.MethodGet, "/inventory?search=widg", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		var list inventory.ItemsResponse
		Expect(json.Unmarshal(rec.Body.Bytes(), &list)).To(Succeed())
		Expect(list.Items).To(HaveLen(1))

		Expect(do(http.MethodDelete, "/inventory/1", "").Code).To(Equal(http.StatusNoContent))
		Expect(do(http.MethodGet, "/inventory/1", "").Code).To(Equal(http.StatusNotFound))
	})

	It("rejects invalid items with field errors", func() {
		rec := do(http.MethodPost, "/inventory", `{"name":"","price":0,"quantity":-1,"sku":"W"}`)
		Expect(rec.Code).To(Equal(http.StatusBadRequest))
		body := rec.Body.String()
		Expect(body).To(ContainSubstring(`"price"`))
		Expect(body).To(ContainSubstring(`"quantity"`))
	})

	It("rejects duplicate SKUs with 409", func() {
		Expect(do(http.MethodPost, "/inventory", `{"name":"A","price":1,"quantity":1,"sku":"DUP"}`).Code).To(Equal(http.StatusCreated))
		Expect(do(http.MethodPost, "/inventory", `{"name":"B","price":1,"quantity":1,"sku":"DUP"}`).Code).To(Equal(http.StatusConflict))
	})

	It("rejects malformed paging", func() {
		Expect(do(http.MethodGet, "/inventory?limit=abc", "").Code).To(Equal(http.StatusBadRequest))
	})
})
