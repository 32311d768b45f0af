package auth

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

type stubAuthenticator struct {
	principal *internal.Principal
	err       error
}

func (s stubAuthenticator) Authenticate(_ context.Context, token string) (*internal.Principal, error) {
	if token == "" {
		return nil, internal.ErrMissingToken
	}
	return s.principal, s.err
}

var _ = ginkgo.Describe("Auth middleware", func() {
	var reached *internal.Principal

	protected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached, _ = internal.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	serve := func(h http.Handler, token string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/inventory", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	ginkgo.BeforeEach(func() {
		reached = nil
	})

	ginkgo.It("should return 401 without a bearer token", func() {
		rec := serve(Authenticate(stubAuthenticator{})(protected), "")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
		gomega.Expect(reached).To(gomega.BeNil())
	})

	ginkgo.It("should return 401 for invalid tokens", func() {
		rec := serve(Authenticate(stubAuthenticator{err: internal.ErrInvalidToken})(protected), "bad")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusUnauthorized))
	})

	ginkgo.It("should attach the principal", func() {
		p := &internal.Principal{UserID: 7, RoleID: 3}
		rec := serve(Authenticate(stubAuthenticator{principal: p})(protected), "good")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
		gomega.Expect(reached).To(gomega.Equal(p))
	})

	ginkgo.It("should block temporary-password users behind RequirePasswordChange", func() {
		p := &internal.Principal{UserID: 7, RoleID: 1, TempPassword: true}
		rec := serve(Authenticate(stubAuthenticator{principal: p})(RequirePasswordChange(protected)), "good")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusForbidden))
		gomega.Expect(rec.Body.String()).To(gomega.ContainSubstring(string(internal.ErrCodePasswordChangeRequired)))
		gomega.Expect(reached).To(gomega.BeNil())
	})

	ginkgo.It("should let users through once the flag is cleared", func() {
		p := &internal.Principal{UserID: 7, RoleID: 1}
		rec := serve(Authenticate(stubAuthenticator{principal: p})(RequirePasswordChange(protected)), "good")

		gomega.Expect(rec.Code).To(gomega.Equal(http.StatusOK))
	})
})
