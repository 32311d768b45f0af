package notification_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/frahmantamala/inventory-checkout/internal"
	"github.com/frahmantamala/inventory-checkout/internal/notification"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func mailConfig(provider, token string) internal.MailConfig {
	return internal.MailConfig{
		Provider:            provider,
		From:                "no-reply@shop.example.com",
		PostmarkServerToken: token,
	}
}

var _ = Describe("PostmarkMailer", func() {
	var (
		server   *httptest.Server
		received map[string]interface{}
		token    string
		reply    string
	)

	BeforeEach(func() {
		received = nil
		reply = `{"ErrorCode":0,"Message":"OK","MessageID":"abc","To":"ana@example.com"}`
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token = r.Header.Get("X-Postmark-Server-Token")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &received)
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, reply)
		}))
		DeferCleanup(server.Close)
	})

	newMailer := func() *notification.PostmarkMailer {
		m, err := notification.NewPostmarkMailer("server-token", "account-token", "no-reply@shop.example.com")
		Expect(err).NotTo(HaveOccurred())
		return m.WithBaseURL(server.URL)
	}

	It("posts the message with the server token", func() {
		err := newMailer().Send(context.Background(), notification.Message{
			To:       "ana@example.com",
			Subject:  "Hello",
			TextBody: "body",
			Tag:      "welcome",
		})

		Expect(err).NotTo(HaveOccurred())
		Expect(token).To(Equal("server-token"))
		Expect(received).To(HaveKeyWithValue("To", "ana@example.com"))
		Expect(received).To(HaveKeyWithValue("From", "no-reply@shop.example.com"))
		Expect(received).To(HaveKeyWithValue("Tag", "welcome"))
	})

	It("surfaces API level errors", func() {
		reply = `{"ErrorCode":300,"Message":"Invalid email request"}`

		err := newMailer().Send(context.Background(), notification.Message{To: "x@example.com", Subject: "s"})

		Expect(err).To(MatchError(notification.ErrSendFailed))
		Expect(err).To(MatchError(ContainSubstring("Invalid email request")))
	})

	It("refuses messages without a recipient", func() {
		err := newMailer().Send(context.Background(), notification.Message{Subject: "s"})

		Expect(err).To(MatchError(notification.ErrSendFailed))
		Expect(received).To(BeNil())
	})
})
