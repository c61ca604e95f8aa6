package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/mikey/outreach-tracker/internal/adapters/store"
	"github.com/mikey/outreach-tracker/internal/config"
	"github.com/mikey/outreach-tracker/internal/core"
	httpserver "github.com/mikey/outreach-tracker/internal/http"
	"github.com/mikey/outreach-tracker/internal/http/handler"
	"github.com/mikey/outreach-tracker/internal/whitelist"
)

var _ = Describe("Server", func() {
	var (
		ctx      context.Context
		contacts *store.MemoryStore
		server   *httpserver.Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		logger := zap.NewNop()
		contacts = store.NewMemoryStore(logger)
		Expect(contacts.Upsert(ctx, &core.TrackedContact{Email: "bride@example.com", Status: "sent"})).To(Succeed())

		tracking := core.NewTrackingService(contacts, contacts, logger)
		h := handler.NewTrackingHandler(tracking, whitelist.NewChecker([]string{"caterer.example"}, logger), logger)
		server = httpserver.NewServer(config.ServerConfig{
			ListenAddress: "127.0.0.1:0",
			Mode:          gin.TestMode,
		}, h, logger)
	})

	It("counts opens through the full stack", func() {
		req := httptest.NewRequest(http.MethodGet, "/track/open/Bride@Example.com", nil)
		w := httptest.NewRecorder()

		server.Handler().ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusOK))
		c, err := contacts.GetByEmail(ctx, "bride@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.SeenCount).To(Equal(1))
	})

	It("blocks redirects outside the allow-list", func() {
		req := httptest.NewRequest(http.MethodGet, "/track/click/bride@example.com?url=https%3A%2F%2Fevil.example", nil)
		w := httptest.NewRecorder()

		server.Handler().ServeHTTP(w, req)

		Expect(w.Code).To(Equal(http.StatusBadRequest))
		c, err := contacts.GetByEmail(ctx, "bride@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(c.ClickCount).To(BeZero())
	})

	It("listens and shuts down", func() {
		Expect(server.Start()).To(Succeed())
		Expect(server.Start()).NotTo(Succeed())

		resp, err := http.Get("http://" + server.Addr().String() + "/health")
		Expect(err).NotTo(HaveOccurred())
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))

		var health map[string]any
		Expect(json.Unmarshal(body, &health)).To(Succeed())
		Expect(health["status"]).To(Equal("healthy"))

		Expect(server.Stop(ctx)).To(Succeed())
		Expect(server.Addr()).To(BeNil())
	})
})
