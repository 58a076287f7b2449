package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gorilla/websocket"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/proxy-sentinel/internal/handler"
	"github.com/angeloszaimis/proxy-sentinel/internal/proxy"
)

type fakeChecker struct {
	latest proxy.HealthSummary
	next   proxy.HealthSummary
	err    error
	calls  int
}

func (f *fakeChecker) Latest() proxy.HealthSummary { return f.latest }

func (f *fakeChecker) CheckNow(context.Context) (proxy.HealthSummary, error) {
	f.calls++
	if f.err != nil {
		return proxy.HealthSummary{}, f.err
	}
	f.latest = f.next
	return f.next, nil
}

var _ = Describe("Handler", func() {
	var (
		checker *fakeChecker
		log     *slog.Logger
		target  proxy.Target
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
		target = proxy.Target{Port: 1081, ContainerName: "proxy-a", Description: "A"}
		checker = &fakeChecker{
			latest: proxy.Empty(),
			next:   proxy.NewSummary([]proxy.Verdict{proxy.OK(target, "9.9.9.9", 42)}, 1),
		}
	})

	Describe("StatusHandler", func() {
		var h *handler.StatusHandler

		BeforeEach(func() {
			h = handler.NewStatusHandler(log, checker)
		})

		It("should serve the default summary before any check", func() {
			w := httptest.NewRecorder()
			h.Status(w, httptest.NewRequest(http.MethodGet, "/status", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Header().Get("Content-Type")).To(Equal("application/json"))
			Expect(w.Body.String()).To(MatchJSON(`{"summary":"","working":[],"failed":[]}`))
			Expect(checker.calls).To(BeZero())
		})

		It("should run a check and serve its summary", func() {
			w := httptest.NewRecorder()
			h.Check(w, httptest.NewRequest(http.MethodPost, "/check", nil))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(checker.calls).To(Equal(1))

			var summary proxy.HealthSummary
			Expect(json.Unmarshal(w.Body.Bytes(), &summary)).To(Succeed())
			Expect(summary.Summary).To(Equal("1/1 proxies working"))
			Expect(summary.Working[0].IP).To(Equal("9.9.9.9"))
		})

		It("should serve the checked summary from status afterwards", func() {
			h.Check(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/check", nil))

			w := httptest.NewRecorder()
			h.Status(w, httptest.NewRequest(http.MethodGet, "/status", nil))
			Expect(w.Body.String()).To(ContainSubstring("1/1 proxies working"))
		})

		It("should answer a failed check with a generic server error", func() {
			checker.err = errors.New("health check failed: boom")

			w := httptest.NewRecorder()
			h.Check(w, httptest.NewRequest(http.MethodPost, "/check", nil))

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(w.Body.String()).To(MatchJSON(`{"error":"An error occurred during the health check."}`))
		})
	})

	Describe("Stream", func() {
		var (
			stream *handler.Stream
			server *httptest.Server
			conn   *websocket.Conn
		)

		BeforeEach(func() {
			stream = handler.NewStream(log, checker)
			server = httptest.NewServer(stream)

			var err error
			conn, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			conn.Close()
			server.Close()
		})

		It("should send the latest summary on connect and each published one", func() {
			var first proxy.HealthSummary
			Expect(conn.ReadJSON(&first)).To(Succeed())
			Expect(first.Summary).To(BeEmpty())

			Eventually(stream.Clients).Should(Equal(1))
			stream.Publish(checker.next)

			var second proxy.HealthSummary
			Expect(conn.ReadJSON(&second)).To(Succeed())
			Expect(second.Summary).To(Equal("1/1 proxies working"))
		})

		It("should forget clients that disconnect", func() {
			Eventually(stream.Clients).Should(Equal(1))
			conn.Close()
			Eventually(stream.Clients).Should(BeZero())
		})
	})
})
