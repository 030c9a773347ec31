package metrics_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/jsonlog/internal/metrics"
)

var _ = Describe("Handler", func() {
	It("should serve the snapshot as JSON", func() {
		m := metrics.NewMetrics()
		m.RecordDrop(metrics.DropOverflow)
		m.RecordWrite(0)

		handler := metrics.Handler(func() metrics.Snapshot {
			snap := m.Snapshot()
			snap.QueueCapacity = 16
			return snap
		})

		rec := httptest.NewRecorder()
		handler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

		var body map[string]any
		Expect(json.Unmarshal(rec.Body.Bytes(), &body)).To(Succeed())
		Expect(body["written"]).To(BeNumerically("==", 1))
		Expect(body["dropped"]).To(BeNumerically("==", 1))
		Expect(body["queue_capacity"]).To(BeNumerically("==", 16))
		Expect(body["dropped_by_reason"]).To(HaveKeyWithValue("overflow", BeNumerically("==", 1)))
	})
})
