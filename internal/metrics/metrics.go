// Package metrics exports nurdbar's Prometheus collectors. A nil *Bar is
// valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nurdbar"

// Bar records scan, ledger, and HTTP activity.
type Bar struct {
	scans        *prometheus.CounterVec
	transactions *prometheus.CounterVec
	outOfStock   prometheus.Counter
	opDuration   *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
}

// New registers the bar metrics on the provided registerer.
func New(reg prometheus.Registerer) *Bar {
	if reg == nil {
		return &Bar{}
	}
	scans := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scans_total",
		Help:      "Scanned barcodes by classification.",
	}, []string{"type"})
	transactions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Committed ledger transactions by kind.",
	}, []string{"kind"})
	outOfStock := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "out_of_stock_total",
		Help:      "Takes rejected for insufficient stock.",
	})
	opDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "ledger_operation_duration_seconds",
		Help:      "Duration of ledger operations in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "result"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Operator API requests by method, route, and status.",
	}, []string{"method", "route", "status"})
	reg.MustRegister(scans, transactions, outOfStock, opDuration, httpRequests)
	return &Bar{
		scans:        scans,
		transactions: transactions,
		outOfStock:   outOfStock,
		opDuration:   opDuration,
		httpRequests: httpRequests,
	}
}

// IncScan counts a scan classified as typ.
func (b *Bar) IncScan(typ string) {
	if b == nil || b.scans == nil {
		return
	}
	b.scans.WithLabelValues(normalizeLabel(typ)).Inc()
}

// AddTransactions counts n committed transactions of kind.
func (b *Bar) AddTransactions(kind string, n int) {
	if b == nil || b.transactions == nil || n <= 0 {
		return
	}
	b.transactions.WithLabelValues(normalizeLabel(kind)).Add(float64(n))
}

// IncOutOfStock counts a take rejected for insufficient stock.
func (b *Bar) IncOutOfStock() {
	if b == nil || b.outOfStock == nil {
		return
	}
	b.outOfStock.Inc()
}

// ObserveOperation records how long a ledger operation took.
func (b *Bar) ObserveOperation(op string, d time.Duration, err error) {
	if b == nil || b.opDuration == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	b.opDuration.WithLabelValues(normalizeLabel(op), result).Observe(d.Seconds())
}

// IncHTTPRequest counts an operator API request.
func (b *Bar) IncHTTPRequest(method, route string, status int) {
	if b == nil || b.httpRequests == nil {
		return
	}
	b.httpRequests.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
