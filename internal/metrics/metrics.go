package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics счётчики ядра и HTTP-слоя
type Metrics struct {
	Orders        *prometheus.CounterVec // итоги переходов жизненного цикла
	StockRefusals prometheus.Counter     // отказы резерва по нехватке остатка
	Requests      *prometheus.CounterVec
	LatencyMS     *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	orders := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "orders_total",
		Help:      "Order lifecycle transitions by outcome.",
	}, []string{"outcome"})
	refusals := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stock_refusals_total",
		Help:      "Placements refused due to insufficient stock.",
	})
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"handler"})

	prometheus.MustRegister(orders, refusals, requests, latency)
	return &Metrics{Orders: orders, StockRefusals: refusals, Requests: requests, LatencyMS: latency}
}

// OrderOutcome инкремент счётчика исходов; безопасен при нулевом приёмнике,
// чтобы сервисы в тестах не тянули регистрацию метрик
func (m *Metrics) OrderOutcome(outcome string) {
	if m == nil {
		return
	}
	m.Orders.WithLabelValues(outcome).Inc()
}

func (m *Metrics) StockRefusal() {
	if m == nil {
		return
	}
	m.StockRefusals.Inc()
}

func (m *Metrics) ObserveRequest(handler string, status int, started time.Time) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(handler, strconv.Itoa(status)).Inc()
	m.LatencyMS.WithLabelValues(handler).Observe(float64(time.Since(started).Milliseconds()))
}

// Handler эндпоинт /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}
