// Package metrics exposes Prometheus counters for the marketplace.
package metrics

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// OrdersCreated counts orders placed at checkout.
	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_orders_created_total",
		Help: "Orders created at checkout.",
	})

	// OrdersExpired counts pending orders rejected by the deadline sweep.
	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_orders_expired_total",
		Help: "Pending orders auto-rejected after the acceptance deadline.",
	})

	// GateChecks counts balance-gate decisions by outcome.
	GateChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_gate_checks_total",
		Help: "Balance-gate decisions by outcome.",
	}, []string{"outcome"})

	// OTPRequests counts one-time code requests.
	OTPRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atelier_otp_requests_total",
		Help: "One-time code requests.",
	})

	// ChatMessages counts order chat messages by sender role.
	ChatMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_chat_messages_total",
		Help: "Order chat messages by sender role.",
	}, []string{"sender"})
)

// GateOutcome records a gate decision.
func GateOutcome(allowed bool) {
	outcome := "blocked"
	if allowed {
		outcome = "allowed"
	}
	GateChecks.WithLabelValues(outcome).Inc()
}

// Handler serves the Prometheus scrape endpoint through Fiber.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
