// Package metrics registers the process-wide Prometheus counters. They are a
// pure side channel: business logic increments them and never reads them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CustomerCheckPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customer_check_messages_published",
		Help: "Total number of customer check requests published.",
	})
	StockCheckPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_check_messages_published",
		Help: "Total number of stock check requests published.",
	})
	CustomerCheckResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "customer_check_responses_received",
		Help: "Total number of customer check responses delivered to a waiter.",
	})
	StockCheckResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_check_responses_received",
		Help: "Total number of stock check responses delivered to a waiter.",
	})
)
