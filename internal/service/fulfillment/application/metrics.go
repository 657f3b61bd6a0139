// internal/service/fulfillment/application/metrics.go
package application

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	itemsProvisionedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_items_provisioned_total",
		Help: "Number of order item provisioning attempts by outcome.",
	}, []string{"result"})

	ordersProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_orders_processed_total",
		Help: "Number of orchestrator runs by derived fulfillment status.",
	}, []string{"fulfillment_status"})

	escalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_escalations_total",
		Help: "Number of escalation channel sends by channel and outcome.",
	}, []string{"channel", "outcome"})
)
