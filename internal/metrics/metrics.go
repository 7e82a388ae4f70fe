// Package metrics registers the prometheus instruments shared across
// the ledger, gateway and HTTP layers.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MutationsApplied counts ledger mutations by kind and by whether
	// they originated locally (HTTP) or remotely (gateway).
	MutationsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabsync_ledger_mutations_total",
		Help: "Ledger mutations applied, by kind and origin.",
	}, []string{"kind", "origin"})

	// BroadcastsSent counts outbound gateway broadcasts.
	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabsync_gateway_broadcasts_total",
		Help: "Mutation messages broadcast to group rooms.",
	})

	// BridgeMessages counts redis bridge traffic by direction.
	BridgeMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tabsync_gateway_bridge_messages_total",
		Help: "Messages relayed over the cross-process bridge.",
	}, []string{"direction"})

	// ConnectedClients tracks live websocket connections.
	ConnectedClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabsync_gateway_connected_clients",
		Help: "Currently connected websocket clients.",
	})
)
