package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Connections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "realtime_active_connections",
		Help: "Active websocket connections",
	})
	EventsPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_events_published_total",
		Help: "Events handed to the dispatcher",
	})
	EventsPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_events_pushed_total",
		Help: "Events delivered over a live socket",
	})
	EventsQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_events_queued_total",
		Help: "Events appended to a pending poll queue",
	})
	EventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_events_dropped_total",
		Help: "Events dropped from a full pending queue",
	})
	PollDrains = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "realtime_poll_drains_total",
		Help: "Drain calls served by the polling adapter",
	})
)

func Init() {
	prometheus.MustRegister(Connections, EventsPublished, EventsPushed,
		EventsQueued, EventsDropped, PollDrains)
}

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
