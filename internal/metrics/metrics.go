package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bus_tracker/internal/models"
)

type Collector struct {
	reg *prometheus.Registry

	Pings           *prometheus.CounterVec // outcome label
	PingDuration    prometheus.Histogram
	StageChanges    *prometheus.CounterVec // stage label
	Decisions       *prometheus.CounterVec // status label
	GatewayCalls    *prometheus.CounterVec // purpose, result labels
	GatewayDuration *prometheus.HistogramVec

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	FleetCacheHits   prometheus.Counter
	FleetCacheMisses prometheus.Counter

	WebsocketClients prometheus.Gauge
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Pings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_pings_total",
			Help: "Location pings processed, by outcome.",
		}, []string{"outcome"}),
		PingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_ping_duration_seconds",
			Help:    "Time to process one location ping, gateway calls included.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		StageChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_stage_transitions_total",
			Help: "Stage transitions, by new stage.",
		}, []string{"stage"}),
		Decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_application_decisions_total",
			Help: "Approved and rejected applications.",
		}, []string{"status"}),
		GatewayCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_directions_calls_total",
			Help: "Directions gateway calls, by purpose and result.",
		}, []string{"purpose", "result"}),
		GatewayDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tracker_directions_duration_seconds",
			Help:    "Directions gateway latency.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"purpose"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		FleetCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_fleet_cache_hits_total",
			Help: "Fleet view reads served from cache.",
		}),
		FleetCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_fleet_cache_misses_total",
			Help: "Fleet view reads that went to the store.",
		}),
		WebsocketClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_websocket_clients",
			Help: "Connected live fleet feed clients.",
		}),
	}

	// Register
	reg.MustRegister(
		c.Pings, c.PingDuration, c.StageChanges, c.Decisions,
		c.GatewayCalls, c.GatewayDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.FleetCacheHits, c.FleetCacheMisses, c.WebsocketClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

func (c *Collector) ObservePing(outcome string, d time.Duration) {
	c.Pings.WithLabelValues(outcome).Inc()
	c.PingDuration.Observe(d.Seconds())
}

func (c *Collector) ObserveGateway(purpose string, d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.GatewayCalls.WithLabelValues(purpose, result).Inc()
	c.GatewayDuration.WithLabelValues(purpose).Observe(d.Seconds())
}

func (c *Collector) StageTransition(to models.Stage) {
	c.StageChanges.WithLabelValues(string(to)).Inc()
}

func (c *Collector) ApplicationDecided(status models.ServiceStatus) {
	c.Decisions.WithLabelValues(string(status)).Inc()
}

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }

func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
		return
	}
	c.NATSConnected.Set(0)
}

func (c *Collector) FleetCacheHit(hit bool) {
	if hit {
		c.FleetCacheHits.Inc()
		return
	}
	c.FleetCacheMisses.Inc()
}

func (c *Collector) WebsocketClientsSet(n int) { c.WebsocketClients.Set(float64(n)) }
