package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
)

var (
    once sync.Once

    ProbesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "probe",
        Name:      "sent_total",
        Help:      "Total number of probes expressed, by kind",
    }, []string{"kind"})

    ProbeOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "probe",
        Name:      "outcomes_total",
        Help:      "Probe outcomes by kind and result (data|nack|timeout)",
    }, []string{"kind", "result"})

    ProbeRTT = prometheus.NewHistogramVec(prometheus.HistogramOpts{
        Namespace: "ndndrop",
        Subsystem: "probe",
        Name:      "rtt_seconds",
        Help:      "Round-trip time of answered or nacked probes",
        Buckets:   prometheus.ExponentialBuckets(0.001, 2, 13),
    }, []string{"kind"})

    Outstanding = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "ndndrop",
        Subsystem: "probe",
        Name:      "outstanding",
        Help:      "Probes sent and not yet resolved",
    })

    InboundProbes = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "probe",
        Name:      "inbound_total",
        Help:      "Inbound discover probes by result (served|self|malformed)",
    }, []string{"result"})

    Neighbors = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "ndndrop",
        Subsystem: "neighbor",
        Name:      "entries",
        Help:      "Current number of entries in the neighbor table",
    })

    PersistFailures = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "neighbor",
        Name:      "persist_failures_total",
        Help:      "Failed attempts to persist the neighbor table",
    })

    ResponderServed = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "server",
        Name:      "served_total",
        Help:      "Drop interests answered by the responder, by registered prefix",
    }, []string{"prefix"})

    RemoteInterests = prometheus.NewCounterVec(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "face",
        Name:      "remote_interests_total",
        Help:      "Interests received over the network face by result",
    }, []string{"result"})

    GRPCConnDials = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "grpc_conn",
        Name:      "dials_total",
        Help:      "Total number of new gRPC connections dialed",
    })
    GRPCConnReuse = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "grpc_conn",
        Name:      "reuse_total",
        Help:      "Total number of gRPC connection reuses from cache",
    })
    GRPCConnEvictions = prometheus.NewCounter(prometheus.CounterOpts{
        Namespace: "ndndrop",
        Subsystem: "grpc_conn",
        Name:      "evictions_total",
        Help:      "Total number of cached gRPC connections evicted",
    })
    GRPCConnActive = prometheus.NewGauge(prometheus.GaugeOpts{
        Namespace: "ndndrop",
        Subsystem: "grpc_conn",
        Name:      "active",
        Help:      "Number of active cached gRPC connections",
    })
)

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
    once.Do(func() {
        prometheus.MustRegister(ProbesSent)
        prometheus.MustRegister(ProbeOutcomes)
        prometheus.MustRegister(ProbeRTT)
        prometheus.MustRegister(Outstanding)
        prometheus.MustRegister(InboundProbes)
        prometheus.MustRegister(Neighbors)
        prometheus.MustRegister(PersistFailures)
        prometheus.MustRegister(ResponderServed)
        prometheus.MustRegister(RemoteInterests)
        prometheus.MustRegister(GRPCConnDials)
        prometheus.MustRegister(GRPCConnReuse)
        prometheus.MustRegister(GRPCConnEvictions)
        prometheus.MustRegister(GRPCConnActive)
    })
}
