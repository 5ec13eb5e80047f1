package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	encodedParts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formwire",
			Subsystem: "encode",
			Name:      "parts_total",
			Help:      "Parts written by the eager encoder.",
		},
		[]string{"kind"},
	)
	encodedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "formwire",
			Subsystem: "encode",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes written by the eager encoder.",
		},
	)
	decodedEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "formwire",
			Subsystem: "decode",
			Name:      "entries_total",
			Help:      "Entries yielded by decoders.",
		},
	)
	decodedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "formwire",
			Subsystem: "decode",
			Name:      "payload_bytes_total",
			Help:      "Payload bytes handed to entry readers.",
		},
	)
	decodeFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "formwire",
			Subsystem: "decode",
			Name:      "failures_total",
			Help:      "Fatal decode failures by reason.",
		},
		[]string{"reason"},
	)
)

// Register installs the codec metrics on the default registry. Safe to
// call from multiple hosts; only the first call registers.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			encodedParts,
			encodedBytes,
			decodedEntries,
			decodedBytes,
			decodeFailures,
		)
	})
}

// ObserveEncodedPart records one written part. kind is "text" or "stream".
func ObserveEncodedPart(kind string, payloadBytes int64) {
	Register()
	encodedParts.WithLabelValues(kind).Inc()
	encodedBytes.Add(float64(payloadBytes))
}

// ObserveDecodedEntry records one entry whose payload reached end of data.
func ObserveDecodedEntry(payloadBytes int64) {
	Register()
	decodedEntries.Inc()
	decodedBytes.Add(float64(payloadBytes))
}

// ObserveDecodeFailure records a fatal decode failure.
func ObserveDecodeFailure(reason string) {
	Register()
	decodeFailures.WithLabelValues(reason).Inc()
}
