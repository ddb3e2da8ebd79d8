package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/certforge"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Certificate metrics
	CertificatesSignedTotal metric.Int64Counter
	SigningErrorsTotal      metric.Int64Counter
	SigningDuration         metric.Float64Histogram

	// Key metrics
	KeysGeneratedTotal metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.CertificatesSignedTotal, _ = meter.Int64Counter(
		"certforge.certificates.signed",
		metric.WithDescription("Total number of certificates signed"),
		metric.WithUnit("{certificate}"),
	)

	m.SigningErrorsTotal, _ = meter.Int64Counter(
		"certforge.certificates.signing.errors",
		metric.WithDescription("Total number of failed certificate signing attempts"),
		metric.WithUnit("{error}"),
	)

	m.SigningDuration, _ = meter.Float64Histogram(
		"certforge.certificates.signing.duration",
		metric.WithDescription("Duration of signer calls"),
		metric.WithUnit("ms"),
	)

	m.KeysGeneratedTotal, _ = meter.Int64Counter(
		"certforge.keys.generated",
		metric.WithDescription("Total number of private keys generated"),
		metric.WithUnit("{key}"),
	)

	return m
}
