// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Device stream
	linesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postmon_device_lines_total",
		Help: "Total number of lines read from the device",
	})

	decodedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postmon_decoded_codes_total",
		Help: "Decoded post codes by flavor and severity",
	}, []string{"flavor", "severity"})

	deviceConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "postmon_device_connected",
		Help: "Whether a device session is streaming (1) or not (0)",
	})

	disconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postmon_device_disconnects_total",
		Help: "Device session ends by reason",
	}, []string{"reason"}) // reason=requested|stream_error

	connectFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postmon_device_connect_failures_total",
		Help: "Failed connect attempts by handshake stage",
	}, []string{"stage"})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postmon_device_commands_total",
		Help: "Reconfiguration commands sent to the device by outcome",
	}, []string{"outcome"}) // outcome=success|failure

	// Catalog + metadata
	catalogDefinitions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "postmon_catalog_definitions",
		Help: "Definitions in the published catalog by list",
	}, []string{"list"}) // list=post_codes|error_masks|os_errors

	metaSyncTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postmon_meta_sync_total",
		Help: "Metadata sync runs by outcome",
	}, []string{"outcome"}) // outcome=updated|skipped|failed

	metaDownloadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postmon_meta_download_failures_total",
		Help: "Catalog files that failed to download",
	})

	// Status mirror
	statusWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postmon_status_mirror_errors_total",
		Help: "Failed status mirror writes",
	})
)

// IncLine records one device line.
func IncLine() { linesTotal.Inc() }

// RecordDecoded records one decoded code.
func RecordDecoded(flavor, severity string) {
	decodedTotal.WithLabelValues(flavor, severity).Inc()
}

func SetDeviceConnected(connected bool) {
	if connected {
		deviceConnected.Set(1)
		return
	}
	deviceConnected.Set(0)
}

// RecordDisconnect records the end of a session.
func RecordDisconnect(streamError bool) {
	reason := "requested"
	if streamError {
		reason = "stream_error"
	}
	disconnectsTotal.WithLabelValues(reason).Inc()
}

func RecordConnectFailure(stage string) {
	connectFailuresTotal.WithLabelValues(stage).Inc()
}

func RecordCommand(ok bool) {
	commandsTotal.WithLabelValues(outcome(ok)).Inc()
}

// SetCatalogCounts publishes the size of the current catalog.
func SetCatalogCounts(postCodes, errorMasks, osErrors int) {
	catalogDefinitions.WithLabelValues("post_codes").Set(float64(postCodes))
	catalogDefinitions.WithLabelValues("error_masks").Set(float64(errorMasks))
	catalogDefinitions.WithLabelValues("os_errors").Set(float64(osErrors))
}

// RecordSync records one sync run. outcome is updated, skipped or failed.
func RecordSync(outcome string, failedDownloads int) {
	metaSyncTotal.WithLabelValues(outcome).Inc()
	metaDownloadFailures.Add(float64(failedDownloads))
}

func IncStatusWriteError() { statusWriteErrors.Inc() }

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
