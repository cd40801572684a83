// metrics/metrics.go
// Package metrics exposes the traffic window and the probe's drop counters
// in Prometheus format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"nfstraffic/probe"
	"nfstraffic/window"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "nfstraffic"

// series are keyed by inode so a file that gets named later keeps its
// series; the name is joined in from nfstraffic_file_info
var fileLabels = []string{"uid", "client", "ino"}

var (
	readRequestsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "read_requests_total"),
		"NFS read operations by user, client and file.", fileLabels, nil)
	readBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "read_bytes_total"),
		"Bytes requested by NFS reads by user, client and file.", fileLabels, nil)
	writeRequestsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "write_requests_total"),
		"NFS write operations by user, client and file.", fileLabels, nil)
	writeBytesDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "write_bytes_total"),
		"Payload bytes of NFS writes by user, client and file.", fileLabels, nil)

	rejectedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "table", "rejected_total"),
		"Counter updates dropped because the aggregation table was full.", nil, nil)
	droppedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "events", "dropped_total"),
		"Filename events dropped because the event channel was full.", nil, nil)
	suppressedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "events", "suppressed_total"),
		"Filename events skipped by the recency filter.", nil, nil)
	abortedDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "invocations", "aborted_total"),
		"Hook invocations stopped on a missing dentry or inode.", nil, nil)
	fileInfoDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "file", "info"),
		"Last known path of an inode, always 1.", []string{"ino", "path"}, nil)
	bucketsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "table", "buckets"),
		"Buckets currently held in the aggregation table.", nil, nil)
)

// Exporter is a prometheus.Collector reading from a traffic window.
type Exporter struct {
	window *window.Window
}

// NewExporter returns an exporter over w.
func NewExporter(w *window.Window) *Exporter {
	return &Exporter{window: w}
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		readRequestsDesc, readBytesDesc, writeRequestsDesc, writeBytesDesc,
		fileInfoDesc, rejectedDesc, droppedDesc, suppressedDesc, abortedDesc, bucketsDesc,
	} {
		ch <- d
	}
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	named := make(map[uint64]struct{})
	for _, row := range e.window.Files(false, window.Filter{}, 0) {
		ino := strconv.FormatUint(row.Key.Ino, 10)
		labels := []string{
			strconv.FormatUint(uint64(row.Key.UID), 10),
			probe.FormatIPv4(row.Key.IPv4),
			ino,
		}
		counter(ch, readRequestsDesc, row.Stats.ReadRequests, labels...)
		counter(ch, readBytesDesc, row.Stats.ReadBytes, labels...)
		counter(ch, writeRequestsDesc, row.Stats.WriteRequests, labels...)
		counter(ch, writeBytesDesc, row.Stats.WriteBytes, labels...)

		if _, done := named[row.Key.Ino]; done {
			continue
		}
		if path, ok := e.window.Path(row.Key.Ino); ok {
			named[row.Key.Ino] = struct{}{}
			ch <- prometheus.MustNewConstMetric(fileInfoDesc, prometheus.GaugeValue, 1, ino, path)
		}
	}

	s := e.window.Summary()
	counter(ch, rejectedDesc, s.Probe.Rejected)
	counter(ch, droppedDesc, s.Probe.Dropped)
	counter(ch, suppressedDesc, s.Probe.Suppressed)
	counter(ch, abortedDesc, s.Probe.Aborted)
	ch <- prometheus.MustNewConstMetric(bucketsDesc, prometheus.GaugeValue, float64(s.Buckets))
}

func counter(ch chan<- prometheus.Metric, d *prometheus.Desc, v uint64, labels ...string) {
	ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
}

// Serve exposes /metrics on addr until ctx is canceled.
func Serve(ctx context.Context, addr string, e *Exporter, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	if err := reg.Register(e); err != nil {
		return fmt.Errorf("register exporter: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	logger.Info("serving metrics", zap.String("addr", addr))

	select {
	case err := <-errc:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	return nil
}
