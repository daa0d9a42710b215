package prometheus

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	taroAuth "github.com/MrEthical07/taroAuth"
	"github.com/MrEthical07/taroAuth/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() taroAuth.MetricsSnapshot
	AuditDropped() uint64
	ExpiryQueueDropped() uint64
}

// PrometheusExporter renders engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine.
func NewPrometheusExporter(engine *taroAuth.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource reads from any snapshot source.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler streams the exposition straight into the response.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = p.WriteTo(w)
	})
}

// Render returns the exposition as a string.
func (p *PrometheusExporter) Render() string {
	var b strings.Builder
	_, _ = p.WriteTo(&b)
	return b.String()
}

// WriteTo writes the current metrics to w. Nothing is written when metrics
// are disabled and nothing was dropped.
func (p *PrometheusExporter) WriteTo(w io.Writer) (int64, error) {
	if p == nil || p.source == nil {
		return 0, nil
	}

	snap := p.source.MetricsSnapshot()
	auditDropped := p.source.AuditDropped()
	expiryDropped := p.source.ExpiryQueueDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && auditDropped == 0 && expiryDropped == 0 {
		return 0, nil
	}

	cw := &countingWriter{w: bufio.NewWriterSize(w, 4096)}
	for _, def := range internaldefs.CounterDefs {
		counter(cw, def.Name, def.Help, snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		histogram(cw, def.Name, def.Help, internaldefs.NormalizeBuckets(snap.Histograms[def.ID]))
	}
	counter(cw, internaldefs.AuditDroppedName, internaldefs.AuditDroppedHelp, auditDropped)
	counter(cw, internaldefs.ExpiryQueueDroppedName, internaldefs.ExpiryQueueDroppedHelp, expiryDropped)

	if cw.err == nil {
		cw.err = cw.w.Flush()
	}
	return cw.n, cw.err
}

func counter(w *countingWriter, name, help string, v uint64) {
	w.printf("# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, escapeHelp(help), name, name, v)
}

func histogram(w *countingWriter, name, help string, raw [8]uint64) {
	cumulative := internaldefs.CumulativeBuckets(raw)
	w.printf("# HELP %s %s\n# TYPE %s histogram\n", name, escapeHelp(help), name)
	for i, le := range internaldefs.HistogramBounds {
		w.printf("%s_bucket{le=%q} %d\n", name, le, cumulative[i])
	}
	// Only bucket counts are kept, so the sum is not tracked.
	w.printf("%s_count %d\n%s_sum 0\n", name, cumulative[len(cumulative)-1], name)
}

var helpEscaper = strings.NewReplacer(`\`, `\\`, "\n", `\n`)

func escapeHelp(help string) string {
	return helpEscaper.Replace(help)
}

// countingWriter remembers the first error so callers write unconditionally.
type countingWriter struct {
	w   *bufio.Writer
	n   int64
	err error
}

func (c *countingWriter) printf(format string, args ...any) {
	if c.err != nil {
		return
	}
	n, err := fmt.Fprintf(c.w, format, args...)
	c.n += int64(n)
	c.err = err
}
