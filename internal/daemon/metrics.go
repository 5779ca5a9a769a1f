package daemon

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics are the daemon's prometheus counters, on their own registry
type Metrics struct {
	Registry       *prometheus.Registry
	TitlesParsed   prometheus.Counter
	FilesProcessed prometheus.Counter
	ParseErrors    prometheus.Counter
}

// NewMetrics creates and registers the counters
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		TitlesParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anipar_titles_parsed_total",
			Help: "Titles parsed from inbox files.",
		}),
		FilesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anipar_files_processed_total",
			Help: "Inbox files turned into reports.",
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "anipar_parse_errors_total",
			Help: "Inbox files that could not be read or parsed.",
		}),
	}
	m.Registry.MustRegister(m.TitlesParsed, m.FilesProcessed, m.ParseErrors)
	return m
}

// Handler serves the registry in the prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// serveMetrics runs a /metrics endpoint on addr until ctx is cancelled
func serveMetrics(ctx context.Context, addr string, m *Metrics) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("serving metrics")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
