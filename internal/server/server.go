// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"mspro-labs/coffee-prices/internal/models"
	"mspro-labs/coffee-prices/internal/publisher"
)

// Runner produces one report per call.
type Runner interface {
	Run(ctx context.Context) (models.PriceReport, error)
}

// Server answers /api/prices by running the pipeline and /prices.json from
// the static artifact.
//
// Every /api/prices request launches its own browser. Requests are not
// queued or coalesced.
type Server struct {
	Addr         string
	Runner       Runner
	ArtifactPath string
	Logger       *slog.Logger
}

// Handler returns the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/prices", s.handlePrices)
	mux.HandleFunc("/prices.json", s.handleArtifact)
	return withCORS(mux)
}

func (s *Server) handlePrices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.Logger.Info("received price request", "remote", r.RemoteAddr)
	report, err := s.Runner.Run(r.Context())
	if err != nil {
		s.Logger.Error("price request failed", "err", err)
		if werr := publisher.WriteError(w, err); werr != nil {
			s.Logger.Warn("failed to write error response", "err", werr)
		}
		return
	}
	if err := (publisher.ResponseSink{W: w}).Publish(r.Context(), report); err != nil {
		s.Logger.Warn("failed to write response", "err", err)
	}
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(s.ArtifactPath); err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeFile(w, r, s.ArtifactPath)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:        s.Addr,
		Handler:     s.Handler(),
		ReadTimeout: 5 * time.Second,
		// A live request covers browser launch, a 60s navigation, the
		// download window and parsing.
		WriteTimeout: 3 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.Logger.Info("server running", "addr", s.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
