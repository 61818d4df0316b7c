// Package httpapi binds the reservation engine's operations to HTTP: a
// plain http.ServeMux and a Start helper that shuts the server down on
// context cancellation.
package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/tablekeep/reservation-engine/internal/availability"
	"github.com/tablekeep/reservation-engine/internal/idempotency"
	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/reservation"
	"github.com/tablekeep/reservation-engine/internal/store"
)

type Server struct {
	Reservation  *reservation.Service
	Availability *availability.Service
	Idempotency  *idempotency.Layer
	Store        store.Store
	Log          *slog.Logger
}

func New(res *reservation.Service, avail *availability.Service, idem *idempotency.Layer, st store.Store, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{Reservation: res, Availability: avail, Idempotency: idem, Store: st, Log: log}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /availability", s.handleAvailability)
	mux.HandleFunc("POST /reservations", s.handleCreate)
	mux.HandleFunc("PATCH /reservations/{id}", s.handleUpdate)
	mux.HandleFunc("DELETE /reservations/{id}", s.handleCancel)
	mux.HandleFunc("GET /reservations/day", s.handleDayView)
	mux.HandleFunc("POST /reservations/{id}/approve", s.handleApprove)
	mux.HandleFunc("POST /reservations/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /reservations/expire-pending", s.handleExpireSweep)

	return s.withLogging(mux)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.Log.Info("request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}

// Start runs the HTTP server and shuts it down when ctx is cancelled.
func Start(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	return srv.ListenAndServe()
}

type errorBody struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func writeError(w http.ResponseWriter, err error) {
	kind := internaltypes.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case internaltypes.KindNotFound:
		status = http.StatusNotFound
	case internaltypes.KindNoCapacity, internaltypes.KindConflict:
		status = http.StatusConflict
	case internaltypes.KindOutsideServiceWindow:
		status = http.StatusUnprocessableEntity
	case internaltypes.KindInvalidFormat:
		status = http.StatusBadRequest
	}
	writeJSON(w, status, errorBody{Error: string(kind), Detail: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func reservationView(r model.Reservation) map[string]any {
	view := map[string]any{
		"id":           r.ID,
		"restaurantId": r.RestaurantID,
		"sectorId":     r.SectorID,
		"tableIds":     r.TableIDs,
		"partySize":    r.PartySize,
		"start":        r.Start.Format(time.RFC3339),
		"end":          r.End.Format(time.RFC3339),
		"status":       r.Status,
		"customer":     r.Customer,
		"notes":        r.Notes,
		"createdAt":    r.CreatedAt.Format(time.RFC3339),
		"updatedAt":    r.UpdatedAt.Format(time.RFC3339),
	}
	if r.ExpiresAt != nil {
		view["expiresAt"] = r.ExpiresAt.Format(time.RFC3339)
	} else {
		view["expiresAt"] = nil
	}
	return view
}
