package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/tablekeep/reservation-engine/internal/internaltypes"
	"github.com/tablekeep/reservation-engine/internal/model"
	"github.com/tablekeep/reservation-engine/internal/reservation"
)

func (s *Server) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	restaurantID := q.Get("restaurantId")
	sectorID := q.Get("sectorId")
	dateStr := q.Get("date")
	partySize, err := strconv.Atoi(q.Get("partySize"))
	if err != nil || restaurantID == "" || sectorID == "" || dateStr == "" || partySize < 1 {
		writeError(w, internaltypes.InvalidFormat("restaurantId, sectorId, date and partySize are required"))
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, internaltypes.InvalidFormat("date must be YYYY-MM-DD"))
		return
	}

	slots, duration, err := s.Availability.Compute(r.Context(), restaurantID, sectorID, date, partySize)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]map[string]any, 0, len(slots))
	for _, sl := range slots {
		entry := map[string]any{
			"start":     sl.Start.UTC().Format(time.RFC3339),
			"available": sl.Available,
		}
		if sl.Available {
			entry["tables"] = sl.Tables
		} else {
			entry["reason"] = sl.Reason
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"slotMinutes":     15,
		"durationMinutes": int(duration / time.Minute),
		"slots":           out,
	})
}

type createBody struct {
	SectorID  string         `json:"sectorId"`
	PartySize int            `json:"partySize"`
	Start     time.Time      `json:"start"`
	Customer  model.Customer `json:"customer"`
	Notes     string         `json:"notes"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	restaurantID := r.URL.Query().Get("restaurantId")
	var body createBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, internaltypes.InvalidFormat("malformed request body"))
		return
	}
	if restaurantID == "" || body.SectorID == "" || body.PartySize < 1 {
		writeError(w, internaltypes.InvalidFormat("restaurantId, sectorId and partySize are required"))
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if rec, hit, err := s.Idempotency.Lookup(r.Context(), key); err == nil && hit {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write(rec.Payload)
			return
		}
	}

	res, err := s.Reservation.Create(r.Context(), reservation.CreateRequest{
		RestaurantID: restaurantID,
		SectorID:     body.SectorID,
		PartySize:    body.PartySize,
		Start:        body.Start,
		Customer:     body.Customer,
		Notes:        body.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	payload, _ := json.Marshal(reservationView(res))
	if key != "" {
		_ = s.Idempotency.Save(r.Context(), key, payload)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(payload)
}

type updateBody struct {
	SectorID  *string         `json:"sectorId"`
	PartySize *int            `json:"partySize"`
	Start     *time.Time      `json:"start"`
	Customer  *model.Customer `json:"customer"`
	Notes     *string         `json:"notes"`
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var body updateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, internaltypes.InvalidFormat("malformed request body"))
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" {
		if rec, hit, err := s.Idempotency.Lookup(r.Context(), key); err == nil && hit {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(rec.Payload)
			return
		}
	}

	res, err := s.Reservation.Update(r.Context(), id, reservation.UpdateRequest{
		SectorID:  body.SectorID,
		PartySize: body.PartySize,
		Start:     body.Start,
		Customer:  body.Customer,
		Notes:     body.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	view := reservationView(res)
	if key != "" {
		payload, _ := json.Marshal(view)
		_ = s.Idempotency.Save(r.Context(), key, payload)
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := s.Reservation.Cancel(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDayView(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	restaurantID := q.Get("restaurantId")
	dateStr := q.Get("date")
	if restaurantID == "" || dateStr == "" {
		writeError(w, internaltypes.InvalidFormat("restaurantId and date are required"))
		return
	}
	date, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, internaltypes.InvalidFormat("date must be YYYY-MM-DD"))
		return
	}
	rest, err := s.Store.GetRestaurant(r.Context(), restaurantID)
	if err != nil {
		writeError(w, internaltypes.NotFound("restaurant not found"))
		return
	}
	var sectorID *string
	if v := q.Get("sectorId"); v != "" {
		sectorID = &v
	}
	items, err := s.Store.ReservationsByDay(r.Context(), restaurantID, date, rest.Timezone, sectorID)
	if err != nil {
		writeError(w, internaltypes.Internal("day query failed", err))
		return
	}
	views := make([]map[string]any, 0, len(items))
	for _, it := range items {
		views = append(views, reservationView(it))
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": dateStr, "items": views})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.Reservation.Approve(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationView(res))
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	res, err := s.Reservation.Reject(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reservationView(res))
}

func (s *Server) handleExpireSweep(w http.ResponseWriter, r *http.Request) {
	count, err := s.Reservation.ExpirePending(r.Context())
	if err != nil {
		writeError(w, internaltypes.Internal("expire sweep failed", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"expiredCount": count})
}
