package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

const dateLayout = "2006-01-02"

// ServiceResponse describes a bookable service.
type ServiceResponse struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Category        string `json:"category"`
	Restricted      bool   `json:"restricted"`
}

// ScheduleResponse is the resolved working window of a date.
type ScheduleResponse struct {
	Date    string   `json:"date"`
	Working bool     `json:"working"`
	Open    string   `json:"open,omitempty"`
	Close   string   `json:"close,omitempty"`
	Starts  []string `json:"restricted_starts,omitempty"`
}

// SlotsResponse lists free start times for a service.
type SlotsResponse struct {
	Date            string   `json:"date"`
	Service         string   `json:"service"`
	DurationMinutes int      `json:"duration_minutes"`
	Slots           []string `json:"slots"`
}

// AvailabilityResponse reports whether a date has bookable hours.
type AvailabilityResponse struct {
	Date       string `json:"date"`
	Available  bool   `json:"available"`
	Restricted bool   `json:"restricted"`
}

// GET /api/v1/services
func (s *HTTPServer) handleServices(w http.ResponseWriter, _ *http.Request) {
	catalog := s.catalog.Catalog()
	out := make([]ServiceResponse, 0, len(catalog))
	for _, svc := range catalog {
		out = append(out, ServiceResponse{
			Name:            svc.Name,
			DurationMinutes: svc.DurationMinutes,
			Category:        string(svc.Category),
			Restricted:      svc.Restricted,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": out})
}

// GET /api/v1/schedule/{date}
func (s *HTTPServer) handleSchedule(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDate(w, chi.URLParam(r, "date"))
	if !ok {
		return
	}

	win, working, err := s.schedule.ResolveSchedule(r.Context(), date)
	if err != nil {
		s.log.Error().Err(err).Time("date", date).Msg("resolve schedule failed")
		writeError(w, http.StatusInternalServerError, "failed to resolve schedule")
		return
	}

	resp := ScheduleResponse{Date: date.Format(dateLayout), Working: working}
	if working {
		resp.Open = win.Open.String()
		resp.Close = win.Close.String()
	}
	if mode := s.schedule.RestrictedMode(); mode.Weekday == date.Weekday() {
		for _, st := range mode.Starts {
			resp.Starts = append(resp.Starts, st.String())
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/slots?date=YYYY-MM-DD&service=...
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := s.parseDate(w, q.Get("date"))
	if !ok {
		return
	}
	name := q.Get("service")
	if name == "" {
		writeError(w, http.StatusBadRequest, "service is required")
		return
	}
	catalog := s.catalog.Catalog()
	svc, found := catalog.Lookup(name)
	if !found {
		writeError(w, http.StatusNotFound, "unknown service")
		return
	}
	duration := catalog.Duration(name)

	slots, err := s.schedule.ComputeAvailableSlots(r.Context(), date, duration, svc.Restricted)
	if err != nil {
		s.log.Error().Err(err).Time("date", date).Str("service", name).Msg("compute slots failed")
		writeError(w, http.StatusInternalServerError, "failed to compute slots")
		return
	}

	resp := SlotsResponse{
		Date:            date.Format(dateLayout),
		Service:         svc.Name,
		DurationMinutes: duration,
		Slots:           make([]string, 0, len(slots)),
	}
	for _, t := range slots {
		resp.Slots = append(resp.Slots, model.TimeOfDayOf(t).String())
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/v1/dates/{date}/availability?restricted=true
func (s *HTTPServer) handleDateAvailability(w http.ResponseWriter, r *http.Request) {
	date, ok := s.parseDate(w, chi.URLParam(r, "date"))
	if !ok {
		return
	}
	restricted := r.URL.Query().Get("restricted") == "true"

	available, err := s.schedule.IsDateAvailableFor(r.Context(), date, restricted)
	if err != nil {
		s.log.Error().Err(err).Time("date", date).Msg("date availability failed")
		writeError(w, http.StatusInternalServerError, "failed to check date")
		return
	}
	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Date:       date.Format(dateLayout),
		Available:  available,
		Restricted: restricted,
	})
}

func (s *HTTPServer) parseDate(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return time.Time{}, false
	}
	date, err := time.ParseInLocation(dateLayout, raw, s.schedule.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return time.Time{}, false
	}
	return date, true
}
