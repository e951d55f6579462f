package handler

import (
	"net/http"

	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
)

// ReorderRequest is the body of PUT /v1/agenda/order.
type ReorderRequest struct {
	Date    string   `json:"date"`
	ItemIDs []string `json:"item_ids"`
}

// StatsResponse holds per-day statistics over a range.
type StatsResponse struct {
	From string     `json:"from"`
	To   string     `json:"to"`
	Days []StatsDTO `json:"days"`
}

// GetAgenda handles GET /v1/agenda?date=.
func (h *PlanHandler) GetAgenda(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	date, err := h.dateParam(r.URL.Query().Get("date"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	view, err := h.planner.Agenda(r.Context(), owner, date)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	response.OK(w, MapDayViewToDTO(view))
}

// ReorderAgenda handles PUT /v1/agenda/order.
// Responds with the refreshed agenda of the reordered date.
func (h *PlanHandler) ReorderAgenda(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	date, err := requiredDate(req.Date)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	if _, err := h.planner.Reorder(r.Context(), owner, date, req.ItemIDs); err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	view, err := h.planner.Agenda(r.Context(), owner, date)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, MapDayViewToDTO(view))
}

// GetStats handles GET /v1/stats?from=&to=.
func (h *PlanHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	days, err := h.planner.Stats(r.Context(), owner, from, to)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	out := make([]StatsDTO, len(days))
	for i, d := range days {
		out[i] = MapStatsToDTO(d)
	}
	response.OK(w, StatsResponse{From: from.String(), To: to.String(), Days: out})
}

func rangeParams(r *http.Request) (domain.Date, domain.Date, error) {
	q := r.URL.Query()
	from, err := requiredDate(q.Get("from"))
	if err != nil {
		return "", "", err
	}
	to, err := requiredDate(q.Get("to"))
	if err != nil {
		return "", "", err
	}
	return from, to, nil
}
