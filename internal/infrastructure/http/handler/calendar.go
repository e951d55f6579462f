package handler

import (
	"net/http"

	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
	"github.com/rezkam/dayplan/internal/infrastructure/ics"
)

// ExportCalendar handles GET /v1/calendar.ics?from=&to=.
func (h *PlanHandler) ExportCalendar(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	from, to, err := rangeParams(r)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	items, err := h.planner.ItemsBetween(r.Context(), owner, from, to)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	body, err := ics.Encode(items, ics.Options{Location: h.planner.Location()})
	if err != nil {
		response.InternalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dayplan-`+from.String()+`.ics"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
