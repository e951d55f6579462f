package handler

import (
	"net/http"

	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
)

// UpdateProfileRequest is the body of PUT /v1/profile.
type UpdateProfileRequest struct {
	Name      string `json:"name"`
	BirthDate string `json:"birth_date"`
}

// GetProfile handles GET /v1/profile.
func (h *PlanHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	p, err := h.profiles.GetProfile(r.Context(), owner)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, MapProfileToDTO(p))
}

// UpdateProfile handles PUT /v1/profile.
func (h *PlanHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var birth domain.Date
	if req.BirthDate != "" {
		var err error
		if birth, err = domain.ParseDate(req.BirthDate); err != nil {
			response.FromDomainError(w, r, err)
			return
		}
	}

	p, err := h.profiles.UpdateProfile(r.Context(), owner, req.Name, birth)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, MapProfileToDTO(p))
}

// GetGreeting handles GET /v1/greeting?date=.
func (h *PlanHandler) GetGreeting(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	date, err := h.dateParam(r.URL.Query().Get("date"))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	g, err := h.profiles.Greeting(r.Context(), owner, date)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	birthdays, err := h.profiles.BirthdaysOn(r.Context(), date)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	response.OK(w, MapGreetingToDTO(date, g, birthdays))
}
