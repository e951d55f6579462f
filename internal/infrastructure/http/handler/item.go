package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rezkam/dayplan/internal/application/planner"
	"github.com/rezkam/dayplan/internal/domain"
	"github.com/rezkam/dayplan/internal/infrastructure/http/response"
)

// CreateItemRequest is the body of POST /v1/items.
type CreateItemRequest struct {
	Kind        string `json:"kind"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Time        string `json:"time"`
	AllDay      bool   `json:"all_day"`
	Date        string `json:"date"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
}

// UpdateItemRequest is the body of PATCH /v1/items/{id}.
type UpdateItemRequest struct {
	Etag        *string  `json:"etag"`
	UpdateMask  []string `json:"update_mask"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Time        *string  `json:"time"`
	AllDay      *bool    `json:"all_day"`
	Date        *string  `json:"date"`
	StartDate   *string  `json:"start_date"`
	EndDate     *string  `json:"end_date"`
}

// ChangeStatusRequest is the body of POST /v1/items/{id}/status.
type ChangeStatusRequest struct {
	Date   string  `json:"date"`
	Status string  `json:"status"`
	Etag   *string `json:"etag"`
}

// RescheduleRequest is the body of POST /v1/items/{id}/reschedule.
type RescheduleRequest struct {
	Date string  `json:"date"`
	Time string  `json:"time"`
	Etag *string `json:"etag"`
}

// ItemResponse wraps a single item.
type ItemResponse struct {
	Item ItemDTO `json:"item"`
}

// ListItemsResponse is the owner's collection snapshot.
type ListItemsResponse struct {
	Items         []ItemDTO `json:"items"`
	NextPageToken *string   `json:"next_page_token,omitempty"`
}

// CreateItem handles POST /v1/items.
func (h *PlanHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	var req CreateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	in, err := newItemFromRequest(req)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	item, err := h.planner.CreateItem(r.Context(), owner, in)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to create item via HTTP",
			"kind", req.Kind,
			"title", req.Title,
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "item created via HTTP",
		"item_id", item.ID,
		"kind", item.Kind)

	setEtag(w, item)
	response.Created(w, ItemResponse{Item: MapItemToDTO(item)})
}

func newItemFromRequest(req CreateItemRequest) (planner.NewItem, error) {
	kind, err := domain.NewItemKind(req.Kind)
	if err != nil {
		return planner.NewItem{}, err
	}
	clock, err := domain.ParseClockTime(req.Time)
	if err != nil {
		return planner.NewItem{}, err
	}
	in := planner.NewItem{
		Kind:        kind,
		Title:       req.Title,
		Description: req.Description,
		Time:        clock,
		AllDay:      req.AllDay,
	}

	if kind == domain.KindTask {
		in.Date, err = requiredDate(req.Date)
		return in, err
	}
	if in.StartDate, err = requiredDate(req.StartDate); err != nil {
		return in, err
	}
	// A single-day event may omit end_date.
	if req.EndDate == "" {
		in.EndDate = in.StartDate
		return in, nil
	}
	in.EndDate, err = domain.ParseDate(req.EndDate)
	return in, err
}

// ListItems handles GET /v1/items.
func (h *PlanHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}

	items, err := h.planner.ListItems(r.Context(), owner)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	q := r.URL.Query()
	page, next := paginate(items, parsePageSize(q.Get("page_size")), parsePageToken(q.Get("page_token")))

	response.OK(w, ListItemsResponse{
		Items:         MapItemsToDTO(page),
		NextPageToken: next,
	})
}

// GetItem handles GET /v1/items/{id}.
func (h *PlanHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	item, err := h.planner.GetItem(r.Context(), owner, id)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	setEtag(w, item)
	response.OK(w, ItemResponse{Item: MapItemToDTO(item)})
}

// UpdateItem handles PATCH /v1/items/{id}.
func (h *PlanHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req UpdateItemRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	params, err := updateParamsFromRequest(id, req)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	params.Etag = etagFrom(r, req.Etag)

	item, err := h.planner.UpdateItem(r.Context(), owner, params)
	if err != nil {
		slog.ErrorContext(r.Context(), "failed to update item via HTTP",
			"item_id", id,
			"update_mask", req.UpdateMask,
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	setEtag(w, item)
	response.OK(w, ItemResponse{Item: MapItemToDTO(item)})
}

func updateParamsFromRequest(id string, req UpdateItemRequest) (domain.UpdateItemParams, error) {
	params := domain.UpdateItemParams{
		ItemID:      id,
		UpdateMask:  req.UpdateMask,
		Title:       req.Title,
		Description: req.Description,
		AllDay:      req.AllDay,
	}

	if req.Time != nil {
		clock, err := domain.ParseClockTime(*req.Time)
		if err != nil {
			return params, err
		}
		params.Time = &clock
	}

	for _, f := range []struct {
		raw *string
		dst **domain.Date
	}{
		{req.Date, &params.Date},
		{req.StartDate, &params.StartDate},
		{req.EndDate, &params.EndDate},
	} {
		if f.raw == nil {
			continue
		}
		d, err := domain.ParseDate(*f.raw)
		if err != nil {
			return params, err
		}
		*f.dst = &d
	}

	return params, nil
}

// DeleteItem handles DELETE /v1/items/{id}.
func (h *PlanHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if err := h.planner.DeleteItem(r.Context(), owner, id); err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	slog.InfoContext(r.Context(), "item deleted via HTTP", "item_id", id)
	response.NoContent(w)
}

// ChangeStatus handles POST /v1/items/{id}/status.
func (h *PlanHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req ChangeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, err := domain.NewStatus(req.Status)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	// Tasks may omit the date; the service defaults it to the task's own.
	var date domain.Date
	if req.Date != "" {
		if date, err = domain.ParseDate(req.Date); err != nil {
			response.FromDomainError(w, r, err)
			return
		}
	}

	item, err := h.planner.ChangeStatus(r.Context(), owner, id, date, status, etagFrom(r, req.Etag))
	if err != nil {
		slog.WarnContext(r.Context(), "status change rejected",
			"item_id", id,
			"date", req.Date,
			"status", req.Status,
			"error", err)
		response.FromDomainError(w, r, err)
		return
	}

	setEtag(w, item)
	response.OK(w, ItemResponse{Item: MapItemToDTO(item)})
}

// Reschedule handles POST /v1/items/{id}/reschedule.
func (h *PlanHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req RescheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	date, err := requiredDate(req.Date)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}
	clock, err := domain.ParseClockTime(req.Time)
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	item, err := h.planner.Reschedule(r.Context(), owner, id, date, clock, etagFrom(r, req.Etag))
	if err != nil {
		response.FromDomainError(w, r, err)
		return
	}

	setEtag(w, item)
	response.OK(w, ItemResponse{Item: MapItemToDTO(item)})
}
