package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/foodshare/internal/donation"
)

// CreateListing creates a listing owned by the caller.
// POST /api/listings
func (h *Handler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var in donation.ListingInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}
	l, err := h.m.CreateListing(r.Context(), bearer(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusCreated, l)
}

// ListAvailable returns claimable listings.
// GET /api/listings?forFarmers=true|false
func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	var forFarmers *bool
	if v := r.URL.Query().Get("forFarmers"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.fail(w, r, &donation.Error{
				Kind:    donation.KindValidation,
				Message: "forFarmers must be true or false",
				Fields:  []string{"forFarmers"},
			})
			return
		}
		forFarmers = &b
	}

	listings, err := h.m.ListAvailable(r.Context(), bearer(r), forFarmers)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, listings)
}

// ListMine returns the caller's listings.
// GET /api/listings/mine
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	listings, err := h.m.ListMine(r.Context(), bearer(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, listings)
}

// GetListing returns one listing.
// GET /api/listings/{id}
func (h *Handler) GetListing(w http.ResponseWriter, r *http.Request) {
	l, err := h.m.GetListing(r.Context(), bearer(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, l)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

// UpdateStatus sets a listing's status.
// PATCH /api/listings/{id}/status
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := decode(r, &req, false); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.m.UpdateStatus(r.Context(), bearer(r), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, res)
}

// AttachImage uploads the listing's image.
// POST /api/listings/{id}/image
func (h *Handler) AttachImage(w http.ResponseWriter, r *http.Request) {
	var in donation.ImageInput
	if err := decode(r, &in, false); err != nil {
		h.fail(w, r, err)
		return
	}
	in.ListingID = chi.URLParam(r, "id")

	res, err := h.m.AttachImage(r.Context(), bearer(r), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	jsonOK(w, http.StatusOK, res)
}

// PickupCalendar serves the pickup window as an .ics file.
// GET /api/listings/{id}/pickup.ics
func (h *Handler) PickupCalendar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	body, err := h.m.PickupCalendar(r.Context(), bearer(r), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="pickup-`+id+`.ics"`)
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(body))
}
