// Package handlers binds the donation lifecycle manager to a JSON HTTP API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jredh-dev/foodshare/internal/donation"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	m   *donation.Manager
	log *slog.Logger
}

// New creates a new Handler.
func New(m *donation.Manager, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{m: m, log: log}
}

// Mount registers every route on r.
func (h *Handler) Mount(r chi.Router) {
	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.RequireCaller)
		r.Route("/listings", func(r chi.Router) {
			r.Post("/", h.CreateListing)
			r.Get("/", h.ListAvailable)
			r.Get("/mine", h.ListMine)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.GetListing)
				r.Patch("/status", h.UpdateStatus)
				r.Post("/image", h.AttachImage)
				r.Get("/pickup.ics", h.PickupCalendar)
				r.Get("/claims", h.ClaimHistory)

				r.Post("/claim", h.Claim)
				r.Post("/claim/approve", h.Approve)
				r.Post("/claim/reject", h.Reject)
				r.Post("/claim/collection", h.ChooseCollectionMethod)
				r.Post("/claim/collected", h.ConfirmCollected)
			})
		})
		r.Get("/claims/pending", h.PendingClaims)
	})
}

// RequireCaller rejects requests without a valid bearer credential before
// any handler reads the body.
func (h *Handler) RequireCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.m.Authenticate(r.Context(), bearer(r)); err != nil {
			h.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health reports liveness.
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	jsonOK(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

// bearer extracts the token from "Authorization: Bearer <token>". A missing
// or malformed header yields "", which the manager rejects as
// unauthenticated.
func bearer(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// decode reads a JSON body into v. An empty body is accepted when optional
// is true.
func decode(r *http.Request, v any, optional bool) error {
	err := json.NewDecoder(r.Body).Decode(v)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && optional:
		return nil
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &donation.Error{Kind: donation.KindPayloadTooLarge, Message: "request body too large", Err: err}
	}
	return &donation.Error{Kind: donation.KindValidation, Message: "invalid request body", Err: err}
}

var statusByKind = map[donation.Kind]int{
	donation.KindUnauthenticated: http.StatusUnauthorized,
	donation.KindValidation:      http.StatusBadRequest,
	donation.KindNotFound:        http.StatusNotFound,
	donation.KindForbidden:       http.StatusForbidden,
	donation.KindPayloadTooLarge: http.StatusRequestEntityTooLarge,
	donation.KindConflict:        http.StatusConflict,
	donation.KindInvalidState:    http.StatusUnprocessableEntity,
	donation.KindInternal:        http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind donation.Kind) int {
	if s, ok := statusByKind[kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error  string   `json:"error"`
	Code   string   `json:"code"`
	Fields []string `json:"fields,omitempty"`
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	kind := donation.KindOf(err)
	body := errorBody{Code: string(kind)}

	var de *donation.Error
	if errors.As(err, &de) {
		body.Error = de.Message
		body.Fields = de.Fields
	}
	if kind == donation.KindInternal {
		h.log.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		body.Error = "internal error"
	}
	if body.Error == "" {
		body.Error = strings.ReplaceAll(string(kind), "_", " ")
	}

	jsonOK(w, StatusFor(kind), body)
}

func jsonOK(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
