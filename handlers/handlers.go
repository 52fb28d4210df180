package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"

	"storefront/entities"
	"storefront/models"
	"storefront/services"

	"github.com/gorilla/mux"
)

// HealthCheck reports whether a backing store is reachable.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	us     services.UserService
	ps     services.ProductService
	cas    services.CategoryService
	prs    services.PromoService
	ors    services.OrderService
	rs     services.ReviewService
	fs     services.FavoriteService
	as     services.AdminService
	feed   *Hub
	checks map[string]HealthCheck
	limit  *ipLimiter
}

type HandlerParams struct {
	UsrService   services.UserService
	PrdService   services.ProductService
	CatsService  services.CategoryService
	PromoService services.PromoService
	OrdService   services.OrderService
	RevService   services.ReviewService
	FavService   services.FavoriteService
	AdmService   services.AdminService
	Feed         *Hub
	HealthChecks map[string]HealthCheck
	// AuthRate and AuthBurst bound register, login and refresh calls per client IP.
	AuthRate  float64
	AuthBurst int
}

func NewHandler(params HandlerParams) *Handler {
	feed := params.Feed
	if feed == nil {
		feed = NewHub()
	}
	return &Handler{
		us:     params.UsrService,
		ps:     params.PrdService,
		cas:    params.CatsService,
		prs:    params.PromoService,
		ors:    params.OrdService,
		rs:     params.RevService,
		fs:     params.FavService,
		as:     params.AdmService,
		feed:   feed,
		checks: params.HealthChecks,
		limit:  newIPLimiter(params.AuthRate, params.AuthBurst),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: %v", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, entities.MessageResponse{Message: msg})
}

func decode(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		log.Printf("Unmarshal err:%v", err)
		if errors.Is(err, io.EOF) {
			return models.Errorf(models.ErrBadRequest, "request body is empty")
		}
		return models.Errorf(models.ErrBadRequest, "invalid request body")
	}
	return nil
}

func pathId(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id < 1 {
		return 0, models.Errorf(models.ErrBadRequest, "invalid %s", name)
	}
	return id, nil
}

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// nonNil keeps empty lists encoded as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	for name, check := range h.checks {
		if err := check(r.Context()); err != nil {
			log.Printf("Health: %s: %v", name, err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "failing": name})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	res, err := h.us.Register(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var creds models.Credentials
	if err := decode(r, &creds); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	res, err := h.us.Login(r.Context(), creds)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if req.RefreshToken == "" {
		WriteErrorResponse(w, models.Errorf(models.ErrBadRequest, "refreshToken is required"))
		return
	}
	res, err := h.us.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.RefreshRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if err := h.us.Logout(r.Context(), req.RefreshToken); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.us.Me(r.Context(), userIdFrom(r))
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req models.ProfileRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	user, err := h.us.UpdateProfile(r.Context(), userIdFrom(r), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var data models.PasswordData
	if err := decode(r, &data); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if err := h.us.ChangePassword(r.Context(), userIdFrom(r), data); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "password changed, please sign in again")
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := queryInt(q, "page")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	limit, err := queryInt(q, "limit")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	res, err := h.us.ListUsers(r.Context(), page, limit)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// favorites

func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	prods, err := h.fs.GetFavorites(r.Context(), userIdFrom(r))
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(prods))
}

func (h *Handler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	var req models.FavoriteRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if err := h.fs.AddFavorite(r.Context(), userIdFrom(r), req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "productId")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if err = h.fs.RemoveFavorite(r.Context(), userIdFrom(r), id); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// admin

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.as.Stats(r.Context())
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
