package specialorder

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/caskwell/caskwell/internal/platform/httpx"
	"github.com/caskwell/caskwell/internal/shared"
)

// Handler manages special order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers special order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/special-orders", h.list)
	r.Post("/special-orders", h.create)
	r.Get("/special-orders/{id}", h.show)
	r.Post("/special-orders/{id}/ship", h.markShipped)
	r.Post("/special-orders/{id}/arrive", h.markArrived)
	r.Post("/special-orders/{id}/delay", h.markDelayed)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	default:
		h.logger.Error("special order request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 100
	}
	filter := ListFilter{
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Page:       page,
		PerPage:    perPage,
	}
	orders, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"special_orders": orders,
		"meta":           shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

type createRequest struct {
	CasketName          string `json:"casket_name" validate:"required"`
	Model               string `json:"model"`
	Supplier            string `json:"supplier"`
	FamilyName          string `json:"family_name" validate:"required"`
	ServiceDate         string `json:"service_date" validate:"required"`
	ExpectedDelivery    string `json:"expected_delivery"`
	Notes               string `json:"notes"`
	SupplierOrderNumber string `json:"supplier_order_number"`
	Actor               string `json:"actor" validate:"required"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	serviceDate, err := time.Parse("2006-01-02", req.ServiceDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "service_date must be YYYY-MM-DD")
		return
	}
	var expected *time.Time
	if req.ExpectedDelivery != "" {
		parsed, err := time.Parse("2006-01-02", req.ExpectedDelivery)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected_delivery must be YYYY-MM-DD")
			return
		}
		expected = &parsed
	}
	order, err := h.service.Create(r.Context(), CreateInput{
		CasketName:          req.CasketName,
		Model:               req.Model,
		Supplier:            req.Supplier,
		FamilyName:          req.FamilyName,
		ServiceDate:         serviceDate,
		ExpectedDelivery:    expected,
		Notes:               req.Notes,
		SupplierOrderNumber: req.SupplierOrderNumber,
		Actor:               req.Actor,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	order, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type transitionRequest struct {
	Actor string `json:"actor" validate:"required"`
}

func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkShipped)
}

func (h *Handler) markArrived(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkArrived)
}

func (h *Handler) markDelayed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkDelayed)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id int64, actor string) (SpecialOrder, error)) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req transitionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	order, err := fn(r.Context(), id, req.Actor)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}
