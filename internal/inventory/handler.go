package inventory

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

// Handler manages stock item and order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers inventory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/items", h.listItems)
	r.Post("/items", h.createItem)
	r.Get("/items/{id}", h.showItem)
	r.Get("/items/{id}/history", h.listHistory)
	r.Get("/items/{id}/instructions", h.showInstructions)
	r.Post("/items/{id}/order", h.placeOrder)
	r.Post("/items/{id}/return", h.recordReturn)
	r.Post("/items/{id}/adjust", h.adjustInventory)
	r.Post("/items/{id}/backorder", h.recordBackorder)

	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.showOrder)
	r.Post("/orders/{id}/arrive", h.markArrived)
	r.Post("/orders/{id}/ship", h.markShipped)
	r.Post("/orders/{id}/delay", h.markDelayed)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", shared.UserSafeMessage(err))
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", shared.UserSafeMessage(err))
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInvalidState):
		httpx.Problem(w, http.StatusConflict, "Conflict", shared.UserSafeMessage(err))
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, http.StatusConflict, "Conflict", "operation already processed")
	default:
		h.logger.Error("inventory request failed", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

type itemView struct {
	StockItem
	Status   StockStatus `json:"status"`
	Coverage int         `json:"coverage"`
	Shortage int         `json:"shortage"`
}

func presentItem(item StockItem) itemView {
	return itemView{StockItem: item, Status: item.Status(), Coverage: item.Coverage(), Shortage: item.Shortage()}
}

func (h *Handler) listItems(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 50
	}
	filter := ListFilter{
		Kind:    ItemKind(r.URL.Query().Get("kind")),
		Search:  r.URL.Query().Get("search"),
		Page:    page,
		PerPage: perPage,
	}
	items, total, err := h.service.ListItems(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, presentItem(item))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"items": views,
		"meta":  shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

type createItemRequest struct {
	Kind                 string  `json:"kind" validate:"required,oneof=CASKET URN"`
	Name                 string  `json:"name" validate:"required"`
	Model                string  `json:"model"`
	Supplier             string  `json:"supplier"`
	Location             string  `json:"location"`
	Cost                 float64 `json:"cost" validate:"gte=0"`
	Price                float64 `json:"price" validate:"gte=0"`
	OnHand               int     `json:"on_hand" validate:"gte=0"`
	TargetQuantity       int     `json:"target_quantity" validate:"gte=0"`
	OrderingInstructions string  `json:"ordering_instructions"`
}

func (h *Handler) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		Kind:                 ItemKind(req.Kind),
		Name:                 req.Name,
		Model:                req.Model,
		Supplier:             req.Supplier,
		Location:             req.Location,
		Cost:                 req.Cost,
		Price:                req.Price,
		OnHand:               req.OnHand,
		TargetQuantity:       req.TargetQuantity,
		OrderingInstructions: req.OrderingInstructions,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, presentItem(item))
}

func (h *Handler) showItem(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, presentItem(item))
}

func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.service.ListHistory(r.Context(), id, limit)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"history": records})
}

func (h *Handler) showInstructions(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	instructions, err := h.service.ResolveInstructions(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"instructions": instructions})
}

type placeOrderRequest struct {
	Quantity        int    `json:"quantity" validate:"gte=0"`
	DeceasedName    string `json:"deceased_name" validate:"required"`
	PONumber        string `json:"po_number"`
	ExpectedDate    string `json:"expected_date"`
	IsBackordered   bool   `json:"is_backordered"`
	BackorderReason string `json:"backorder_reason" validate:"required_if=IsBackordered true"`
	Actor           string `json:"actor" validate:"required"`
}

func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req placeOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	expected, err := parseDate(req.ExpectedDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected_date must be YYYY-MM-DD")
		return
	}
	order, item, err := h.service.PlaceOrder(r.Context(), id, PlaceOrderInput{
		Quantity:        req.Quantity,
		DeceasedName:    req.DeceasedName,
		PONumber:        req.PONumber,
		ExpectedDate:    expected,
		IsBackordered:   req.IsBackordered,
		BackorderReason: req.BackorderReason,
		Actor:           req.Actor,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"order": order, "item": presentItem(item)})
}

type returnRequest struct {
	Reason             string `json:"reason" validate:"required"`
	Notes              string `json:"notes"`
	Actor              string `json:"actor" validate:"required"`
	FamilyName         string `json:"family_name"`
	Disposition        string `json:"disposition" validate:"omitempty,oneof=NONE RESTOCK DISPOSE"`
	ExpectsReplacement bool   `json:"expects_replacement"`
	PONumber           string `json:"po_number"`
	ExpectedDate       string `json:"expected_date"`
}

func (h *Handler) recordReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req returnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	expected, err := parseDate(req.ExpectedDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expected_date must be YYYY-MM-DD")
		return
	}
	ret, item, err := h.service.RecordReturn(r.Context(), id, ReturnInput{
		Reason:             req.Reason,
		Notes:              req.Notes,
		Actor:              req.Actor,
		FamilyName:         req.FamilyName,
		Disposition:        Disposition(req.Disposition),
		ExpectsReplacement: req.ExpectsReplacement,
		PONumber:           req.PONumber,
		ExpectedDate:       expected,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"return": ret, "item": presentItem(item)})
}

type adjustRequest struct {
	Type     string `json:"type" validate:"required,oneof=add remove correction"`
	Quantity int    `json:"quantity" validate:"required"`
	Reason   string `json:"reason" validate:"required"`
	Actor    string `json:"actor" validate:"required"`
	Notes    string `json:"notes"`
}

func (h *Handler) adjustInventory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req adjustRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, rec, err := h.service.AdjustInventory(r.Context(), id, AdjustmentInput{
		Type:     AdjustmentType(req.Type),
		Quantity: req.Quantity,
		Reason:   req.Reason,
		Actor:    req.Actor,
		Notes:    req.Notes,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"item": presentItem(item), "entry": rec})
}

type backorderRequest struct {
	Quantity int    `json:"quantity" validate:"required,gt=0"`
	Reason   string `json:"reason" validate:"required"`
	Actor    string `json:"actor" validate:"required"`
}

func (h *Handler) recordBackorder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req backorderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.RecordBackorder(r.Context(), id, BackorderInput{
		Quantity: req.Quantity,
		Reason:   req.Reason,
		Actor:    req.Actor,
	})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, presentItem(item))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage <= 0 {
		perPage = 100
	}
	itemID, _ := strconv.ParseInt(r.URL.Query().Get("item_id"), 10, 64)
	filter := OrderFilter{
		ItemID:     itemID,
		ActiveOnly: r.URL.Query().Get("active") == "true",
		Page:       page,
		PerPage:    perPage,
	}
	orders, total, err := h.service.ListOrdersTriaged(r.Context(), filter)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"orders": orders,
		"meta":   shared.NewPagination(filter.Page, filter.PerPage, total),
	})
}

func (h *Handler) showOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

type arrivalRequest struct {
	Actor       string `json:"actor" validate:"required"`
	ArrivalDate string `json:"arrival_date"`
}

func (h *Handler) markArrived(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid id")
		return
	}
	var req arrivalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var arrival time.Time
	if req.ArrivalDate != "" {
		parsed, err := parseDate(req.ArrivalDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "arrival_date must be YYYY-MM-DD")
			return
		}
		arrival = *parsed
	}
	order, item, err := h.service.MarkArrived(r.Context(), id, ArrivalInput{Actor: req.Actor, ArrivalDate: arrival})
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"order": order, "item": presentItem(item)})
}

type transitionRequest struct {
	Actor string `json:"actor" validate:"required"`
}

func (h *Handler) markShipped(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkShipped)
}

func (h *Handler) markDelayed(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.service.MarkDelayed)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID int64, actor string) (Order, error)) {
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
