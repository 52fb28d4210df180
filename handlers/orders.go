package handlers

import (
	"net/http"

	"storefront/models"
)

func (h *Handler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	var req models.QuoteRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	quote, err := h.ors.Quote(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	order, err := h.ors.PlaceOrder(r.Context(), userIdFrom(r), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) GetCurrentUserOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.ors.ListUserOrders(r.Context(), userIdFrom(r))
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(orders))
}

func (h *Handler) GetOrderById(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	order, err := h.ors.GetOrder(r.Context(), userIdFrom(r), roleFrom(r), id)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	order, err := h.ors.CancelOrder(r.Context(), userIdFrom(r), id)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (h *Handler) SearchOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var data models.OrderSearchData
	var err error
	if data.DateStart, err = queryTime(q, "from"); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if data.DateEnd, err = queryTime(q, "to"); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if v := q.Get("status"); v != "" {
		data.Status = &v
	}
	for name, dst := range map[string]**int{"userId": &data.UserId, "productId": &data.ProdId} {
		n, e := queryInt(q, name)
		if e != nil {
			WriteErrorResponse(w, e)
			return
		}
		if n > 0 {
			*dst = &n
		}
	}
	if data.Page, err = queryInt(q, "page"); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if data.Limit, err = queryInt(q, "limit"); err != nil {
		WriteErrorResponse(w, err)
		return
	}

	res, err := h.ors.SearchOrders(r.Context(), data)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SetOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	var req models.StatusRequest
	if err = decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	order, err := h.ors.SetOrderStatus(r.Context(), id, req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}
