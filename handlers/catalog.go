package handlers

import (
	"net/http"
	"net/url"
	"strconv"
	"time"

	"storefront/models"

	"github.com/shopspring/decimal"
)

func queryInt(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, models.Errorf(models.ErrBadRequest, "%s must be a number", name)
	}
	return n, nil
}

func queryBool(q url.Values, name string) (*bool, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, models.Errorf(models.ErrBadRequest, "%s must be true or false", name)
	}
	return &b, nil
}

func queryDecimal(q url.Values, name string) (decimal.NullDecimal, error) {
	v := q.Get(name)
	if v == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil || d.IsNegative() {
		return decimal.NullDecimal{}, models.Errorf(models.ErrBadRequest, "%s must be a non-negative number", name)
	}
	return decimal.NewNullDecimal(d), nil
}

func queryTime(q url.Values, name string) (*time.Time, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		if t, err = time.Parse(time.DateOnly, v); err != nil {
			return nil, models.Errorf(models.ErrBadRequest, "%s must be a date (YYYY-MM-DD) or RFC 3339 time", name)
		}
	}
	return &t, nil
}

func productFilter(q url.Values) (f models.ProductFilter, err error) {
	f.Category = q.Get("category")
	f.Query = q.Get("q")
	f.Sort = q.Get("sort")
	if f.Page, err = queryInt(q, "page"); err != nil {
		return
	}
	if f.Limit, err = queryInt(q, "limit"); err != nil {
		return
	}
	if f.MinPrice, err = queryDecimal(q, "minPrice"); err != nil {
		return
	}
	if f.MaxPrice, err = queryDecimal(q, "maxPrice"); err != nil {
		return
	}
	if f.IsNew, err = queryBool(q, "isNew"); err != nil {
		return
	}
	if f.Featured, err = queryBool(q, "featured"); err != nil {
		return
	}
	inStock, err := queryBool(q, "inStock")
	if err != nil {
		return
	}
	f.InStock = inStock != nil && *inStock
	return
}

// products

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	f, err := productFilter(r.URL.Query())
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	page, err := h.ps.ListProducts(r.Context(), f)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	prod, err := h.ps.GetProduct(r.Context(), muxVar(r, "idOrSlug"))
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prod)
}

func (h *Handler) GetRelatedProducts(w http.ResponseWriter, r *http.Request) {
	prods, err := h.ps.GetRelated(r.Context(), muxVar(r, "idOrSlug"))
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(prods))
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req models.ProductRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	prod, err := h.ps.CreateProduct(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, prod)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	var req models.ProductRequest
	if err = decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	req.Id = id
	prod, err := h.ps.UpdateProduct(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prod)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if err = h.ps.DeleteProduct(r.Context(), id); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ExportProducts(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="products.xlsx"`)
	if err := h.ps.ExportProducts(r.Context(), w); err != nil {
		w.Header().Del("Content-Disposition")
		WriteErrorResponse(w, err)
	}
}

// categories

func (h *Handler) GetAllCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.cas.GetAllCategories(r.Context())
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(cats))
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	cat, err := h.cas.GetCategory(r.Context(), muxVar(r, "slug"))
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req models.CategoryRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	cat, err := h.cas.CreateCategory(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, cat)
}

func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	var req models.CategoryRequest
	if err = decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	req.Id = id
	cat, err := h.cas.UpdateCategory(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cat)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if err = h.cas.DeleteCategory(r.Context(), id); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// reviews

func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	productId, err := queryInt(q, "productId")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
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
	res, err := h.rs.ListReviews(r.Context(), productId, page, limit)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) CreateReview(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	rev, err := h.rs.CreateReview(r.Context(), userIdFrom(r), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rev)
}

func (h *Handler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if err = h.rs.DeleteReview(r.Context(), userIdFrom(r), roleFrom(r), id); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// promo codes

func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req models.PromoValidateRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	res, err := h.prs.Validate(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ListPromoCodes(w http.ResponseWriter, r *http.Request) {
	promos, err := h.prs.ListPromoCodes(r.Context())
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(promos))
}

func (h *Handler) CreatePromoCode(w http.ResponseWriter, r *http.Request) {
	var req models.PromoCodeRequest
	if err := decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	promo, err := h.prs.CreatePromoCode(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, promo)
}

func (h *Handler) UpdatePromoCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	var req models.PromoCodeRequest
	if err = decode(r, &req); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	req.Id = id
	promo, err := h.prs.UpdatePromoCode(r.Context(), req)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, promo)
}

func (h *Handler) DeletePromoCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathId(r, "id")
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	if err = h.prs.DeletePromoCode(r.Context(), id); err != nil {
		WriteErrorResponse(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
