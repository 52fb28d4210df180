package handlers

import (
	"io"
	"net/http"

	ghandlers "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

// Routes builds the API route table.
func (h *Handler) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(h.ErrorHandleMiddleware)
	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	router.HandleFunc("/health", h.Health).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	subLimited := api.NewRoute().Subrouter()
	subLimited.Use(h.RateLimitMiddleware)
	subAuth := api.NewRoute().Subrouter()
	subAuth.Use(h.AuthMiddleware)
	subFeed := api.NewRoute().Subrouter()
	subFeed.Use(h.QueryTokenAuthMiddleware, h.AdminMiddleware)
	subManAuth := api.PathPrefix("/admin").Subrouter()
	subManAuth.Use(h.AuthMiddleware, h.AdminMiddleware)

	subLimited.HandleFunc("/auth/register", h.Register).Methods("POST")
	subLimited.HandleFunc("/auth/login", h.Login).Methods("POST")
	subLimited.HandleFunc("/auth/refresh", h.Refresh).Methods("POST")
	api.HandleFunc("/auth/logout", h.Logout).Methods("POST")
	subFeed.HandleFunc("/admin/orders/feed", h.OrderFeed).Methods("GET")
	subAuth.HandleFunc("/auth/me", h.Me).Methods("GET")
	subAuth.HandleFunc("/auth/me", h.UpdateMe).Methods("PUT")
	subAuth.HandleFunc("/auth/change-password", h.ChangePassword).Methods("POST")

	api.HandleFunc("/products", h.ListProducts).Methods("GET")
	api.HandleFunc("/products/{idOrSlug}", h.GetProduct).Methods("GET")
	api.HandleFunc("/products/{idOrSlug}/related", h.GetRelatedProducts).Methods("GET")
	api.HandleFunc("/categories", h.GetAllCategories).Methods("GET")
	api.HandleFunc("/categories/{slug}", h.GetCategory).Methods("GET")

	api.HandleFunc("/reviews", h.ListReviews).Methods("GET")
	subAuth.HandleFunc("/reviews", h.CreateReview).Methods("POST")
	subAuth.HandleFunc("/reviews/{id:[0-9]+}", h.DeleteReview).Methods("DELETE")

	subAuth.HandleFunc("/favorites", h.GetFavorites).Methods("GET")
	subAuth.HandleFunc("/favorites", h.AddFavorite).Methods("POST")
	subAuth.HandleFunc("/favorites/{productId:[0-9]+}", h.RemoveFavorite).Methods("DELETE")

	api.HandleFunc("/promo/validate", h.ValidatePromo).Methods("POST")

	api.HandleFunc("/orders/quote", h.QuoteOrder).Methods("POST")
	subAuth.HandleFunc("/orders", h.GetCurrentUserOrders).Methods("GET")
	subAuth.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	subAuth.HandleFunc("/orders/{id:[0-9]+}", h.GetOrderById).Methods("GET")
	subAuth.HandleFunc("/orders/{id:[0-9]+}/cancel", h.CancelOrder).Methods("POST")

	subManAuth.HandleFunc("/stats", h.Stats).Methods("GET")
	subManAuth.HandleFunc("/users", h.ListUsers).Methods("GET")
	subManAuth.HandleFunc("/products", h.CreateProduct).Methods("POST")
	subManAuth.HandleFunc("/products/export", h.ExportProducts).Methods("GET")
	subManAuth.HandleFunc("/products/{id:[0-9]+}", h.UpdateProduct).Methods("PUT")
	subManAuth.HandleFunc("/products/{id:[0-9]+}", h.DeleteProduct).Methods("DELETE")
	subManAuth.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	subManAuth.HandleFunc("/categories/{id:[0-9]+}", h.UpdateCategory).Methods("PUT")
	subManAuth.HandleFunc("/categories/{id:[0-9]+}", h.DeleteCategory).Methods("DELETE")
	subManAuth.HandleFunc("/promo-codes", h.ListPromoCodes).Methods("GET")
	subManAuth.HandleFunc("/promo-codes", h.CreatePromoCode).Methods("POST")
	subManAuth.HandleFunc("/promo-codes/{id:[0-9]+}", h.UpdatePromoCode).Methods("PUT")
	subManAuth.HandleFunc("/promo-codes/{id:[0-9]+}", h.DeletePromoCode).Methods("DELETE")
	subManAuth.HandleFunc("/orders", h.SearchOrders).Methods("GET")
	subManAuth.HandleFunc("/orders/{id:[0-9]+}/status", h.SetOrderStatus).Methods("PATCH")

	return router
}

// Server wraps the routes with CORS and an access log in combined format.
// Query tokens are taken off the URL before the log sees it.
func (h *Handler) Server(origins []string, accessLog io.Writer) http.Handler {
	var handler http.Handler = h.Routes()
	handler = ghandlers.CORS(
		ghandlers.AllowedOrigins(origins),
		ghandlers.AllowedMethods([]string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		ghandlers.AllowedHeaders([]string{"Authorization", "Content-Type"}),
		ghandlers.ExposedHeaders([]string{"Content-Disposition"}),
	)(handler)
	if accessLog != nil {
		handler = ghandlers.CombinedLoggingHandler(accessLog, handler)
	}
	return StripQueryToken(handler)
}
