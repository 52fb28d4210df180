package handlers

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"storefront/models"

	"golang.org/x/time/rate"
)

type ctxKey int

const (
	userIdKey ctxKey = iota
	roleKey
	queryTokenKey
)

func userIdFrom(r *http.Request) int {
	id, _ := r.Context().Value(userIdKey).(int)
	return id
}

func roleFrom(r *http.Request) string {
	role, _ := r.Context().Value(roleKey).(string)
	return role
}

func bearerToken(r *http.Request) string {
	if t, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(t)
	}
	return ""
}

var queryTokenParams = []string{"token", "access_token"}

// StripQueryToken moves a token or access_token query parameter into the
// request context so nothing downstream, the access log included, sees it in
// the URL. Only QueryTokenAuthMiddleware reads it back.
func StripQueryToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var token string
		found := false
		for _, name := range queryTokenParams {
			if !q.Has(name) {
				continue
			}
			found = true
			if token == "" {
				token = q.Get(name)
			}
			q.Del(name)
		}
		if !found {
			next.ServeHTTP(w, r)
			return
		}
		r = r.Clone(context.WithValue(r.Context(), queryTokenKey, token))
		r.URL.RawQuery = q.Encode()
		r.RequestURI = r.URL.RequestURI()
		next.ServeHTTP(w, r)
	})
}

func queryTokenFrom(r *http.Request) string {
	t, _ := r.Context().Value(queryTokenKey).(string)
	return t
}

func (h *Handler) authenticate(next http.Handler, w http.ResponseWriter, r *http.Request, token string) {
	if token == "" {
		WriteErrorResponse(w, models.Errorf(models.ErrUnauthorized, "authorization required"))
		return
	}
	userId, role, err := h.us.Authenticate(token)
	if err != nil {
		WriteErrorResponse(w, err)
		return
	}
	ctx := context.WithValue(r.Context(), userIdKey, userId)
	ctx = context.WithValue(ctx, roleKey, role)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// AuthMiddleware accepts the access token from the Authorization header only.
func (h *Handler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.authenticate(next, w, r, bearerToken(r))
	})
}

// QueryTokenAuthMiddleware also accepts a token passed in the query, for
// websocket upgrades that cannot set headers.
func (h *Handler) QueryTokenAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = queryTokenFrom(r)
		}
		h.authenticate(next, w, r, token)
	})
}

// AdminMiddleware must run after one of the auth middlewares.
func (h *Handler) AdminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if roleFrom(r) != models.RoleAdmin {
			WriteErrorResponse(w, models.Errorf(models.ErrForbidden, "admin access required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) ErrorHandleMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("panic occured: %v \n stacktrace: %v", rec, string(debug.Stack()))
				writeMessage(w, http.StatusInternalServerError, "something went wrong, contact with service administration")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// ipLimiter keeps one token bucket per client address.
type ipLimiter struct {
	mu       sync.Mutex
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
}

type visitor struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPLimiter(perSecond float64, burst int) *ipLimiter {
	if perSecond <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	return &ipLimiter{
		limit:    rate.Limit(perSecond),
		burst:    burst,
		visitors: map[string]*visitor{},
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	v, ok := l.visitors[ip]
	if !ok {
		if len(l.visitors) > 10000 {
			l.sweep(now)
		}
		v = &visitor{lim: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.seen = now
	return v.lim.AllowN(now, 1)
}

func (l *ipLimiter) sweep(now time.Time) {
	for ip, v := range l.visitors {
		if now.Sub(v.seen) > 10*time.Minute {
			delete(l.visitors, ip)
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (h *Handler) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limit != nil && !h.limit.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeMessage(w, http.StatusTooManyRequests, "too many requests, slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WriteErrorResponse(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrBadRequest):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrNotAllowed):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		writeMessage(w, status, "server error")
		return
	}
	writeMessage(w, status, models.Message(err))
}
