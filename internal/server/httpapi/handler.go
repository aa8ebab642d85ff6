// Package httpapi is the HTTP transport: user routes under /api/v1/users,
// session cookies and the {statusCode, data, message, success} envelope.
package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/auth"
	"github.com/dmitrijs2005/authkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// TokenVerifier checks access tokens for the auth middleware.
type TokenVerifier interface {
	Verify(token string, kind auth.Kind) (*auth.Verified, error)
}

type Options struct {
	CookieSecure   bool
	UploadTempDir  string
	MaxUploadBytes int64
	CORSOrigin     string
}

type Handler struct {
	users    *services.UserService
	verifier TokenVerifier
	metrics  *metrics.Metrics
	logger   logging.Logger
	opts     Options
}

func NewHandler(users *services.UserService, verifier TokenVerifier, m *metrics.Metrics,
	logger logging.Logger, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		users:    users,
		verifier: verifier,
		metrics:  m,
		logger:   logger.With("module", "http"),
		opts:     opts,
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, h.observe, h.recoverer)
	if h.opts.CORSOrigin != "" {
		r.Use(h.cors)
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"}, "ok")
	})
	r.Method(http.MethodGet, "/metrics", h.metrics.Handler())

	r.Route("/api/v1/users", func(r chi.Router) {
		r.Post("/register", h.register)
		r.Post("/login", h.login)
		r.Post("/refresh-token", h.refreshToken)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Post("/logout", h.logout)
			r.Get("/current-user", h.currentUser)
		})
	})
	return r
}

// writeError maps err to its taxonomy status. Internal details are logged,
// never sent.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeFailure(w, http.StatusRequestEntityTooLarge, errBodyTooLarge.Error())
		return
	}
	kind := common.Kind(err)
	if kind == common.ErrorInternal {
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeFailure(w, common.HTTPStatus(kind), common.PublicMessage(err))
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	in, err := decodeCredentials(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.users.Login(r.Context(), services.LoginInput{
		UserName: in.UserName,
		Email:    in.Email,
		Password: in.Password,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setSessionCookies(w, &res.Tokens)
	writeSuccess(w, http.StatusOK, loginResponse{
		User:         res.User,
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
	}, "User logged in successfully")
}

func (h *Handler) refreshToken(w http.ResponseWriter, r *http.Request) {
	token := cookieValue(r, common.RefreshTokenCookieName)
	if token == "" {
		in, err := decodeCredentials(w, r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		token = in.RefreshToken
	}

	pair, err := h.users.RefreshToken(r.Context(), token)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	h.setSessionCookies(w, pair)
	writeSuccess(w, http.StatusOK, pair, "Access token refreshed")
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserIDFromContext(r.Context())
	if err := h.users.Logout(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}

	h.clearSessionCookies(w)
	writeSuccess(w, http.StatusOK, struct{}{}, "User logged out")
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	userID, _ := common.UserIDFromContext(r.Context())
	u, err := h.users.CurrentUser(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, u, "Current user fetched successfully")
}
