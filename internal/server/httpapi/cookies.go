package httpapi

import (
	"net/http"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

func (h *Handler) cookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
	}
}

func (h *Handler) setSessionCookies(w http.ResponseWriter, pair *models.TokenPair) {
	http.SetCookie(w, h.cookie(common.AccessTokenCookieName, pair.AccessToken))
	http.SetCookie(w, h.cookie(common.RefreshTokenCookieName, pair.RefreshToken))
}

func (h *Handler) clearSessionCookies(w http.ResponseWriter) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := h.cookie(name, "")
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}
