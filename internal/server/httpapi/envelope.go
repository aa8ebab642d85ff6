package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/authkeeper/internal/common"
)

// maxBodyBytes caps JSON and url-encoded request bodies.
const maxBodyBytes = 16 << 10

type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type errorEnvelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

func writeFailure(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorEnvelope{StatusCode: status, Message: message, Success: false})
}

var errBodyTooLarge = errors.New("request body too large")

// credentials is the union of the JSON or form fields accepted by login and
// refresh-token.
type credentials struct {
	UserName     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refreshToken"`
}

// decodeCredentials reads a JSON or url-encoded body. An empty body yields
// zero credentials.
func decodeCredentials(w http.ResponseWriter, r *http.Request) (credentials, error) {
	var c credentials
	if r.Body == nil || r.Body == http.NoBody {
		return c, nil
	}
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer func() { _ = body.Close() }()

	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/x-www-form-urlencoded" {
		raw, err := io.ReadAll(body)
		if err != nil {
			return c, bodyError(err)
		}
		form, err := url.ParseQuery(string(raw))
		if err != nil {
			return c, common.NewValidationError("invalid request body")
		}
		c.UserName = form.Get("username")
		c.Email = form.Get("email")
		c.Password = form.Get("password")
		c.RefreshToken = form.Get("refreshToken")
		return c, nil
	}

	if err := json.NewDecoder(body).Decode(&c); err != nil {
		if errors.Is(err, io.EOF) {
			return credentials{}, nil
		}
		return credentials{}, bodyError(err)
	}
	return c, nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errBodyTooLarge
	}
	return common.NewValidationError("invalid request body")
}
