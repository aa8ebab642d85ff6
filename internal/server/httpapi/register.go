package httpapi

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/authkeeper/internal/common"
	"github.com/dmitrijs2005/authkeeper/internal/server/services"
)

const (
	avatarField     = "avatar"
	coverImageField = "coverImage"

	// multipartMemory is how much of a multipart body is buffered in memory
	// before the standard library spills parts to disk.
	multipartMemory = 1 << 20
)

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			h.writeError(w, r, common.NewValidationError("multipart form data is required"))
			return
		}
		h.writeError(w, r, bodyError(err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var spooled []string
	defer func() {
		for _, p := range spooled {
			if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
				h.logger.Warn(r.Context(), "remove spooled file failed", "path", p, "error", err)
			}
		}
	}()

	paths := make(map[string]string, 2)
	for _, field := range []string{avatarField, coverImageField} {
		p, err := h.spool(r, field)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if p != "" {
			spooled = append(spooled, p)
			paths[field] = p
		}
	}

	pub, err := h.users.Register(r.Context(), services.RegisterInput{
		FullName:       r.FormValue("fullName"),
		Email:          r.FormValue("email"),
		UserName:       r.FormValue("username"),
		Password:       r.FormValue("password"),
		AvatarPath:     paths[avatarField],
		CoverImagePath: paths[coverImageField],
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeSuccess(w, http.StatusCreated, pub, "User registered successfully")
}

// spool copies the uploaded file in field to the upload temp dir and returns
// its path, or "" when the field is absent.
func (h *Handler) spool(r *http.Request, field string) (string, error) {
	file, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil
		}
		return "", common.NewValidationError(fmt.Sprintf("invalid %s upload", field))
	}
	defer file.Close()

	if err := os.MkdirAll(h.opts.UploadTempDir, 0o750); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(hdr.Filename)))
	dst, err := os.CreateTemp(h.opts.UploadTempDir, field+"-*"+ext)
	if err != nil {
		return "", fmt.Errorf("create spool file: %w", err)
	}

	if _, err := io.Copy(dst, file); err != nil {
		_ = dst.Close()
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("spool %s: %w", field, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(dst.Name())
		return "", fmt.Errorf("spool %s: %w", field, err)
	}
	return dst.Name(), nil
}
