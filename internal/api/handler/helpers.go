package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"capturesque/internal/common"
	"capturesque/internal/domain/model"

	"github.com/go-chi/chi/v5"
)

// respondError maps err onto its status and logs server-side failures with
// their full cause.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, status int, err error) {
	if status >= http.StatusInternalServerError {
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	common.RespondWithDomainError(w, status, err)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		common.RespondWithError(w, http.StatusBadRequest, "Invalid request payload: "+err.Error())
		return false
	}
	return true
}

// wildcardPath is the slash-separated remainder matched by a "/*" route.
func wildcardPath(r *http.Request) string {
	p := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(p); err == nil {
			p = unescaped
		}
	}
	return p
}

// splitFilePath separates "a/b/pic.png" into folder "a/b" and file
// "pic.png". A single segment names a file in the root.
func splitFilePath(p string) (folder, name string) {
	p = strings.TrimRight(p, "/")
	i := strings.LastIndex(p, "/")
	if i < 0 {
		return "", p
	}
	return p[:i], p[i+1:]
}

// baseURL is the externally visible scheme://host of the request.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = strings.TrimSpace(strings.Split(p, ",")[0])
	}
	host := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		host = strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return scheme + "://" + host
}

func serveFile(w http.ResponseWriter, r *http.Request, log *slog.Logger, fi *model.FileInfo) {
	f, err := os.Open(fi.AbsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			common.RespondWithError(w, http.StatusNotFound, "File not found")
			return
		}
		respondError(w, r, log, http.StatusInternalServerError, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", fi.ContentType)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, fi.Name, fi.ModTime, f)
}
