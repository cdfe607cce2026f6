package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"capturesque/internal/app/service"
	"capturesque/internal/common"
	"capturesque/internal/domain/model"
)

// multipart parts beyond this stay on disk until the request ends.
const multipartMemory = 32 << 20

type GalleryHandler struct {
	gallery        *service.GalleryService
	maxUploadBytes int64
	log            *slog.Logger
}

func NewGalleryHandler(gallery *service.GalleryService, maxUploadBytes int64, log *slog.Logger) *GalleryHandler {
	return &GalleryHandler{gallery: gallery, maxUploadBytes: maxUploadBytes, log: log}
}

type renameRequest struct {
	NewName string `json:"newName"`
}

type legacyRenameRequest struct {
	FolderID string `json:"folderId"`
	OldName  string `json:"oldName"`
	NewName  string `json:"newName"`
}

// ListRootFolders serves GET /api/images.
func (h *GalleryHandler) ListRootFolders(w http.ResponseWriter, r *http.Request) {
	names, err := h.gallery.ListFolders(r.Context(), "")
	if err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string][]string{"folders": names})
}

// ListImages serves GET /api/images/{path}.
func (h *GalleryHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	recs, err := h.gallery.ListImagesRecursive(r.Context(), wildcardPath(r), baseURL(r))
	if err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, recs)
}

// ListSubfolders serves GET /api/folders/{path}.
func (h *GalleryHandler) ListSubfolders(w http.ResponseWriter, r *http.Request) {
	names, err := h.gallery.ListFolders(r.Context(), wildcardPath(r))
	if err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string][]string{"subfolders": names})
}

func (h *GalleryHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.gallery.DeleteFolder(r.Context(), wildcardPath(r)); err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Folder deleted"})
}

// CreateFolder answers an existing folder with 400.
func (h *GalleryHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	rel, err := h.gallery.CreateFolder(r.Context(), wildcardPath(r))
	if err != nil {
		respondError(w, r, h.log, common.StatusWithConflict(err, http.StatusBadRequest), err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, map[string]string{"message": "Folder created", "folder": rel})
}

// RenameFolder answers an existing destination with 400.
func (h *GalleryHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	rel, err := h.gallery.RenameFolder(r.Context(), wildcardPath(r), req.NewName)
	if err != nil {
		respondError(w, r, h.log, common.StatusWithConflict(err, http.StatusBadRequest), err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Folder renamed", "folder": rel})
}

func (h *GalleryHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	folder, name := splitFilePath(wildcardPath(r))
	fi, err := h.gallery.OpenFile(r.Context(), folder, name)
	if err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	serveFile(w, r, h.log, fi)
}

func (h *GalleryHandler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	folder, name := splitFilePath(wildcardPath(r))
	fi, err := h.gallery.Thumbnail(r.Context(), folder, name)
	if err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	serveFile(w, r, h.log, fi)
}

func (h *GalleryHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	folder, name := splitFilePath(wildcardPath(r))
	fi, err := h.gallery.OpenFile(r.Context(), folder, name)
	if err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fi.Name}))
	serveFile(w, r, h.log, fi)
}

func (h *GalleryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			common.RespondWithError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the size limit")
			return
		}
		common.RespondWithError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	files := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		files = append(files, service.Upload{
			Filename: fh.Filename,
			Open:     func() (io.ReadCloser, error) { return fh.Open() },
		})
	}

	res, err := h.gallery.UploadFiles(r.Context(), wildcardPath(r), files)
	if err != nil {
		status := common.HTTPStatusFromError(err)
		if res != nil && status < http.StatusInternalServerError {
			common.RespondWithJSON(w, status, common.ErrorResponse{Error: err.Error(), Skipped: res.Skipped})
			return
		}
		respondError(w, r, h.log, status, err)
		return
	}
	common.RespondWithJSON(w, http.StatusCreated, uploadResponse(res))
}

func uploadResponse(res *model.UploadResult) map[string]interface{} {
	return map[string]interface{}{
		"message": "Files uploaded",
		"files":   res.Files,
		"skipped": res.Skipped,
	}
}

func (h *GalleryHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	folder, name := splitFilePath(wildcardPath(r))
	if err := h.gallery.DeleteFile(r.Context(), folder, name); err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "File deleted"})
}

// RenameFile serves POST /api/rename-image/{path}/{oldName}.
func (h *GalleryHandler) RenameFile(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	folder, oldName := splitFilePath(wildcardPath(r))
	h.renameFile(w, r, folder, oldName, req.NewName)
}

// RenameFileLegacy serves POST /api/rename with the whole request in the body.
func (h *GalleryHandler) RenameFileLegacy(w http.ResponseWriter, r *http.Request) {
	var req legacyRenameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	h.renameFile(w, r, req.FolderID, req.OldName, req.NewName)
}

func (h *GalleryHandler) renameFile(w http.ResponseWriter, r *http.Request, folder, oldName, newName string) {
	name, err := h.gallery.RenameFile(r.Context(), folder, oldName, newName)
	if err != nil {
		respondError(w, r, h.log, common.HTTPStatusFromError(err), err)
		return
	}
	common.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "File renamed", "name": name})
}
