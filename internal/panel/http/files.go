package http

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/harwood-dev/deskgate/internal/panel/service"
	"github.com/harwood-dev/deskgate/pkg/httpx"
	"github.com/harwood-dev/deskgate/pkg/slogx"
)

// uploadMemoryLimit bounds the multipart parser's in-memory buffer; larger
// parts spill to temp files.
const uploadMemoryLimit = 10 << 20

type FilesHandler struct {
	FileService *service.FileService
}

func writeFileError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, service.ErrPathOutsideRoot):
		ErrForbidden.WriteError(w)
	case errors.Is(err, service.ErrFileNotFound):
		ErrNotFound.WriteError(w)
	case errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrExtensionBlocked),
		errors.Is(err, service.ErrNotARegularFile):
		ErrBadRequest.WriteError(w)
	default:
		return false
	}
	return true
}

// HandleList lists one directory under the managed root.
func (h *FilesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	items, err := h.FileService.List(ctx, r.URL.Query().Get("path"))
	if err != nil {
		if !writeFileError(w, err) {
			log.Error("failed to list files", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

// HandleUpload accepts one multipart file field named "file".
func (h *FilesHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, _ := httpx.UserIDFromContext(ctx)

	if err := r.ParseMultipartForm(uploadMemoryLimit); err != nil {
		ErrBadRequest.WriteError(w)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		ErrBadRequest.WriteError(w)
		return
	}
	defer file.Close()

	item, err := h.FileService.Upload(ctx, r.FormValue("path"), header.Filename, userID, file)
	if err != nil {
		if !writeFileError(w, err) {
			log.Error("failed to store upload", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, item)
}

// HandleDownload streams one file back to the client.
func (h *FilesHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	rc, item, err := h.FileService.Open(ctx, r.URL.Query().Get("path"))
	if err != nil {
		if !writeFileError(w, err) {
			log.Error("failed to open file", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(item.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filepath.Base(item.Name)+`"`)
	if _, err := io.Copy(w, rc); err != nil {
		log.Warn("download interrupted", "path", item.Path, "err", err)
	}
}

// HandleDelete removes one file or empty folder.
func (h *FilesHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID, _ := httpx.UserIDFromContext(ctx)

	if err := h.FileService.Delete(ctx, r.URL.Query().Get("path"), userID); err != nil {
		if !writeFileError(w, err) {
			log.Error("failed to delete file", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// HandleCreateFolder makes a directory under the root.
func (h *FilesHandler) HandleCreateFolder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	path := r.URL.Query().Get("path")
	if path == "" {
		ErrBadRequest.WriteError(w)
		return
	}

	if err := h.FileService.CreateFolder(ctx, path); err != nil {
		if !writeFileError(w, err) {
			log.Error("failed to create folder", "err", err)
			ErrServerError.WriteError(w)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}
