package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"strings"

	apierrors "github.com/maruel/postdb/internal/errors"
	"github.com/maruel/postdb/internal/media"
)

// MediaHandler handles media upload and retrieval.
type MediaHandler struct {
	store          *media.Store
	maxUploadBytes int64
}

// NewMediaHandler creates a new media handler.
func NewMediaHandler(store *media.Store, maxUploadBytes int64) *MediaHandler {
	return &MediaHandler{store: store, maxUploadBytes: maxUploadBytes}
}

// Upload stores the multipart file field "media" and returns its path.
// This is a raw http.HandlerFunc because it handles multipart forms.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	// Leave room for the multipart envelope.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+64<<10)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeErrorResponse(w, r, apierrors.PayloadTooLarge(h.maxUploadBytes).Wrap(err))
			return
		}
		writeErrorResponse(w, r, apierrors.BadRequest("Invalid multipart form").Wrap(err))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			slog.ErrorContext(r.Context(), "Failed to remove multipart temp files", "err", err)
		}
	}()

	file, header, err := r.FormFile("media")
	if err != nil {
		writeErrorResponse(w, r, apierrors.MissingField("media"))
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.ErrorContext(r.Context(), "Failed to close uploaded file", "err", err)
		}
	}()
	if header.Size > h.maxUploadBytes {
		writeErrorResponse(w, r, apierrors.PayloadTooLarge(h.maxUploadBytes))
		return
	}

	ref, err := h.store.Put(file)
	if err != nil {
		if errors.Is(err, media.ErrEmpty) {
			writeErrorResponse(w, r, apierrors.BadRequest("Empty file").Wrap(err))
			return
		}
		writeErrorResponse(w, r, apierrors.StorageUnavailable().Wrap(err))
		return
	}
	slog.InfoContext(r.Context(), "Stored media", "ref", ref, "filename", header.Filename)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(UploadMediaResponse{MediaPath: media.Path(ref), Size: header.Size}); err != nil {
		slog.ErrorContext(r.Context(), "Failed to write media response", "err", err)
	}
}

// Serve streams a stored file. Content is immutable so it is cached forever.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ref := media.Ref(r.PathValue("ref"))
	if err := ref.Validate(); err != nil {
		writeErrorResponse(w, r, apierrors.NotFound("media"))
		return
	}
	f, err := h.store.Open(ref)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeErrorResponse(w, r, apierrors.NotFound("media"))
			return
		}
		writeErrorResponse(w, r, apierrors.StorageUnavailable().Wrap(err))
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.ErrorContext(r.Context(), "Failed to close media", "err", err)
		}
	}()
	fi, err := f.Stat()
	if err != nil {
		writeErrorResponse(w, r, apierrors.StorageUnavailable().Wrap(err))
		return
	}
	contentType, err := sniffMediaType(f)
	if err != nil {
		writeErrorResponse(w, r, apierrors.StorageUnavailable().Wrap(err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	if contentType == "application/octet-stream" {
		w.Header().Set("Content-Disposition", "attachment")
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; sandbox")
	http.ServeContent(w, r, "", fi.ModTime(), f)
}

// sniffMediaType returns the detected type of f when it is an image, audio or
// video, and application/octet-stream otherwise. f is rewound.
//
// Uploads carry no trusted type, and anything the browser could render as a
// document must not be served inline from this origin.
func sniffMediaType(f io.ReadSeeker) (string, error) {
	var buf [512]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	contentType := http.DetectContentType(buf[:n])
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		for _, prefix := range []string{"image/", "audio/", "video/"} {
			if strings.HasPrefix(mediaType, prefix) {
				return mediaType, nil
			}
		}
	}
	return "application/octet-stream", nil
}
