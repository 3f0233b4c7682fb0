package handlers

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"
	"github.com/studygenius/studygenius/internal/documents"
	"github.com/studygenius/studygenius/internal/models"
	"github.com/studygenius/studygenius/internal/queue"
	"github.com/studygenius/studygenius/internal/request"
	"github.com/studygenius/studygenius/internal/session"
	"github.com/studygenius/studygenius/internal/validation"
	"go.uber.org/zap"
)

// DocumentHandler accepts PDF uploads and loads them into the session
type DocumentHandler struct {
	manager  *session.Manager
	jobQueue queue.JobQueue
	logger   *zap.Logger
	maxBytes int64
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(manager *session.Manager, jobQueue queue.JobQueue, logger *zap.Logger, maxBytes int64) *DocumentHandler {
	if maxBytes <= 0 {
		maxBytes = documents.MaxUploadSize
	}
	return &DocumentHandler{manager: manager, jobQueue: jobQueue, logger: logger, maxBytes: maxBytes}
}

// RegisterRoutes registers document routes on the given router.
// The router should already carry the /documents prefix.
func (h *DocumentHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("", h.Upload).Methods("POST")
}

// Upload replaces the session's document with the uploaded PDF. Anything
// that is not a PDF is rejected without touching session state. The
// description is generated in the background; the response carries the
// session as it stands, description pending.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+4096)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		if errors.As(err, new(*http.MaxBytesError)) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large", "File exceeds the maximum upload size")
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Expected a multipart form with a 'file' field")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Missing 'file' field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to read upload")
		return
	}

	name := validation.SanitizeText(filepath.Base(header.Filename))
	if name == "" || name == "." {
		name = "document.pdf"
	}

	doc, err := documents.FromUpload(name, uploadMediaType(header.Header.Get("Content-Type"), name), data)
	if err != nil {
		if errors.Is(err, documents.ErrNotPDF) {
			respondJSONError(w, http.StatusUnsupportedMediaType, "Unsupported Media Type", "Only PDF files are accepted")
			return
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}

	ctx := r.Context()
	id := request.SessionIDFromContext(r)
	sess, err := h.manager.Get(ctx, id)
	if err != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "Failed to load session")
		return
	}

	sess.SetDocument(doc)

	// Persist before enqueueing so the describer finds the document in the
	// store instead of racing the debounce window
	if err := sess.Flush(ctx); err != nil {
		h.logger.Warn("failed to flush session after upload",
			zap.String("session_id", id),
			zap.Error(err),
		)
	}

	// Description generation is best-effort; the upload succeeds even when
	// the queue is down
	job := queue.NewJob(queue.JobTypeDescribeDocument, id, doc.Name)
	if err := h.jobQueue.Enqueue(ctx, job); err != nil {
		h.logger.Error("failed to enqueue describe job",
			zap.String("session_id", id),
			zap.String("document", doc.Name),
			zap.Error(err),
		)
	}

	respondJSON(w, http.StatusCreated, sessionView(sess))
}

// uploadMediaType trusts the client's Content-Type when present and falls
// back to the file extension. Browsers reliably set the part type; curl
// users often do not.
func uploadMediaType(contentType, filename string) string {
	if contentType != "" && contentType != "application/octet-stream" {
		if mediaType, _, found := strings.Cut(contentType, ";"); found || mediaType != "" {
			return strings.TrimSpace(mediaType)
		}
	}
	if strings.EqualFold(filepath.Ext(filename), ".pdf") {
		return models.PDFMediaType
	}
	return contentType
}
