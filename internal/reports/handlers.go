package reports

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/middleware"
)

// maxUploadSize caps attachment uploads at 32 MiB.
const maxUploadSize = 32 << 20

// PublicPaths are reachable without a bearer token.
var PublicPaths = []string{"/health"}

// Handler exposes the reports service over HTTP.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/reports", h.list).Methods(http.MethodGet)
	r.HandleFunc("/reports", h.create).Methods(http.MethodPost)
	r.HandleFunc("/reports/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}", h.update).Methods(http.MethodPut, http.MethodPatch)

	adminOnly := middleware.RequireRole("admin")
	supervisors := middleware.RequireRole("admin", "commander")
	r.Handle("/reports/{id}", adminOnly(http.HandlerFunc(h.delete))).Methods(http.MethodDelete)
	r.Handle("/reports/{id}/approve", supervisors(http.HandlerFunc(h.decide))).Methods(http.MethodPost)

	r.HandleFunc("/reports/{id}/submit", h.submit).Methods(http.MethodPost)
	r.HandleFunc("/reports/{id}/analyze", h.analyze).Methods(http.MethodPost)

	r.HandleFunc("/reports/{id}/comments", h.listComments).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}/comments", h.addComment).Methods(http.MethodPost)
	r.HandleFunc("/reports/{id}/comments/{commentID}", h.deleteComment).Methods(http.MethodDelete)

	r.HandleFunc("/reports/{id}/attachments", h.listAttachments).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}/attachments", h.uploadAttachment).Methods(http.MethodPost)
	r.HandleFunc("/reports/{id}/attachments/{attachmentID}/download", h.downloadAttachment).Methods(http.MethodGet)
	r.HandleFunc("/reports/{id}/attachments/{attachmentID}", h.deleteAttachment).Methods(http.MethodDelete)

	r.HandleFunc("/tags", h.tags).Methods(http.MethodGet)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "reports-service"})
}

func caller(w http.ResponseWriter, r *http.Request) (middleware.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w, "")
	}
	return identity, ok
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := ListFilter{
		Status:         Status(q.Get("status")),
		Classification: Classification(q.Get("classification")),
		SubmittedBy:    q.Get("submitted_by"),
		ApprovedBy:     q.Get("approved_by"),
		Search:         strings.TrimSpace(q.Get("search")),
		Tags:           q["tags"],
	}
	if filter.Status != "" && !ValidStatus(filter.Status) {
		httputil.WriteError(w, errors.BadRequest("unknown status filter"))
		return
	}
	if v := q.Get("from_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, errors.BadRequest("from_date must be RFC 3339"))
			return
		}
		filter.FromDate = t
	}
	if v := q.Get("to_date"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteError(w, errors.BadRequest("to_date must be RFC 3339"))
			return
		}
		filter.ToDate = t
	}
	page := queryInt(q.Get("page"), 1)
	pageSize := queryInt(q.Get("page_size"), 50)

	result, err := h.service.List(r.Context(), identity, filter, page, pageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	var in CreateReportInput
	if err := httputil.DecodeJSONBody(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Create(r.Context(), identity, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, report)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	report, err := h.service.Get(r.Context(), identity, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	var in UpdateReportInput
	if err := httputil.DecodeJSONBody(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Update(r.Context(), identity, mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"detail": "report deleted"})
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	report, err := h.service.Submit(r.Context(), identity, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	var in ApprovalInput
	if err := httputil.DecodeJSONBody(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	report, err := h.service.Decide(r.Context(), identity, mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	analysis, err := h.service.AnalyzeReport(r.Context(), identity, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, analysis)
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	comments, err := h.service.ListComments(r.Context(), identity, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": comments})
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := httputil.DecodeJSONBody(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	comment, err := h.service.AddComment(r.Context(), identity, mux.Vars(r)["id"], strings.TrimSpace(body.Content))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, comment)
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.service.DeleteComment(r.Context(), identity, vars["id"], vars["commentID"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"detail": "comment deleted"})
}

func (h *Handler) listAttachments(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	attachments, err := h.service.ListAttachments(r.Context(), identity, mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": attachments})
}

func (h *Handler) uploadAttachment(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httputil.WriteError(w, errors.BadRequest("invalid multipart upload"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httputil.WriteError(w, errors.BadRequest("file field is required"))
		return
	}
	defer file.Close()

	fileType := header.Header.Get("Content-Type")
	if fileType == "" {
		fileType = "application/octet-stream"
	}
	attachment, err := h.service.AddAttachment(r.Context(), identity, mux.Vars(r)["id"], header.Filename, fileType, file)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, attachment)
}

func (h *Handler) downloadAttachment(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	attachment, reader, err := h.service.OpenAttachment(r.Context(), identity, vars["id"], vars["attachmentID"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", attachment.FileType)
	w.Header().Set("Content-Length", strconv.FormatInt(attachment.FileSize, 10))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.Filename))
	if _, err := io.Copy(w, reader); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("attachment download interrupted")
	}
}

func (h *Handler) deleteAttachment(w http.ResponseWriter, r *http.Request) {
	identity, ok := caller(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	if err := h.service.DeleteAttachment(r.Context(), identity, vars["id"], vars["attachmentID"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"detail": "attachment deleted"})
}

func (h *Handler) tags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.service.Tags(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"items": tags})
}

func queryInt(value string, fallback int) int {
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
