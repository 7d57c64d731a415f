package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/httputil"
	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/middleware"
)

// PublicPaths are reachable without a bearer token.
var PublicPaths = []string{"/health", "/auth/login", "/auth/login/form", "/auth/refresh", "/auth/verify-token"}

// Handler exposes the auth service over HTTP.
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

// Router builds the route table. Authentication is expected to be
// applied by the caller's middleware chain; admin-only routes carry
// their own role guard.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)

	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/login/form", h.loginForm).Methods(http.MethodPost)
	r.HandleFunc("/auth/refresh", h.refresh).Methods(http.MethodPost)
	r.HandleFunc("/auth/verify-token", h.verifyToken).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)

	r.HandleFunc("/users/me", h.currentUser).Methods(http.MethodGet)
	r.HandleFunc("/users/me", h.updateSelf).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/users/me/change-password", h.changePassword).Methods(http.MethodPost)

	adminOnly := middleware.RequireRole(string(RoleAdmin))
	r.Handle("/users", adminOnly(http.HandlerFunc(h.createUser))).Methods(http.MethodPost)
	r.Handle("/users", adminOnly(http.HandlerFunc(h.listUsers))).Methods(http.MethodGet)
	r.Handle("/users/{id}", adminOnly(http.HandlerFunc(h.getUser))).Methods(http.MethodGet)
	r.Handle("/users/{id}", adminOnly(http.HandlerFunc(h.updateUser))).Methods(http.MethodPatch, http.MethodPut)
	r.Handle("/users/{id}", adminOnly(http.HandlerFunc(h.deleteUser))).Methods(http.MethodDelete)

	r.Handle("/audit/activity", adminOnly(http.HandlerFunc(h.activity))).Methods(http.MethodGet)

	return r
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "auth-service"})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Matricule string `json:"matricule"`
		Password  string `json:"password"`
	}
	if err := httputil.DecodeJSONBody(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	pair, err := h.service.Login(r.Context(), body.Matricule, body.Password, requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pair)
}

// loginForm accepts OAuth2 password-grant form credentials, with the
// matricule in the username field.
func (h *Handler) loginForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httputil.WriteError(w, errors.BadRequest("invalid form body"))
		return
	}
	pair, err := h.service.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"), requestMeta(r))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pair)
}

func (h *Handler) refresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := httputil.DecodeJSONBody(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	pair, err := h.service.Refresh(r.Context(), body.RefreshToken)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pair)
}

// verifyToken validates a token for another service. The token comes from
// the Authorization header; a {"token": ...} body is accepted as fallback.
func (h *Handler) verifyToken(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		var body struct {
			Token string `json:"token"`
		}
		if derr := httputil.DecodeJSONBody(r, &body); derr != nil || body.Token == "" {
			httputil.WriteError(w, err)
			return
		}
		token = body.Token
	}
	result, err := h.service.VerifyToken(r.Context(), token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	token, err := middleware.BearerToken(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.service.Logout(r.Context(), token, requestMeta(r))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"detail": "logged out"})
}

func (h *Handler) currentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w, "")
		return
	}
	user, err := h.service.GetUser(r.Context(), identity.UserID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) updateSelf(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w, "")
		return
	}
	var in UpdateUserInput
	if err := httputil.DecodeJSONBody(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.UpdateProfile(r.Context(), identity.UserID, in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.Unauthorized(w, "")
		return
	}
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := httputil.DecodeJSONBody(r, &body); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.service.ChangePassword(r.Context(), identity.UserID, body.CurrentPassword, body.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"detail": "password changed"})
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateUserInput
	if err := httputil.DecodeJSONBody(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.CreateUser(r.Context(), in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, user)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{
		Role:      Role(q.Get("role")),
		Clearance: ClearanceLevel(q.Get("clearance_level")),
		Search:    strings.TrimSpace(q.Get("search")),
	}
	if v := q.Get("is_active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteError(w, errors.BadRequest("is_active must be a boolean"))
			return
		}
		filter.IsActive = &active
	}
	page := queryInt(q.Get("page"), 1)
	pageSize := queryInt(q.Get("page_size"), 50)

	result, err := h.service.ListUsers(r.Context(), filter, page, pageSize)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.GetUser(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var in UpdateUserInput
	if err := httputil.DecodeJSONBody(r, &in); err != nil {
		httputil.WriteError(w, err)
		return
	}
	user, err := h.service.UpdateUser(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteUser(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"detail": "user deleted"})
}

func (h *Handler) activity(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r.URL.Query().Get("limit"), 100)
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"items": h.service.Activity(limit),
	})
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

func requestMeta(r *http.Request) RequestMeta {
	ip := r.Header.Get("X-Forwarded-For")
	if i := strings.IndexByte(ip, ','); i >= 0 {
		ip = ip[:i]
	}
	ip = strings.TrimSpace(ip)
	if ip == "" {
		ip = r.RemoteAddr
	}
	return RequestMeta{RemoteIP: ip, UserAgent: r.UserAgent()}
}
