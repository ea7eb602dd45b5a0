package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/dhia123zeiri/crm-app1-sub001/internal/authz"
	"github.com/dhia123zeiri/crm-app1-sub001/internal/forms"
	"github.com/dhia123zeiri/crm-app1-sub001/internal/middleware"
	"github.com/dhia123zeiri/crm-app1-sub001/internal/services"
	"github.com/dhia123zeiri/crm-app1-sub001/internal/utils"
)

const maxSubmissionBytes = 32 << 20

// Router serves the portal API: the public token-scoped form endpoints a
// client reaches through a disposable link, and the guarded management
// endpoints used by the practice.
type Router struct {
	store  *memoryStore
	engine *authz.Engine
	auth   *services.AuthService
	forms  *services.FormService
	grants *services.GrantService
}

func NewRouter() *Router {
	store := newMemoryStore()
	engine := authz.DefaultEngine()
	return &Router{
		store:  store,
		engine: engine,
		auth:   services.NewAuthService(store, engine, middleware.SignToken),
		forms:  services.NewFormService(store),
		grants: services.NewGrantService(store),
	}
}

func (rt *Router) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/register", rt.handleRegister)           // POST
	mux.HandleFunc("/api/auth/login", rt.handleLogin)                 // POST
	mux.HandleFunc("/api/forms", rt.handleForms)                      // POST, GET
	mux.HandleFunc("/api/clients", rt.handleClients)                  // POST
	mux.HandleFunc("/api/grants", rt.handleIssueGrant)                // POST
	mux.HandleFunc("/api/dynamic-forms/token/", rt.handleResolveForm) // GET
	mux.HandleFunc("/api/dynamic-forms/submit/", rt.handleSubmitForm) // POST
}

// POST /api/auth/register — {email, password, name, role}
func (rt *Router) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := rt.auth.Register(req.Email, req.Password, req.Name, req.Role)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": res})
}

// POST /api/auth/login — returns the token plus the role's landing page.
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := rt.auth.Login(req.Email, req.Password)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": res})
}

// POST|GET /api/forms — create or list form definitions (staff only).
func (rt *Router) handleForms(w http.ResponseWriter, r *http.Request) {
	claims, ok := rt.staff(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodPost:
		var def forms.FormDefinition
		if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
			writeFailure(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := rt.forms.CreateForm(claims.UID, &def)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": created})
	case http.MethodGet:
		list, err := rt.forms.ListForms(claims.UID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": list})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// POST /api/clients — register an accounting client (staff only).
func (rt *Router) handleClients(w http.ResponseWriter, r *http.Request) {
	claims, ok := rt.staff(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var c services.Client
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(c.Name) == "" {
		writeFailure(w, http.StatusBadRequest, "name required")
		return
	}
	if c.ID == "" {
		c.ID = "c" + services.ShortID(8)
	}
	c.ComptableID = claims.UID
	rt.store.AddClient(&c)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": c})
}

// POST /api/grants — {form_id, client_id}; issues a disposable link token.
func (rt *Router) handleIssueGrant(w http.ResponseWriter, r *http.Request) {
	claims, ok := rt.staff(w, r)
	if !ok {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		FormID   string `json:"form_id"`
		ClientID string `json:"client_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := rt.grants.IssueGrant(req.FormID, req.ClientID, claims.UID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": g})
}

// GET /api/dynamic-forms/token/{token} — resolve a disposable link.
func (rt *Router) handleResolveForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/api/dynamic-forms/token/")
	view, err := rt.grants.ResolveGrant(token)
	if err != nil {
		locale := middleware.LocaleFromContext(r.Context())
		writeFailure(w, http.StatusNotFound, utils.T(locale, "form.invalid_link"))
		return
	}
	data := map[string]any{
		"dynamicForm":    view.Form,
		"client":         map[string]any{"name": view.ClientName},
		"comptable":      map[string]any{"name": view.ComptableName},
		"expirationDate": view.ExpirationDate.Format(time.RFC3339),
		"isCompleted":    view.IsCompleted,
	}
	if view.Existing != nil {
		data["existingResponse"] = map[string]any{
			"responses":      view.Existing.Responses,
			"dateCompletion": view.Existing.DateCompletion.Format(time.RFC3339),
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

// POST /api/dynamic-forms/submit/{token} — multipart submission:
// "responses" is the JSON response set, "ipAddress"/"userAgent" the client
// metadata, file parts are named files_{label}_{index}.
func (rt *Router) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := strings.TrimPrefix(r.URL.Path, "/api/dynamic-forms/submit/")
	locale := middleware.LocaleFromContext(r.Context())
	if err := r.ParseMultipartForm(maxSubmissionBytes); err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}
	var responses forms.ResponseSet
	if err := json.Unmarshal([]byte(r.FormValue("responses")), &responses); err != nil {
		writeFailure(w, http.StatusBadRequest, "invalid responses payload")
		return
	}
	meta := services.SubmissionMeta{
		IPAddress: r.FormValue("ipAddress"),
		UserAgent: r.FormValue("userAgent"),
	}
	if meta.IPAddress == "" {
		meta.IPAddress = r.RemoteAddr
	}
	if meta.UserAgent == "" {
		meta.UserAgent = r.UserAgent()
	}

	files := map[string][]forms.FileAttachment{}
	if r.MultipartForm != nil {
		for key, headers := range r.MultipartForm.File {
			label, ok := fileFieldLabel(key)
			if !ok {
				continue
			}
			for _, h := range headers {
				files[label] = append(files[label], forms.FileAttachment{
					Name:        h.Filename,
					Size:        h.Size,
					ContentType: h.Header.Get("Content-Type"),
				})
			}
		}
	}

	fieldErrs, err := rt.grants.CompleteGrant(token, responses, files, meta)
	if err != nil {
		if len(fieldErrs) > 0 {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"message": err.Error(),
				"errors":  fieldErrs,
			})
			return
		}
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": utils.T(locale, "form.submitted")})
}

// fileFieldLabel extracts the field label from a files_{label}_{index}
// part name. Labels may themselves contain underscores, so the index is
// split off from the right.
func fileFieldLabel(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "files_")
	if !ok {
		return "", false
	}
	i := strings.LastIndex(rest, "_")
	if i <= 0 {
		return "", false
	}
	return rest[:i], true
}

// staff authenticates the request and asks the authz engine whether the
// role may manage the practice.
func (rt *Router) staff(w http.ResponseWriter, r *http.Request) (*middleware.Claims, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeFailure(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}
	if !rt.engine.CanManage(claims.Role) {
		writeFailure(w, http.StatusForbidden, "forbidden")
		return nil, false
	}
	return claims, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg})
}

func writeServiceError(w http.ResponseWriter, err error) {
	if se, ok := services.AsServiceError(err); ok {
		writeFailure(w, statusFor(se.Code), se.Message)
		return
	}
	writeFailure(w, http.StatusInternalServerError, err.Error())
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
