package app

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"nahueltrek/api/internal/auth"
	"nahueltrek/api/internal/export"
	"nahueltrek/api/internal/logger"
	"nahueltrek/api/internal/media"
	"nahueltrek/api/internal/rbac"
	"nahueltrek/api/internal/search"
	"nahueltrek/api/internal/store"
)

// multipartOverhead is added to the image limit to leave room for form boundaries.
const multipartOverhead = 1 << 20

type HTTPServer struct {
	service     *Service
	corsOrigin  string
	redirectURL string
	log         *logger.Logger
}

// NewHTTPServer builds the API handler. redirectURL, when set, is where the
// OAuth callback sends the browser after completing an authorization.
func NewHTTPServer(service *Service, corsOrigin, redirectURL string, log *logger.Logger) *HTTPServer {
	if log == nil {
		log = logger.Nop()
	}
	return &HTTPServer{service: service, corsOrigin: corsOrigin, redirectURL: redirectURL, log: log}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		s.handleReady(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/admin/login" {
		var body struct {
			Password string `json:"password"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		token, exp, err := s.service.AdminLogin(body.Password)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"token": token, "expiresAt": exp.Unix()})
		return
	}

	role := s.role(r)
	parts := splitPath(r.URL.Path)
	if len(parts) < 2 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[1] {
	case "google":
		s.handleGoogle(w, r, role, parts)
	case "actividades":
		s.handleActivities(w, r, role, parts)
	case "lugares":
		s.handlePlaces(w, r, role, parts)
	case "reservas":
		s.handleReservations(w, r, role, parts)
	case "imagenes":
		s.handleImages(w, r, role, parts)
	case "search":
		s.handleSearch(w, r, role, parts)
	case "calendar":
		s.handleCalendar(w, r, role, parts)
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	statusCode := http.StatusOK
	checks := map[string]any{}
	for name, err := range s.service.Ready(ctx) {
		if err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks[name] = map[string]any{"status": "error", "error": err.Error()}
			continue
		}
		checks[name] = map[string]any{"status": "ok"}
	}

	writeJSON(w, statusCode, map[string]any{
		"ok":     status == "ready",
		"status": status,
		"checks": checks,
		"google": s.service.GoogleStatus()["subsystems"],
	})
}

func (s *HTTPServer) handleGoogle(w http.ResponseWriter, r *http.Request, role rbac.Role, parts []string) {
	if len(parts) == 3 && parts[2] == "status" && r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, s.service.GoogleStatus())
		return
	}

	if len(parts) == 3 && parts[2] == "callback" && r.Method == http.MethodGet {
		q := r.URL.Query()
		if errMsg := q.Get("error"); errMsg != "" {
			writeError(w, http.StatusBadRequest, "GOOGLE_CONSENT_DENIED", errMsg, nil)
			return
		}
		sub, err := s.service.GoogleCallback(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		if s.redirectURL != "" {
			http.Redirect(w, r, s.redirectURL+"?google="+url.QueryEscape(string(sub)), http.StatusFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "subsystem": sub})
		return
	}

	if len(parts) == 4 && r.Method == http.MethodPost {
		if !s.authorize(w, r, role, rbac.ActionManage) {
			return
		}
		switch parts[3] {
		case "auth":
			result, err := s.service.GoogleAuthenticate(r.Context(), parts[2])
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, result)
			return
		case "logout":
			if err := s.service.GoogleLogout(r.Context(), parts[2]); err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleActivities(w http.ResponseWriter, r *http.Request, role rbac.Role, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			list, err := s.service.ListActivities(r.Context(), queryBool(r, "destacado"))
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			if !s.authorize(w, r, role, rbac.ActionManage) {
				return
			}
			var body struct {
				store.Activity
				Fecha string `json:"fecha"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			result, err := s.service.CreateActivity(r.Context(), body.Activity, body.Fecha)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, result)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	id := parts[2]
	if len(parts) == 4 && parts[3] == "reservas" && r.Method == http.MethodGet {
		if !s.authorize(w, r, role, rbac.ActionManage) {
			return
		}
		list, err := s.service.ListActivityReservations(r.Context(), id)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
		return
	}
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch r.Method {
	case http.MethodGet:
		a, err := s.service.GetActivity(r.Context(), id)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	case http.MethodPut:
		if !s.authorize(w, r, role, rbac.ActionManage) {
			return
		}
		var patch store.ActivityPatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		a, err := s.service.UpdateActivity(r.Context(), id, patch)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	case http.MethodDelete:
		if !s.authorize(w, r, role, rbac.ActionManage) {
			return
		}
		if err := s.service.DeleteActivity(r.Context(), id); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handlePlaces(w http.ResponseWriter, r *http.Request, role rbac.Role, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			categoria := strings.TrimSpace(r.URL.Query().Get("categoria"))
			list, err := s.service.ListPlaces(r.Context(), categoria, queryBool(r, "destacado"))
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			if !s.authorize(w, r, role, rbac.ActionManage) {
				return
			}
			var body store.Place
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			p, err := s.service.CreatePlace(r.Context(), body)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, p)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	id := parts[2]
	switch r.Method {
	case http.MethodGet:
		p, err := s.service.GetPlace(r.Context(), id)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodPut:
		if !s.authorize(w, r, role, rbac.ActionManage) {
			return
		}
		var patch store.PlacePatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		p, err := s.service.UpdatePlace(r.Context(), id, patch)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	case http.MethodDelete:
		if !s.authorize(w, r, role, rbac.ActionManage) {
			return
		}
		if err := s.service.DeletePlace(r.Context(), id); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleReservations(w http.ResponseWriter, r *http.Request, role rbac.Role, parts []string) {
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			if !s.authorize(w, r, role, rbac.ActionManage) {
				return
			}
			q := r.URL.Query()
			list, err := s.service.ListReservations(r.Context(), store.ReservationFilter{
				ActividadID: strings.TrimSpace(q.Get("actividadId")),
				Estado:      strings.TrimSpace(q.Get("estado")),
			})
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, list)
		case http.MethodPost:
			if !s.authorize(w, r, role, rbac.ActionBook) {
				return
			}
			var body BookingRequest
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			result, err := s.service.Book(r.Context(), body)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, result)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}
	if len(parts) != 3 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if !s.authorize(w, r, role, rbac.ActionManage) {
		return
	}

	if parts[2] == "export" && r.Method == http.MethodGet {
		q := r.URL.Query()
		result, err := s.service.ExportReservations(r.Context(), export.Request{
			ActividadID: strings.TrimSpace(q.Get("actividadId")),
			Estado:      strings.TrimSpace(q.Get("estado")),
			Format:      export.Format(strings.TrimSpace(q.Get("format"))),
		})
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", result.MimeType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(result.Data)
		return
	}

	id := parts[2]
	switch r.Method {
	case http.MethodGet:
		res, err := s.service.GetReservation(r.Context(), id)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodPut:
		var patch store.ReservationPatch
		if err := decodeBody(r, &patch); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		res, err := s.service.UpdateReservation(r.Context(), id, patch)
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case http.MethodDelete:
		if err := s.service.DeleteReservation(r.Context(), id); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleImages(w http.ResponseWriter, r *http.Request, role rbac.Role, parts []string) {
	if !s.authorize(w, r, role, rbac.ActionManage) {
		return
	}

	if len(parts) == 2 && r.Method == http.MethodPost {
		maxBytes := s.service.imageMaxBytes
		if maxBytes <= 0 {
			maxBytes = media.DefaultMaxBytes
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
		if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file too large", map[string]any{"field": "file"})
				return
			}
			writeError(w, http.StatusBadRequest, "INVALID_BODY", "expected multipart form with a file field", nil)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "file is required", map[string]any{"field": "file"})
			return
		}
		defer file.Close()

		result, err := s.service.UploadImage(r.Context(), media.Image{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		})
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, result)
		return
	}

	if len(parts) == 3 && r.Method == http.MethodDelete {
		ref := parts[2]
		if u := r.URL.Query().Get("url"); u != "" {
			ref = u
		}
		if err := s.service.DeleteImage(r.Context(), ref); err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleSearch(w http.ResponseWriter, r *http.Request, role rbac.Role, parts []string) {
	if len(parts) != 2 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if !s.authorize(w, r, role, rbac.ActionRead) {
		return
	}
	q := r.URL.Query()
	filterType := search.ResultType(strings.TrimSpace(q.Get("type")))
	if filterType != "" && filterType != search.ResultActividad && filterType != search.ResultLugar {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be actividad or lugar", nil)
		return
	}
	limit, ok := queryInt(w, r, "limit", 20)
	if !ok {
		return
	}
	offset, ok := queryInt(w, r, "offset", 0)
	if !ok {
		return
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	writeJSON(w, http.StatusOK, s.service.Search(r.Context(), search.Query{
		Text:       strings.TrimSpace(q.Get("q")),
		FilterType: filterType,
		Categoria:  strings.TrimSpace(q.Get("categoria")),
		Destacado:  queryBool(r, "destacado"),
		Limit:      limit,
		Offset:     offset,
	}))
}

func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request, role rbac.Role, parts []string) {
	if len(parts) == 3 && parts[2] == "availability" && r.Method == http.MethodGet {
		avail, err := s.service.Availability(r.Context(), r.URL.Query().Get("fecha"))
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, avail)
		return
	}

	if len(parts) == 3 && parts[2] == "events" && r.Method == http.MethodGet {
		q := r.URL.Query()
		events, err := s.service.CalendarEvents(r.Context(), q.Get("from"), q.Get("to"))
		if err != nil {
			s.writeMappedError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, events)
		return
	}

	if len(parts) == 4 && parts[2] == "events" {
		eventID := parts[3]
		switch r.Method {
		case http.MethodPut:
			if !s.authorize(w, r, role, rbac.ActionManage) {
				return
			}
			var body struct {
				ActividadID string `json:"actividadId"`
				Fecha       string `json:"fecha"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			ref, err := s.service.UpdateCalendarEvent(r.Context(), eventID, body.ActividadID, body.Fecha)
			if err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, ref)
			return
		case http.MethodDelete:
			if !s.authorize(w, r, role, rbac.ActionManage) {
				return
			}
			if err := s.service.DeleteCalendarEvent(r.Context(), eventID); err != nil {
				s.writeMappedError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// role resolves the caller from the bearer token. A missing or bad token is the public role.
func (s *HTTPServer) role(r *http.Request) rbac.Role {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return rbac.RolePublic
	}
	role, err := s.service.admin.Verify(token)
	if err != nil {
		return rbac.RolePublic
	}
	return role
}

func (s *HTTPServer) authorize(w http.ResponseWriter, r *http.Request, role rbac.Role, action rbac.Action) bool {
	if rbac.Can(role, action) {
		return true
	}
	if auth.BearerToken(r.Header.Get("Authorization")) == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return false
	}
	writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
	return false
}

func (s *HTTPServer) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request failed", "request_id", requestID(r.Context()), "path", r.URL.Path, "code", code, "error", err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", reqID)

		next.ServeHTTP(writer, r)

		s.log.Info("request",
			"request_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", writer.status,
			"duration_ms", time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(r.URL.Query().Get(key)))
	return err == nil && v
}

func queryInt(w http.ResponseWriter, r *http.Request, key string, fallback int) (int, bool) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, true
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", key+" must be an integer", nil)
		return 0, false
	}
	return parsed, true
}
