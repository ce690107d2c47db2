// Package httpapi exposes the store contract over a single HTTP endpoint
// dispatching on an "action" query parameter, with JSON bodies on writes and
// an {"error": ...} envelope on failures.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/logging"
	"github.com/avetrano/matrixflow/internal/model"
)

// Service is the slice of the store service the HTTP surface needs.
type Service interface {
	ListMembers(ctx context.Context) ([]model.Member, error)
	Register(ctx context.Context, m *model.Member) error
	AddUtility(ctx context.Context, memberID string, u *model.Utility) error
	UpdateMember(ctx context.Context, memberID string, patch model.MemberPatch) error
	UpdateUtilityStatus(ctx context.Context, utilityID string, status model.UtilityStatus) error
	Attachment(ctx context.Context, utilityID string) (string, error)
	AdminLogin(ctx context.Context, username, password string) (string, error)
	VerifyAdminToken(token string) (string, error)
}

// Handler routes store actions to the service.
type Handler struct {
	service Service
	log     logging.Logger
}

func NewHandler(service Service, log logging.Logger) *Handler {
	return &Handler{service: service, log: log.With("module", "httpapi")}
}

// Routes returns the single-endpoint mux.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.dispatch)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorEnvelope struct {
	Error string `json:"error"`
}

// writeError maps domain errors onto status codes, keeping the error
// envelope shape clients key off.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, common.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, common.ErrDuplicateUsername):
		status = http.StatusConflict
	case errors.Is(err, common.ErrInvalidCredentials), errors.Is(err, common.ErrInvalidToken):
		status = http.StatusUnauthorized
	case errors.Is(err, common.ErrNotAuthorized):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		h.log.Error(ctx, "request failed", "err", err)
	}
	writeJSON(w, status, errorEnvelope{Error: err.Error()})
}

var errUnknownAction = errors.New("unknown action")

func (h *Handler) dispatch(w http.ResponseWriter, r *http.Request) {
	action := r.URL.Query().Get("action")
	switch action {
	case "getMembers":
		h.getMembers(w, r)
	case "getUtilityAttachment":
		h.getUtilityAttachment(w, r)
	case "register":
		h.register(w, r)
	case "addUtility":
		h.addUtility(w, r)
	case "updateMember":
		h.updateMember(w, r)
	case "updateUtilityStatus":
		h.updateUtilityStatus(w, r)
	case "adminLogin":
		h.adminLogin(w, r)
	default:
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: errUnknownAction.Error()})
	}
}

func (h *Handler) getMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.service.ListMembers(r.Context())
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *Handler) getUtilityAttachment(w http.ResponseWriter, r *http.Request) {
	utilityID := r.URL.Query().Get("utilityId")
	if utilityID == "" {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "utilityId required"})
		return
	}
	payload, err := h.service.Attachment(r.Context(), utilityID)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "attachmentData": payload})
}

// registerRequest is the member row as clients send it: a wire-format
// timestamp over the canonical fields.
type registerRequest struct {
	model.Member
	JoinedAt string `json:"joinedAt"`
}

// parseWireTime accepts the timestamp formats clients emit; a bad or missing
// value falls back to now, the store keeps its own clock authoritative
// enough.
func parseWireTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed body"})
		return
	}

	member := req.Member
	member.JoinedAt = parseWireTime(req.JoinedAt)
	if member.ID == "" || member.Username == "" {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "id and username required"})
		return
	}

	if err := h.service.Register(r.Context(), &member); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type addUtilityRequest struct {
	model.Utility
	DateAdded string `json:"dateAdded"`
	OwnerID   string `json:"userId"`
}

func (h *Handler) addUtility(w http.ResponseWriter, r *http.Request) {
	var req addUtilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed body"})
		return
	}
	if req.ID == "" || req.OwnerID == "" {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "id and userId required"})
		return
	}

	utility := req.Utility
	utility.DateAdded = parseWireTime(req.DateAdded)
	if err := h.service.AddUtility(r.Context(), req.OwnerID, &utility); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type updateMemberRequest struct {
	ID string `json:"id"`
	model.MemberPatch
}

func (h *Handler) updateMember(w http.ResponseWriter, r *http.Request) {
	var req updateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed body"})
		return
	}
	if req.ID == "" {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "id required"})
		return
	}
	if err := h.service.UpdateMember(r.Context(), req.ID, req.MemberPatch); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type updateStatusRequest struct {
	OwnerID   string `json:"userId"`
	UtilityID string `json:"utilityId"`
	Status    string `json:"status"`
}

// bearerToken extracts the admin token from the Authorization header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get(common.AdminTokenHeaderName)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return token
	}
	return ""
}

func (h *Handler) updateUtilityStatus(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		h.writeError(r.Context(), w, common.ErrInvalidToken)
		return
	}
	admin, err := h.service.VerifyAdminToken(token)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed body"})
		return
	}

	status := model.UtilityStatus(req.Status)
	switch status {
	case model.UtilityStatusPending, model.UtilityStatusActive, model.UtilityStatusRejected:
	default:
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "unknown status"})
		return
	}

	if err := h.service.UpdateUtilityStatus(r.Context(), req.UtilityID, status); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	h.log.Info(r.Context(), "utility status changed",
		"admin", admin, "utility", req.UtilityID, "status", req.Status)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) adminLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorEnvelope{Error: "malformed body"})
		return
	}
	token, err := h.service.AdminLogin(r.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}
