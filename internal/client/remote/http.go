package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/logging"
	"github.com/avetrano/matrixflow/internal/model"
)

// HTTPAdapter talks to the remote store endpoint over HTTP. Safe for
// concurrent use.
type HTTPAdapter struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	log     logging.Logger

	mu         sync.RWMutex
	adminToken string
}

func NewHTTPAdapter(baseURL string, timeout time.Duration, log logging.Logger) *HTTPAdapter {
	return &HTTPAdapter{
		baseURL: baseURL,
		timeout: timeout,
		client:  &http.Client{},
		log:     log.With("module", "remote"),
	}
}

func (a *HTTPAdapter) SetAdminToken(token string) {
	a.mu.Lock()
	a.adminToken = token
	a.mu.Unlock()
}

// envelope is the response wrapper used by every write action and by
// failures on reads.
type envelope struct {
	Success        bool   `json:"success"`
	Error          string `json:"error"`
	Message        string `json:"message"`
	Token          string `json:"token"`
	AttachmentData string `json:"attachmentData"`
}

func unavailable(action string, err error) error {
	return fmt.Errorf("%s: %v: %w", action, err, common.ErrRemoteUnavailable)
}

func unavailableMsg(action, msg string) error {
	return fmt.Errorf("%s: %s: %w", action, msg, common.ErrRemoteUnavailable)
}

// do performs one store call. GET when body is nil, POST otherwise. Any
// transport error, timeout or non-2xx status maps to ErrRemoteUnavailable.
func (a *HTTPAdapter) do(ctx context.Context, action string, params url.Values, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	if params == nil {
		params = url.Values{}
	}
	params.Set("action", action)

	method := http.MethodGet
	var reqBody io.Reader
	if body != nil {
		method = http.MethodPost
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", action, err)
		}
		reqBody = bytes.NewReader(encoded)
	} else {
		// cache-busting timestamp, the store endpoint caches GETs hard
		params.Set("_", strconv.FormatInt(time.Now().UnixMilli(), 10))
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+"?"+params.Encode(), reqBody)
	if err != nil {
		return nil, unavailable(action, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	a.mu.RLock()
	if a.adminToken != "" {
		req.Header.Set(common.AdminTokenHeaderName, "Bearer "+a.adminToken)
	}
	a.mu.RUnlock()

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, unavailable(action, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, unavailable(action, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, unavailableMsg(action, resp.Status)
	}
	return raw, nil
}

// call runs a write action and decodes the response envelope.
func (a *HTTPAdapter) call(ctx context.Context, action string, params url.Values, body any) (*envelope, error) {
	raw, err := a.do(ctx, action, params, body)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, unavailableMsg(action, "malformed response")
	}
	if env.Error != "" {
		return nil, unavailableMsg(action, env.Error)
	}
	return &env, nil
}

func (a *HTTPAdapter) FetchAll(ctx context.Context) ([]model.Member, error) {
	raw, err := a.do(ctx, "getMembers", nil, nil)
	if err != nil {
		return nil, err
	}

	members, err := normalizeMembers(raw)
	if err != nil {
		// Not an array: either an error envelope or garbage. Both mean
		// the store is unusable for this fetch.
		var env envelope
		if jsonErr := json.Unmarshal(raw, &env); jsonErr == nil && env.Error != "" {
			return nil, unavailableMsg("getMembers", env.Error)
		}
		return nil, unavailableMsg("getMembers", "unrecognized response shape")
	}
	return members, nil
}

// registerPayload is the member row as the store expects it: attachment-free
// and with a wire-format timestamp.
type registerPayload struct {
	model.Member
	JoinedAt string `json:"joinedAt"`
}

func (a *HTTPAdapter) Register(ctx context.Context, m model.Member) error {
	payload := registerPayload{Member: m, JoinedAt: m.JoinedAt.UTC().Format(time.RFC3339)}
	_, err := a.call(ctx, "register", nil, payload)
	return err
}

// addUtilityPayload flattens the utility with its owner id, mirroring the
// store's utility sheet columns.
type addUtilityPayload struct {
	model.Utility
	DateAdded string `json:"dateAdded"`
	OwnerID   string `json:"userId"`
}

func (a *HTTPAdapter) AddUtility(ctx context.Context, memberID string, u model.Utility) error {
	payload := addUtilityPayload{
		Utility:   u,
		DateAdded: u.DateAdded.UTC().Format(time.RFC3339),
		OwnerID:   memberID,
	}
	_, err := a.call(ctx, "addUtility", nil, payload)
	return err
}

type updateMemberPayload struct {
	ID string `json:"id"`
	model.MemberPatch
}

func (a *HTTPAdapter) UpdateMemberFields(ctx context.Context, memberID string, patch model.MemberPatch) error {
	_, err := a.call(ctx, "updateMember", nil, updateMemberPayload{ID: memberID, MemberPatch: patch})
	return err
}

type updateStatusPayload struct {
	OwnerID   string `json:"userId"`
	UtilityID string `json:"utilityId"`
	Status    string `json:"status"`
}

func (a *HTTPAdapter) UpdateUtilityStatus(ctx context.Context, memberID, utilityID string, status model.UtilityStatus) error {
	payload := updateStatusPayload{OwnerID: memberID, UtilityID: utilityID, Status: string(status)}
	_, err := a.call(ctx, "updateUtilityStatus", nil, payload)
	return err
}

func (a *HTTPAdapter) FetchAttachment(ctx context.Context, utilityID string) (string, error) {
	params := url.Values{}
	params.Set("utilityId", utilityID)

	raw, err := a.do(ctx, "getUtilityAttachment", params, nil)
	if err != nil {
		return "", err
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return "", unavailableMsg("getUtilityAttachment", "malformed response")
	}
	if env.Error != "" {
		return "", unavailableMsg("getUtilityAttachment", env.Error)
	}
	return env.AttachmentData, nil
}

type adminLoginPayload struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *HTTPAdapter) AdminLogin(ctx context.Context, username, password string) (string, error) {
	env, err := a.call(ctx, "adminLogin", nil, adminLoginPayload{Username: username, Password: password})
	if err != nil {
		return "", err
	}
	return env.Token, nil
}

var _ Adapter = (*HTTPAdapter)(nil)
