package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/avetrano/matrixflow/internal/common"
	"github.com/avetrano/matrixflow/internal/logging"
	"github.com/avetrano/matrixflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	members []model.Member

	registered    []model.Member
	registerErr   error
	addedOwners   []string
	added         []model.Utility
	statusCalls   []string
	patches       []model.MemberPatch
	attachment    string
	attachmentErr error

	token    string
	loginErr error

	verifiedWith string
	verifyErr    error
}

func (f *fakeService) ListMembers(context.Context) ([]model.Member, error) {
	return f.members, nil
}

func (f *fakeService) Register(_ context.Context, m *model.Member) error {
	if f.registerErr != nil {
		return f.registerErr
	}
	f.registered = append(f.registered, *m)
	return nil
}

func (f *fakeService) AddUtility(_ context.Context, memberID string, u *model.Utility) error {
	f.addedOwners = append(f.addedOwners, memberID)
	f.added = append(f.added, *u)
	return nil
}

func (f *fakeService) UpdateMember(_ context.Context, memberID string, patch model.MemberPatch) error {
	f.patches = append(f.patches, patch)
	return nil
}

func (f *fakeService) UpdateUtilityStatus(_ context.Context, utilityID string, status model.UtilityStatus) error {
	f.statusCalls = append(f.statusCalls, utilityID+"/"+string(status))
	return nil
}

func (f *fakeService) Attachment(context.Context, string) (string, error) {
	if f.attachmentErr != nil {
		return "", f.attachmentErr
	}
	return f.attachment, nil
}

func (f *fakeService) AdminLogin(context.Context, string, string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.token, nil
}

func (f *fakeService) VerifyAdminToken(token string) (string, error) {
	if f.verifyErr != nil {
		return "", f.verifyErr
	}
	f.verifiedWith = token
	return "admin", nil
}

func newTestServer(t *testing.T, svc *fakeService) *httptest.Server {
	t.Helper()
	h := NewHandler(svc, logging.NewDiscardLogger())
	ts := httptest.NewServer(h.Routes())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any, header http.Header) *http.Response {
	t.Helper()
	encoded, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(encoded))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestGetMembers(t *testing.T) {
	svc := &fakeService{members: []model.Member{
		{ID: "root-001", Username: "admin", JoinedAt: time.Now().UTC(), Utilities: []model.Utility{}},
	}}
	ts := newTestServer(t, svc)

	resp, err := http.Get(ts.URL + "/?action=getMembers")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var got []model.Member
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "admin", got[0].Username)
}

func TestRegister_ParsesWireTimestamp(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc)

	resp := postJSON(t, ts.URL+"/?action=register", map[string]any{
		"id": "m1", "username": "alice", "joinedAt": "2025-06-01T10:00:00Z",
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, svc.registered, 1)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), svc.registered[0].JoinedAt)
}

func TestRegister_DuplicateGetsErrorEnvelope(t *testing.T) {
	svc := &fakeService{registerErr: common.ErrDuplicateUsername}
	ts := newTestServer(t, svc)

	resp := postJSON(t, ts.URL+"/?action=register", map[string]any{
		"id": "m1", "username": "alice",
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var env errorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.NotEmpty(t, env.Error)
}

func TestAddUtility_FlattenedOwner(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc)

	resp := postJSON(t, ts.URL+"/?action=addUtility", map[string]any{
		"id": "u1", "userId": "m1", "type": "Gas", "provider": "Eni",
		"dateAdded": "2025-06-02T09:00:00Z", "status": "Pending",
	}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, svc.added, 1)
	assert.Equal(t, []string{"m1"}, svc.addedOwners)
	assert.Equal(t, model.UtilityTypeGas, svc.added[0].Type)
}

func TestUpdateUtilityStatus_RequiresBearerToken(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc)
	body := map[string]any{"userId": "m1", "utilityId": "u1", "status": "Active"}

	resp := postJSON(t, ts.URL+"/?action=updateUtilityStatus", body, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, svc.statusCalls)

	header := http.Header{}
	header.Set(common.AdminTokenHeaderName, "Bearer tok-1")
	resp = postJSON(t, ts.URL+"/?action=updateUtilityStatus", body, header)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "tok-1", svc.verifiedWith)
	assert.Equal(t, []string{"u1/Active"}, svc.statusCalls)
}

func TestUpdateUtilityStatus_RejectsUnknownStatus(t *testing.T) {
	svc := &fakeService{}
	ts := newTestServer(t, svc)

	header := http.Header{}
	header.Set(common.AdminTokenHeaderName, "Bearer tok-1")
	resp := postJSON(t, ts.URL+"/?action=updateUtilityStatus",
		map[string]any{"userId": "m1", "utilityId": "u1", "status": "Attiva"}, header)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, svc.statusCalls)
}

func TestAdminLogin(t *testing.T) {
	svc := &fakeService{token: "jwt-1"}
	ts := newTestServer(t, svc)

	resp := postJSON(t, ts.URL+"/?action=adminLogin",
		map[string]any{"username": "admin", "password": "password"}, nil)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var env struct {
		Success bool   `json:"success"`
		Token   string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.True(t, env.Success)
	assert.Equal(t, "jwt-1", env.Token)
}

func TestAdminLogin_BadCredentials(t *testing.T) {
	svc := &fakeService{loginErr: common.ErrInvalidCredentials}
	ts := newTestServer(t, svc)

	resp := postJSON(t, ts.URL+"/?action=adminLogin",
		map[string]any{"username": "admin", "password": "nope"}, nil)
	resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetUtilityAttachment(t *testing.T) {
	svc := &fakeService{attachment: "QUJD"}
	ts := newTestServer(t, svc)

	resp, err := http.Get(ts.URL + "/?action=getUtilityAttachment&utilityId=u1")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var env struct {
		Success        bool   `json:"success"`
		AttachmentData string `json:"attachmentData"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	assert.Equal(t, "QUJD", env.AttachmentData)
}

func TestGetUtilityAttachment_NotFound(t *testing.T) {
	svc := &fakeService{attachmentErr: common.ErrNotFound}
	ts := newTestServer(t, svc)

	resp, err := http.Get(ts.URL + "/?action=getUtilityAttachment&utilityId=ghost")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownAction(t *testing.T) {
	ts := newTestServer(t, &fakeService{})

	resp, err := http.Get(ts.URL + "/?action=dropTables")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
