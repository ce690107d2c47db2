package remote

import (
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

func newAdapter(t *testing.T, handler http.HandlerFunc) *HTTPAdapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPAdapter(srv.URL, 2*time.Second, logging.NewDiscardLogger())
}

func TestFetchAll_Success(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getMembers", r.URL.Query().Get("action"))
		assert.NotEmpty(t, r.URL.Query().Get("_"), "cache-busting param")
		_, _ = w.Write([]byte(`[{"id":"root-001","username":"admin"}]`))
	})

	members, err := a.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "root-001", members[0].ID)
}

func TestFetchAll_EmptyStore(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	})

	members, err := a.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestFetchAll_ErrorEnvelope(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"script quota exceeded"}`))
	})

	_, err := a.FetchAll(context.Background())
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable)
}

func TestFetchAll_NonJSONBody(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	})

	_, err := a.FetchAll(context.Background())
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable)
}

func TestFetchAll_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	t.Cleanup(srv.Close)

	a := NewHTTPAdapter(srv.URL, 50*time.Millisecond, logging.NewDiscardLogger())
	_, err := a.FetchAll(context.Background())
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable)
}

func TestRegister_PostsWireShape(t *testing.T) {
	var got map[string]any
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "register", r.URL.Query().Get("action"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	m := model.Member{
		ID:       "m1",
		Username: "alice",
		JoinedAt: time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC),
		Level:    1,
		ParentID: "root-001",
	}
	require.NoError(t, a.Register(context.Background(), m))

	assert.Equal(t, "m1", got["id"])
	assert.Equal(t, "2025-05-01T10:00:00Z", got["joinedAt"])
	assert.Equal(t, float64(1), got["level"])
}

func TestRegister_ServerRejection(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"row append failed"}`))
	})

	err := a.Register(context.Background(), model.Member{ID: "m1"})
	assert.ErrorIs(t, err, common.ErrRemoteUnavailable)
	assert.Contains(t, err.Error(), "row append failed")
}

func TestAddUtility_FlattensOwner(t *testing.T) {
	var got map[string]any
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "addUtility", r.URL.Query().Get("action"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true}`))
	})

	u := model.Utility{ID: "u1", Type: model.UtilityTypePower, Status: model.UtilityStatusPending}
	require.NoError(t, a.AddUtility(context.Background(), "m1", u))

	assert.Equal(t, "m1", got["userId"])
	assert.Equal(t, "u1", got["id"])
	assert.Equal(t, "Luce", got["type"])
}

func TestUpdateUtilityStatus_SendsAdminToken(t *testing.T) {
	var header string
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		header = r.Header.Get(common.AdminTokenHeaderName)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	a.SetAdminToken("tok123")

	err := a.UpdateUtilityStatus(context.Background(), "m1", "u1", model.UtilityStatusActive)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok123", header)
}

func TestFetchAttachment(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "getUtilityAttachment", r.URL.Query().Get("action"))
		assert.Equal(t, "u1", r.URL.Query().Get("utilityId"))
		_, _ = w.Write([]byte(`{"success":true,"attachmentData":"QkFTRTY0"}`))
	})

	data, err := a.FetchAttachment(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "QkFTRTY0", data)
}

func TestAdminLogin_ReturnsToken(t *testing.T) {
	a := newAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "admin", body["username"])
		_, _ = w.Write([]byte(`{"success":true,"token":"jwt-abc"}`))
	})

	tok, err := a.AdminLogin(context.Background(), "admin", "password")
	require.NoError(t, err)
	assert.Equal(t, "jwt-abc", tok)
}
