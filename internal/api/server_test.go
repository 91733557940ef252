package api

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autogram/autogram/internal/activity"
	"github.com/autogram/autogram/internal/api/auth"
	"github.com/autogram/autogram/internal/config"
	"github.com/autogram/autogram/internal/rules"
)

const testAppSecret = "test-app-secret"

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Port = 0
	cfg.Auth.JWTSecret = "test-jwt-secret"
	cfg.Webhook.VerifyToken = "verify-me"
	cfg.Webhook.AppSecret = testAppSecret

	store := activity.NewStore()
	users := auth.NewUserStore()

	return NewServer(Options{
		Config:  cfg,
		Store:   store,
		Service: activity.NewService(store),
		Rules:   rules.NewStore(),
		Users:   users,
		Tokens:  auth.NewTokenService(users, cfg.Auth.JWTSecret),
	})
}

func doJSON(s *Server, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func loginTestUser(t *testing.T, s *Server) string {
	t.Helper()

	creds := map[string]string{"email": "ops@example.com", "password": "s3cret-password"}
	rec := doJSON(s, http.MethodPost, "/api/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(s, http.MethodPost, "/api/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func commentPayload(username string) map[string]interface{} {
	return map[string]interface{}{
		"post_url":           "https://instagram.com/p/abc",
		"commenter_username": username,
		"commenter_user_id":  "u-" + username,
		"comment_text":       "love this, send info",
		"reply_sent":         true,
		"reply_text":         "check your DMs",
		"rule_id":            "rule-1",
		"rule_name":          "Welcome",
		"target_account":     "brand_main",
	}
}

func dmPayload(username, status string) map[string]interface{} {
	return map[string]interface{}{
		"recipient_username": username,
		"recipient_user_id":  "u-" + username,
		"message":            "here is the link",
		"status":             status,
		"rule_id":            "rule-1",
		"rule_name":          "Welcome",
		"target_account":     "brand_main",
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(s, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	creds := map[string]string{"email": "dash@example.com", "password": "long-enough-pw"}

	rec := doJSON(s, http.MethodPost, "/api/v1/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, rec.Code)

	// Duplicate registration conflicts.
	rec = doJSON(s, http.MethodPost, "/api/v1/auth/register", "", creds)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "dash@example.com", "password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/auth/login", "", creds)
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		TokenType    string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	assert.Equal(t, "bearer", strings.ToLower(login.TokenType))

	// Authenticated write works.
	rec = doJSON(s, http.MethodPost, "/api/v1/logs/comments", login.AccessToken, commentPayload("alice"))
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Refresh rotates the pair; the old refresh token becomes unusable.
	rec = doJSON(s, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(s, http.MethodPost, "/api/v1/auth/refresh", "", map[string]string{"refresh_token": login.RefreshToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout revokes the access token.
	rec = doJSON(s, http.MethodPost, "/api/v1/auth/logout", login.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(s, http.MethodPost, "/api/v1/logs/comments", login.AccessToken, commentPayload("bob"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWriteEndpointsRequireAuth(t *testing.T) {
	s := newTestServer(t)

	paths := []struct {
		method string
		path   string
		body   interface{}
	}{
		{http.MethodPost, "/api/v1/logs/comments", commentPayload("x")},
		{http.MethodPost, "/api/v1/logs/dms", dmPayload("x", "delivered")},
		{http.MethodDelete, "/api/v1/logs/comments/some-id", nil},
		{http.MethodPost, "/api/v1/logs/clear", nil},
		{http.MethodPost, "/api/v1/rules", nil},
	}
	for _, p := range paths {
		rec := doJSON(s, p.method, p.path, "", p.body)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", p.method, p.path)
	}

	// Reads stay open for the dashboard.
	rec := doJSON(s, http.MethodGet, "/api/v1/logs/comments", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCommentLogLifecycle(t *testing.T) {
	s := newTestServer(t)
	token := loginTestUser(t, s)

	rec := doJSON(s, http.MethodPost, "/api/v1/logs/comments", token, commentPayload("alice"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	rec = doJSON(s, http.MethodGet, "/api/v1/logs/comments", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Comments []activity.CommentEvent `json:"comments"`
		Total    int                     `json:"total"`
		HasMore  bool                    `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Comments, 1)
	assert.Equal(t, created.ID, page.Comments[0].ID)
	assert.Equal(t, 1, page.Total)
	assert.False(t, page.HasMore)
	assert.NotEmpty(t, page.Comments[0].Timestamp)

	rec = doJSON(s, http.MethodDelete, "/api/v1/logs/comments/"+created.ID, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(s, http.MethodDelete, "/api/v1/logs/comments/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateCommentValidation(t *testing.T) {
	s := newTestServer(t)
	token := loginTestUser(t, s)

	t.Run("missing required field", func(t *testing.T) {
		payload := commentPayload("alice")
		delete(payload, "rule_name")

		rec := doJSON(s, http.MethodPost, "/api/v1/logs/comments", token, payload)
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "rule_name", body["field"])
	})

	t.Run("error message on successful reply", func(t *testing.T) {
		payload := commentPayload("alice")
		payload["error_message"] = "rate limited"

		rec := doJSON(s, http.MethodPost, "/api/v1/logs/comments", token, payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unparsable timestamp", func(t *testing.T) {
		payload := commentPayload("alice")
		payload["timestamp"] = "yesterday"

		rec := doJSON(s, http.MethodPost, "/api/v1/logs/comments", token, payload)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestDMLogsStatusFilter(t *testing.T) {
	s := newTestServer(t)
	token := loginTestUser(t, s)

	for i, status := range []string{"delivered", "delivered", "failed", "pending"} {
		payload := dmPayload(fmt.Sprintf("user%d", i), status)
		if status == "failed" {
			payload["error_message"] = "blocked by recipient"
		}
		rec := doJSON(s, http.MethodPost, "/api/v1/logs/dms", token, payload)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	var page struct {
		DMs   []activity.DMEvent `json:"dms"`
		Total int                `json:"total"`
	}

	rec := doJSON(s, http.MethodGet, "/api/v1/logs/dms?status_filter=success", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 2, page.Total)

	rec = doJSON(s, http.MethodGet, "/api/v1/logs/dms?status_filter=failed", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Equal(t, 1, page.Total)
	assert.Equal(t, activity.DMFailed, page.DMs[0].Status)
}

func TestPaginationParams(t *testing.T) {
	s := newTestServer(t)
	token := loginTestUser(t, s)

	for i := 0; i < 5; i++ {
		rec := doJSON(s, http.MethodPost, "/api/v1/logs/comments", token, commentPayload(fmt.Sprintf("user%d", i)))
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var page struct {
		Comments []activity.CommentEvent `json:"comments"`
		Total    int                     `json:"total"`
		Skip     int                     `json:"skip"`
		Limit    int                     `json:"limit"`
		HasMore  bool                    `json:"has_more"`
	}

	rec := doJSON(s, http.MethodGet, "/api/v1/logs/comments?skip=2&limit=2", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Len(t, page.Comments, 2)
	assert.Equal(t, 5, page.Total)
	assert.Equal(t, 2, page.Skip)
	assert.True(t, page.HasMore)

	// Oversized limit clamps instead of failing.
	rec = doJSON(s, http.MethodGet, "/api/v1/logs/comments?limit=5000", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 100, page.Limit)
	assert.Len(t, page.Comments, 5)
}

func TestClearLogs(t *testing.T) {
	s := newTestServer(t)
	token := loginTestUser(t, s)

	rec := doJSON(s, http.MethodPost, "/api/v1/logs/comments", token, commentPayload("alice"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(s, http.MethodPost, "/api/v1/logs/dms", token, dmPayload("bob", "delivered"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/logs/clear?log_type=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(s, http.MethodPost, "/api/v1/logs/clear?log_type=comments", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var page struct {
		Total int `json:"total"`
	}
	rec = doJSON(s, http.MethodGet, "/api/v1/logs/comments", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 0, page.Total)

	rec = doJSON(s, http.MethodGet, "/api/v1/logs/dms", "", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Total)
}

func TestStatsEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := loginTestUser(t, s)

	rec := doJSON(s, http.MethodPost, "/api/v1/logs/comments", token, commentPayload("alice"))
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = doJSON(s, http.MethodPost, "/api/v1/logs/dms", token, dmPayload("bob", "delivered"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/logs/stats", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats activity.Statistics
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalComments)
	assert.Equal(t, 1, stats.TotalDMsSent)
	assert.Equal(t, 100.0, stats.SuccessRateComments)

	rec = doJSON(s, http.MethodGet, "/api/v1/logs/stats/daily?days=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var series activity.DailySeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Equal(t, 3, series.Days)
	assert.Len(t, series.DailyStats, 3)

	rec = doJSON(s, http.MethodGet, "/api/v1/logs/stats/by-rule", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rollup activity.RuleRollup
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rollup))
	assert.Equal(t, 1, rollup.TotalRules)
}

func TestRulesEndpoints(t *testing.T) {
	s := newTestServer(t)
	token := loginTestUser(t, s)

	rule := map[string]interface{}{
		"rule_name":           "Welcome",
		"keywords":            []string{"info", "link"},
		"comment_reply":       "check your DMs",
		"target_account":      "brand_main",
		"target_content_type": "all-content",
		"is_active":           true,
	}

	rec := doJSON(s, http.MethodPost, "/api/v1/rules", token, rule)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created rules.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.CreatedAt)

	t.Run("validation", func(t *testing.T) {
		bad := map[string]interface{}{"rule_name": "No keywords"}
		rec := doJSON(s, http.MethodPost, "/api/v1/rules", token, bad)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get and list", func(t *testing.T) {
		rec := doJSON(s, http.MethodGet, "/api/v1/rules/"+created.ID, "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(s, http.MethodGet, "/api/v1/rules?filter=active", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var list struct {
			Rules []rules.Rule `json:"rules"`
			Count int          `json:"count"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		assert.Equal(t, 1, list.Count)
	})

	t.Run("toggle", func(t *testing.T) {
		rec := doJSON(s, http.MethodPatch, "/api/v1/rules/"+created.ID+"/toggle", token, map[string]bool{"is_active": false})
		require.Equal(t, http.StatusOK, rec.Code)

		var toggled rules.Rule
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &toggled))
		assert.False(t, toggled.IsActive)
	})

	t.Run("update", func(t *testing.T) {
		rec := doJSON(s, http.MethodPut, "/api/v1/rules/"+created.ID, token, map[string]interface{}{
			"comment_reply": "updated reply",
		})
		require.Equal(t, http.StatusOK, rec.Code)

		var updated rules.Rule
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
		assert.Equal(t, "updated reply", updated.CommentReply)

		rec = doJSON(s, http.MethodPut, "/api/v1/rules/missing-id", token, map[string]interface{}{})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("summary and bulk delete", func(t *testing.T) {
		rec := doJSON(s, http.MethodGet, "/api/v1/rules/stats/summary", "", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var summary rules.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
		assert.Equal(t, 1, summary.TotalRules)

		rec = doJSON(s, http.MethodPost, "/api/v1/rules/bulk-delete", token, []string{created.ID, "missing-id"})
		require.Equal(t, http.StatusOK, rec.Code)
		var result rules.BulkDeleteResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
		assert.Equal(t, 1, result.DeletedCount)
		assert.Equal(t, 1, result.NotFoundCount)
	})
}

func TestWebhookVerification(t *testing.T) {
	s := newTestServer(t)

	rec := doJSON(s, http.MethodGet, "/api/v1/webhooks/instagram?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=12345", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12345", rec.Body.String())

	rec = doJSON(s, http.MethodGet, "/api/v1/webhooks/instagram?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=12345", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(s, http.MethodGet, "/api/v1/webhooks/instagram?hub.mode=unsubscribe&hub.verify_token=verify-me", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookSignature(t *testing.T) {
	s := newTestServer(t)

	body := `{"object":"instagram","entry":[]}`
	mac := hmac.New(sha256.New, []byte(testAppSecret))
	mac.Write([]byte(body))
	signature := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/instagram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", signature)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/instagram", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hub-Signature-256", "sha256=deadbeef")
	rec = httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
