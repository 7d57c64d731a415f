package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/intelligence-service/platform/internal/logging"
	"github.com/intelligence-service/platform/internal/middleware"
)

func newTestServer(t *testing.T) (*httptest.Server, *Service, *MemoryStore, *TokenManager) {
	t.Helper()
	store := NewMemoryStore()
	tokens := newTestTokenManager(t)
	service := NewService(store, tokens, NewActivityLog(100, nil), logging.NewNop())
	handler := NewHandler(service, logging.NewNop())

	authMW := middleware.NewAuthMiddleware(tokens, logging.NewNop(), PublicPaths)
	server := httptest.NewServer(authMW.Handler(handler.Router()))
	t.Cleanup(server.Close)
	return server, service, store, tokens
}

func postJSON(t *testing.T, url, token string, payload interface{}) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func getJSON(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func TestHealthIsPublic(t *testing.T) {
	server, _, _, _ := newTestServer(t)
	resp, err := http.Get(server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestLoginEndpoint(t *testing.T) {
	server, _, store, _ := newTestServer(t)
	seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleAdmin, ClearanceTopSecret, true)

	resp := postJSON(t, server.URL+"/auth/login", "", map[string]string{
		"matricule": "AF-1234P",
		"password":  "hunter2hunter2",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pair.AccessToken == "" {
		t.Fatal("empty access token")
	}

	bad := postJSON(t, server.URL+"/auth/login", "", map[string]string{
		"matricule": "AF-1234P",
		"password":  "nope",
	})
	defer bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login status = %d, want 401", bad.StatusCode)
	}
}

func TestUsersMeRequiresToken(t *testing.T) {
	server, _, store, tokens := newTestServer(t)
	user := seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	resp := getJSON(t, server.URL+"/users/me", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("unauthenticated /users/me status = %d, want 401", resp.StatusCode)
	}

	token, err := tokens.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	resp = getJSON(t, server.URL+"/users/me", token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/users/me status = %d, want 200", resp.StatusCode)
	}
	var me User
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if me.Matricule != "AF-1234P" {
		t.Errorf("me.Matricule = %q", me.Matricule)
	}
}

func TestUserCRUDRequiresAdmin(t *testing.T) {
	server, _, store, tokens := newTestServer(t)
	field := seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)
	admin := seedUser(t, store, "AD-0001A", "hunter2hunter2", RoleAdmin, ClearanceTopSecret, true)

	fieldToken, err := tokens.IssueAccessToken(field)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	adminToken, err := tokens.IssueAccessToken(admin)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	newUser := map[string]interface{}{
		"matricule":       "NB-2222B",
		"full_name":       "New Operator",
		"email":           "new@example.com",
		"password":        "hunter2hunter2",
		"role":            "field",
		"clearance_level": "confidential",
	}

	resp := postJSON(t, server.URL+"/users", fieldToken, newUser)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("field-created user status = %d, want 403", resp.StatusCode)
	}

	resp = postJSON(t, server.URL+"/users", adminToken, newUser)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin-created user status = %d, want 201", resp.StatusCode)
	}

	if _, err := store.GetUserByMatricule(context.Background(), "NB-2222B"); err != nil {
		t.Errorf("created user missing from store: %v", err)
	}
}

func TestVerifyTokenEndpoint(t *testing.T) {
	server, _, store, tokens := newTestServer(t)
	user := seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleCommander, ClearanceSecret, true)

	token, err := tokens.IssueAccessToken(user)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	resp := postJSON(t, server.URL+"/auth/verify-token", "", map[string]string{"token": token})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify-token status = %d, want 200", resp.StatusCode)
	}
	var result VerifyResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Valid || result.Role != "commander" {
		t.Errorf("result = %+v", result)
	}

	// The Authorization header works without a body token.
	viaHeader := postJSON(t, server.URL+"/auth/verify-token", token, map[string]string{})
	defer viaHeader.Body.Close()
	if viaHeader.StatusCode != http.StatusOK {
		t.Fatalf("verify-token via header status = %d, want 200", viaHeader.StatusCode)
	}
	result = VerifyResult{}
	if err := json.NewDecoder(viaHeader.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !result.Valid || result.Matricule != "AF-1234P" {
		t.Errorf("header result = %+v", result)
	}

	bad := postJSON(t, server.URL+"/auth/verify-token", "", map[string]string{"token": "garbage"})
	bad.Body.Close()
	if bad.StatusCode != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", bad.StatusCode)
	}
}

func TestLoginFormEndpoint(t *testing.T) {
	server, _, store, _ := newTestServer(t)
	seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	resp, err := http.PostForm(server.URL+"/auth/login/form", url.Values{
		"username": {"AF-1234P"},
		"password": {"hunter2hunter2"},
	})
	if err != nil {
		t.Fatalf("POST /auth/login/form: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("form login status = %d, want 200", resp.StatusCode)
	}
	var pair TokenPair
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if pair.AccessToken == "" || pair.Matricule != "AF-1234P" {
		t.Errorf("pair = %+v", pair)
	}
}
