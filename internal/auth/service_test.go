package auth

import (
	"context"
	"net/http"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/intelligence-service/platform/internal/errors"
	"github.com/intelligence-service/platform/internal/logging"
)

func newTestService(t *testing.T) (*Service, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	service := NewService(store, newTestTokenManager(t), NewActivityLog(100, nil), logging.NewNop())
	return service, store
}

func seedUser(t *testing.T, store *MemoryStore, matricule, password string, role Role, clearance ClearanceLevel, active bool) User {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	user, err := store.CreateUser(context.Background(), User{
		Matricule:      matricule,
		FullName:       "Seeded " + matricule,
		Email:          matricule + "@example.com",
		HashedPassword: string(hashed),
		Role:           role,
		ClearanceLevel: clearance,
		IsActive:       active,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func TestLoginSuccess(t *testing.T) {
	service, store := newTestService(t)
	user := seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	pair, err := service.Login(context.Background(), "AF-1234P", "hunter2hunter2", RequestMeta{RemoteIP: "10.0.0.1"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("Login() returned empty tokens")
	}
	if pair.TokenType != "bearer" {
		t.Errorf("TokenType = %q, want bearer", pair.TokenType)
	}
	if pair.ExpiresIn != 3600 {
		t.Errorf("ExpiresIn = %d, want 3600", pair.ExpiresIn)
	}
	if pair.Role != RoleField || pair.Matricule != "AF-1234P" || pair.FullName != "Seeded AF-1234P" {
		t.Errorf("user fields = %s/%s/%s", pair.Role, pair.Matricule, pair.FullName)
	}

	stored, err := store.GetUser(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUser() error: %v", err)
	}
	if stored.LastLogin.IsZero() {
		t.Error("LastLogin not recorded")
	}

	entries := service.Activity(10)
	if len(entries) != 1 || entries[0].Action != "login" || !entries[0].Success {
		t.Errorf("activity = %+v, want one successful login", entries)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	service, store := newTestService(t)
	seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	_, err := service.Login(context.Background(), "AF-1234P", "wrong-password", RequestMeta{})
	if errors.HTTPStatus(err) != 401 {
		t.Fatalf("Login() with wrong password: status %d, want 401", errors.HTTPStatus(err))
	}

	entries := service.Activity(10)
	if len(entries) != 1 || entries[0].Success {
		t.Errorf("activity = %+v, want one failed login", entries)
	}
}

func TestLoginUnknownMatricule(t *testing.T) {
	service, _ := newTestService(t)
	_, err := service.Login(context.Background(), "ZZ-0000Z", "whatever123", RequestMeta{})
	if errors.HTTPStatus(err) != 401 {
		t.Fatalf("Login() unknown matricule: status %d, want 401", errors.HTTPStatus(err))
	}
}

func TestLoginInactiveAccount(t *testing.T) {
	service, store := newTestService(t)
	seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, false)

	_, err := service.Login(context.Background(), "AF-1234P", "hunter2hunter2", RequestMeta{})
	if errors.HTTPStatus(err) != 403 {
		t.Fatalf("Login() on disabled account: status %d, want 403", errors.HTTPStatus(err))
	}
}

func TestRefreshReusesRefreshToken(t *testing.T) {
	service, store := newTestService(t)
	seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	pair, err := service.Login(context.Background(), "AF-1234P", "hunter2hunter2", RequestMeta{})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	refreshed, err := service.Refresh(context.Background(), pair.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if refreshed.RefreshToken != pair.RefreshToken {
		t.Error("Refresh() minted a new refresh token; should reuse the original")
	}
	if refreshed.AccessToken == "" {
		t.Error("Refresh() returned empty access token")
	}
	// Refresh tokens carry only the subject matricule, so the lookup
	// must resolve the user by it.
	if refreshed.Matricule != "AF-1234P" {
		t.Errorf("Matricule = %q, want AF-1234P", refreshed.Matricule)
	}
	if _, err := service.tokens.ParseAccessToken(refreshed.AccessToken); err != nil {
		t.Errorf("refreshed access token does not validate: %v", err)
	}
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	service, store := newTestService(t)
	seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	pair, err := service.Login(context.Background(), "AF-1234P", "hunter2hunter2", RequestMeta{})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if _, err := service.Refresh(context.Background(), pair.AccessToken); err == nil {
		t.Error("Refresh() accepted an access token")
	}
}

func TestVerifyToken(t *testing.T) {
	service, store := newTestService(t)
	seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleCommander, ClearanceTopSecret, true)

	pair, err := service.Login(context.Background(), "AF-1234P", "hunter2hunter2", RequestMeta{})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	result, err := service.VerifyToken(context.Background(), pair.AccessToken)
	if err != nil {
		t.Fatalf("VerifyToken() error: %v", err)
	}
	if !result.Valid || result.Matricule != "AF-1234P" || result.Role != "commander" || result.ClearanceLevel != "top_secret" {
		t.Errorf("VerifyToken() = %+v", result)
	}

	if _, err := service.VerifyToken(context.Background(), "bogus"); err == nil {
		t.Error("VerifyToken() accepted garbage")
	}
}

func TestCreateUserHashedAndDuplicate(t *testing.T) {
	service, _ := newTestService(t)

	in := CreateUserInput{
		Matricule:      "AF-1234P",
		FullName:       "Test Operator",
		Email:          "operator@example.com",
		Password:       "hunter2hunter2",
		Role:           RoleField,
		ClearanceLevel: ClearanceConfidential,
	}
	user, err := service.CreateUser(context.Background(), in)
	if err != nil {
		t.Fatalf("CreateUser() error: %v", err)
	}
	if user.HashedPassword == in.Password {
		t.Error("password stored in clear")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(in.Password)) != nil {
		t.Error("stored hash does not match password")
	}
	if !user.IsActive {
		t.Error("new user should default to active")
	}

	_, err = service.CreateUser(context.Background(), in)
	if errors.HTTPStatus(err) != 409 {
		t.Errorf("duplicate CreateUser(): status %d, want 409", errors.HTTPStatus(err))
	}
}

func TestUpdateUserPartial(t *testing.T) {
	service, store := newTestService(t)
	user := seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceConfidential, true)

	name := "Renamed Operator"
	role := RoleCommander
	updated, err := service.UpdateUser(context.Background(), user.ID, UpdateUserInput{FullName: &name, Role: &role})
	if err != nil {
		t.Fatalf("UpdateUser() error: %v", err)
	}
	if updated.FullName != name || updated.Role != RoleCommander {
		t.Errorf("UpdateUser() = %+v", updated)
	}
	if updated.Email != user.Email {
		t.Error("untouched field changed")
	}
	if updated.Matricule != user.Matricule {
		t.Error("matricule must be immutable")
	}
}

func TestListUsersPagination(t *testing.T) {
	service, store := newTestService(t)
	seedUser(t, store, "AA-0001A", "hunter2hunter2", RoleField, ClearanceConfidential, true)
	seedUser(t, store, "AA-0002A", "hunter2hunter2", RoleField, ClearanceConfidential, true)
	seedUser(t, store, "AA-0003A", "hunter2hunter2", RoleAdmin, ClearanceTopSecret, true)

	page, err := service.ListUsers(context.Background(), ListFilter{}, 1, 2)
	if err != nil {
		t.Fatalf("ListUsers() error: %v", err)
	}
	if page.Total != 3 || len(page.Items) != 2 || page.Pages != 2 {
		t.Errorf("page = total %d, items %d, pages %d", page.Total, len(page.Items), page.Pages)
	}

	filtered, err := service.ListUsers(context.Background(), ListFilter{Role: RoleAdmin}, 1, 10)
	if err != nil {
		t.Fatalf("ListUsers() error: %v", err)
	}
	if filtered.Total != 1 || filtered.Items[0].Matricule != "AA-0003A" {
		t.Errorf("filtered = %+v", filtered)
	}
}

func TestChangePassword(t *testing.T) {
	service, store := newTestService(t)
	user := seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	if err := service.ChangePassword(context.Background(), user.ID, "wrong", "newpassword1"); errors.HTTPStatus(err) != 401 {
		t.Errorf("wrong current password: status %d, want 401", errors.HTTPStatus(err))
	}
	if err := service.ChangePassword(context.Background(), user.ID, "hunter2hunter2", "hunter2hunter2"); errors.HTTPStatus(err) != 400 {
		t.Error("same password should be rejected")
	}
	if err := service.ChangePassword(context.Background(), user.ID, "hunter2hunter2", "newpassword1"); err != nil {
		t.Fatalf("ChangePassword() error: %v", err)
	}

	if _, err := service.Login(context.Background(), "AF-1234P", "newpassword1", RequestMeta{}); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
	if _, err := service.Login(context.Background(), "AF-1234P", "hunter2hunter2", RequestMeta{}); err == nil {
		t.Error("login with old password still works")
	}
}

func TestDeleteUser(t *testing.T) {
	service, store := newTestService(t)
	user := seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	if err := service.DeleteUser(context.Background(), user.ID); err != nil {
		t.Fatalf("DeleteUser() error: %v", err)
	}
	if err := service.DeleteUser(context.Background(), user.ID); errors.HTTPStatus(err) != 404 {
		t.Errorf("second delete: status %d, want 404", errors.HTTPStatus(err))
	}
}

func TestUpdateProfileCannotEscalate(t *testing.T) {
	service, store := newTestService(t)
	user := seedUser(t, store, "AF-1234P", "hunter2pass", RoleField, ClearanceConfidential, true)

	name := "New Name"
	updated, err := service.UpdateProfile(context.Background(), user.ID, UpdateUserInput{FullName: &name})
	if err != nil {
		t.Fatalf("UpdateProfile() error: %v", err)
	}
	if updated.FullName != "New Name" {
		t.Errorf("FullName = %q", updated.FullName)
	}

	role := RoleAdmin
	if _, err := service.UpdateProfile(context.Background(), user.ID, UpdateUserInput{Role: &role}); errors.HTTPStatus(err) != http.StatusForbidden {
		t.Errorf("role self-assignment status = %d, want 403", errors.HTTPStatus(err))
	}
	clearance := ClearanceTopSecret
	if _, err := service.UpdateProfile(context.Background(), user.ID, UpdateUserInput{ClearanceLevel: &clearance}); errors.HTTPStatus(err) != http.StatusForbidden {
		t.Errorf("clearance self-assignment status = %d, want 403", errors.HTTPStatus(err))
	}
}

func TestVerifyTokenRejectsDeactivatedUser(t *testing.T) {
	service, store := newTestService(t)
	user := seedUser(t, store, "AF-1234P", "hunter2hunter2", RoleField, ClearanceSecret, true)

	pair, err := service.Login(context.Background(), "AF-1234P", "hunter2hunter2", RequestMeta{})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}

	user.IsActive = false
	if _, err := store.UpdateUser(context.Background(), user); err != nil {
		t.Fatalf("UpdateUser() error: %v", err)
	}

	result, err := service.VerifyToken(context.Background(), pair.AccessToken)
	if err == nil || result.Valid {
		t.Errorf("VerifyToken() = %+v, %v; want rejection after deactivation", result, err)
	}

	if err := store.DeleteUser(context.Background(), user.ID); err != nil {
		t.Fatalf("DeleteUser() error: %v", err)
	}
	if _, err := service.VerifyToken(context.Background(), pair.AccessToken); errors.HTTPStatus(err) != http.StatusUnauthorized {
		t.Errorf("VerifyToken() after deletion: status %d, want 401", errors.HTTPStatus(err))
	}
}
