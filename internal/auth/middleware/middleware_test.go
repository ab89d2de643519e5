package auth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mathclass/mathclass-lms/internal/db"
	"github.com/mathclass/mathclass-lms/internal/rbac"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	d, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	d.SetMaxOpenConns(1)
	if err := db.EnsureSchema(context.Background(), d, db.DriverSQLite); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func postJSON(t *testing.T, h http.HandlerFunc, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, _ := json.Marshal(body)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(b)))
	return rec
}

func TestJWTRoundTrip(t *testing.T) {
	a := NewAuthService("test-secret", time.Hour)
	tok, err := a.IssueJWT("user-1", rbac.RoleTeacher, true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := a.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.Sub != "user-1" || claims.Role != "teacher" || !claims.Approved {
		t.Fatalf("claims = %+v", claims)
	}

	if _, err := NewAuthService("other-secret", time.Hour).Parse(tok); err == nil {
		t.Fatal("token verified against the wrong key")
	}
}

func TestJWTMiddlewareAttachesIdentity(t *testing.T) {
	a := NewAuthService("test-secret", time.Hour)
	tok, err := a.IssueJWT("user-1", rbac.RoleStudent, true)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	var gotSub string
	var gotRole rbac.Role
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSub = rbac.SubjectFromContext(r.Context())
		gotRole = rbac.RoleFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if gotSub != "user-1" || gotRole != rbac.RoleStudent {
		t.Fatalf("context identity = %q/%q", gotSub, gotRole)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: status = %d, want 401", rec.Code)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	d := newTestDB(t)
	a := NewAuthService("test-secret", time.Hour)

	rec := postJSON(t, RegisterHandler(d), map[string]string{
		"username": "alice", "password": "s3cret99", "role": "student",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d body = %s", rec.Code, rec.Body)
	}

	rec = postJSON(t, LoginHandler(a, d), map[string]string{"username": "alice", "password": "s3cret99"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status = %d body = %s", rec.Code, rec.Body)
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		Role        string `json:"role"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if resp.Role != "student" || resp.AccessToken == "" {
		t.Fatalf("login response = %+v", resp)
	}

	rec = postJSON(t, LoginHandler(a, d), map[string]string{"username": "alice", "password": "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password: status = %d, want 401", rec.Code)
	}
}

func TestUnapprovedTeacherLoginPendsApproval(t *testing.T) {
	d := newTestDB(t)
	a := NewAuthService("test-secret", time.Hour)

	rec := postJSON(t, RegisterHandler(d), map[string]string{
		"username": "bob", "password": "s3cret99", "role": "teacher",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: status = %d body = %s", rec.Code, rec.Body)
	}
	var reg struct {
		IsApproved bool `json:"is_approved"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &reg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if reg.IsApproved {
		t.Fatal("teacher registered pre-approved")
	}

	rec = postJSON(t, LoginHandler(a, d), map[string]string{"username": "bob", "password": "s3cret99"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unapproved login: status = %d, want 403", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp["status"] != "pending_approval" {
		t.Fatalf("body = %v, want pending_approval marker", resp)
	}

	// admin flips the flag; login now works
	if _, err := d.Exec(`UPDATE users SET is_approved=1 WHERE username='bob'`); err != nil {
		t.Fatalf("approve: %v", err)
	}
	rec = postJSON(t, LoginHandler(a, d), map[string]string{"username": "bob", "password": "s3cret99"})
	if rec.Code != http.StatusOK {
		t.Fatalf("approved login: status = %d body = %s", rec.Code, rec.Body)
	}
}

func TestRegisterRejectsAdminRole(t *testing.T) {
	d := newTestDB(t)
	rec := postJSON(t, RegisterHandler(d), map[string]string{
		"username": "mallory", "password": "s3cret99", "role": "admin",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("admin self-registration: status = %d, want 400", rec.Code)
	}
}
