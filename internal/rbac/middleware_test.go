package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestAs(role Role, approved bool, target string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, target, nil)
	ctx := WithSubject(r.Context(), "user-1")
	ctx = WithRole(ctx, role)
	ctx = WithApproved(ctx, approved)
	return r.WithContext(ctx)
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestDashboardGate(t *testing.T) {
	cases := []struct {
		name         string
		role         Role
		approved     bool
		want         Role
		wantStatus   int
		wantLocation string
	}{
		{"student on own dashboard", RoleStudent, true, RoleStudent, http.StatusOK, ""},
		{"student on teacher dashboard", RoleStudent, true, RoleTeacher, http.StatusSeeOther, "/dashboard"},
		{"student on admin dashboard", RoleStudent, true, RoleAdmin, http.StatusSeeOther, "/dashboard"},
		{"approved teacher on own dashboard", RoleTeacher, true, RoleTeacher, http.StatusOK, ""},
		{"unapproved teacher on own dashboard", RoleTeacher, false, RoleTeacher, http.StatusSeeOther, "/login?status=pending_approval"},
		{"unapproved teacher on student dashboard", RoleTeacher, false, RoleStudent, http.StatusSeeOther, "/login?status=pending_approval"},
		{"teacher on admin dashboard", RoleTeacher, true, RoleAdmin, http.StatusSeeOther, "/dashboard"},
		{"admin on own dashboard", RoleAdmin, true, RoleAdmin, http.StatusOK, ""},
		{"unauthenticated", Role(""), false, RoleStudent, http.StatusSeeOther, "/dashboard"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			DashboardGate(tc.want)(okHandler).ServeHTTP(rec, requestAs(tc.role, tc.approved, "/dashboard/x/summary"))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if loc := rec.Header().Get("Location"); loc != tc.wantLocation {
				t.Fatalf("location = %q, want %q", loc, tc.wantLocation)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	cases := []struct {
		name       string
		role       Role
		perm       string
		wantStatus int
	}{
		{"student views courses", RoleStudent, "course:view", http.StatusOK},
		{"student cannot create courses", RoleStudent, "course:create", http.StatusForbidden},
		{"teacher wildcard covers create", RoleTeacher, "course:create", http.StatusOK},
		{"teacher cannot manage users", RoleTeacher, "users:approve", http.StatusForbidden},
		{"admin star covers everything", RoleAdmin, "users:approve", http.StatusOK},
		{"no role", Role(""), "course:view", http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			Require(tc.perm)(okHandler).ServeHTTP(rec, requestAs(tc.role, true, "/x"))
			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestRequireAny(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireAny("attempt:view-own", "attempt:view-all")(okHandler).
		ServeHTTP(rec, requestAs(RoleStudent, true, "/x"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	RequireAny("grading:list", "users:list")(okHandler).
		ServeHTTP(rec, requestAs(RoleStudent, true, "/x"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestRequireApprovedTeacher(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireApprovedTeacher(okHandler).ServeHTTP(rec, requestAs(RoleTeacher, false, "/x"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unapproved teacher: status = %d, want 403", rec.Code)
	}

	rec = httptest.NewRecorder()
	RequireApprovedTeacher(okHandler).ServeHTTP(rec, requestAs(RoleStudent, false, "/x"))
	if rec.Code != http.StatusOK {
		t.Fatalf("student passthrough: status = %d, want 200", rec.Code)
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"student", "teacher", "admin"} {
		if _, err := ParseRole(s); err != nil {
			t.Fatalf("ParseRole(%q): %v", s, err)
		}
	}
	if _, err := ParseRole("superuser"); err == nil {
		t.Fatal("ParseRole accepted an unknown role")
	}
}
