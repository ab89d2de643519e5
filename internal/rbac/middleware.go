package rbac

import (
	"net/http"
)

var defaultChecker = NewChecker(nil)

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !defaultChecker.Has(role, perm) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !defaultChecker.Any(role, perms...) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireApprovedTeacher blocks teachers that have not been approved by an
// admin yet. Other roles pass through untouched.
func RequireApprovedTeacher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) == RoleTeacher && !ApprovedFromContext(r.Context()) {
			http.Error(w, "teacher account pending approval", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// DashboardGate guards a role-prefixed dashboard area. A session whose role
// does not match `want` is redirected to /dashboard; an unapproved teacher is
// sent back to /login with a pending-approval marker.
func DashboardGate(want Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == RoleTeacher && !ApprovedFromContext(r.Context()) {
				http.Redirect(w, r, "/login?status=pending_approval", http.StatusSeeOther)
				return
			}
			if role != want {
				http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
