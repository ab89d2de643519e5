package http

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mathclass/mathclass-lms/internal/rbac"
)

type userRow struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Role       string `json:"role"`
	IsApproved bool   `json:"is_approved"`
	CreatedAt  int64  `json:"created_at"`
}

// GET /admin/users?role=teacher
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := r.URL.Query().Get("role")
		var (
			rows *sql.Rows
			err  error
		)
		if role == "" {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, role, is_approved, created_at FROM users ORDER BY username`)
		} else {
			rows, err = db.QueryContext(r.Context(),
				`SELECT id, username, role, is_approved, created_at FROM users WHERE role=$1 ORDER BY username`, role)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		out := []userRow{}
		for rows.Next() {
			var u userRow
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.IsApproved, &u.CreatedAt); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out = append(out, u)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// POST /admin/users/{userID}/approve
func ApproveTeacherHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := db.ExecContext(r.Context(),
			`UPDATE users SET is_approved=$1 WHERE id=$2 AND role=$3`,
			true, chi.URLParam(r, "userID"), rbac.RoleTeacher.String())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "teacher not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type updateUserReq struct {
	Role       *string `json:"role" validate:"omitempty,oneof=student teacher admin"`
	IsApproved *bool   `json:"is_approved"`
}

// PATCH /admin/users/{userID}
func UpdateUserHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req updateUserReq
		if !decodeValid(w, r, &req) {
			return
		}
		id := chi.URLParam(r, "userID")

		var role string
		var approved bool
		err := db.QueryRowContext(r.Context(),
			`SELECT role, is_approved FROM users WHERE id=$1`, id).Scan(&role, &approved)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if req.Role != nil {
			role = *req.Role
		}
		if req.IsApproved != nil {
			approved = *req.IsApproved
		}
		if _, err := db.ExecContext(r.Context(),
			`UPDATE users SET role=$1, is_approved=$2 WHERE id=$3`, role, approved, id); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DELETE /admin/users/{userID}
func DeleteUserHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "userID")
		if id == rbac.SubjectFromContext(r.Context()) {
			http.Error(w, "cannot delete own account", http.StatusBadRequest)
			return
		}
		res, err := db.ExecContext(r.Context(), `DELETE FROM users WHERE id=$1`, id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := res.RowsAffected(); n == 0 {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
