package http

import (
	"database/sql"
	"net/http"

	"github.com/mathclass/mathclass-lms/internal/rbac"
)

// Role dashboards are summary counters; the gate in front of these routes
// already guarantees the caller's role matches the area.

func AdminDashboardHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		out := map[string]int{}
		counts := []struct {
			key, query string
		}{
			{"users", `SELECT COUNT(*) FROM users`},
			{"pending_teachers", `SELECT COUNT(*) FROM users WHERE role='teacher' AND is_approved=FALSE`},
			{"courses", `SELECT COUNT(*) FROM courses`},
			{"quizzes", `SELECT COUNT(*) FROM quizzes`},
			{"materials", `SELECT COUNT(*) FROM materials`},
			{"results", `SELECT COUNT(*) FROM results`},
		}
		for _, c := range counts {
			var n int
			if err := db.QueryRowContext(ctx, c.query).Scan(&n); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out[c.key] = n
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func TeacherDashboardHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := rbac.SubjectFromContext(ctx)
		out := map[string]int{}
		counts := []struct {
			key, query string
		}{
			{"courses", `SELECT COUNT(*) FROM courses WHERE teacher_id=$1`},
			{"quizzes", `SELECT COUNT(*) FROM quizzes WHERE created_by=$1`},
			{"students", `SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id=e.course_id WHERE c.teacher_id=$1`},
			{"pending_grading", `SELECT COUNT(*) FROM submissions sub JOIN quizzes qz ON qz.id=sub.quiz_id
				WHERE sub.requires_grading=TRUE AND sub.graded_at IS NULL AND sub.status='finalized'
				  AND (qz.created_by=$1 OR EXISTS(SELECT 1 FROM courses c WHERE c.id=qz.course_id AND c.teacher_id=$1))`},
		}
		for _, c := range counts {
			var n int
			if err := db.QueryRowContext(ctx, c.query, sub).Scan(&n); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			out[c.key] = n
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func StudentDashboardHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sub := rbac.SubjectFromContext(ctx)
		out := map[string]any{}
		var enrolled, attempts, results int
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM enrollments WHERE student_id=$1`, sub).Scan(&enrolled); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM attempts WHERE user_id=$1 AND status='in_progress'`, sub).Scan(&attempts); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM results WHERE user_id=$1`, sub).Scan(&results); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var avg sql.NullFloat64
		if err := db.QueryRowContext(ctx,
			`SELECT AVG(percentage) FROM results WHERE user_id=$1`, sub).Scan(&avg); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		out["enrolled_courses"] = enrolled
		out["open_attempts"] = attempts
		out["results"] = results
		out["average_percentage"] = avg.Float64
		writeJSON(w, http.StatusOK, out)
	}
}
