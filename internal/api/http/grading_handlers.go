package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mathclass/mathclass-lms/internal/grading"
	"github.com/mathclass/mathclass-lms/internal/rbac"
)

// GET /grading/pending: ungraded essay submissions grouped by quiz, scoped
// to the requesting teacher's quizzes.
func ListPendingGradingHandler(svc *grading.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groups, err := svc.ListPending(r.Context(),
			rbac.SubjectFromContext(r.Context()), rbac.RoleFromContext(r.Context()))
		if err != nil {
			http.Error(w, "pending list: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, groups)
	}
}

type gradeReq struct {
	Score    float64 `json:"score" validate:"gte=0"`
	Feedback string  `json:"feedback"`
}

// POST /submissions/{submissionID}/grade
func GradeSubmissionHandler(svc *grading.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gradeReq
		if !decodeValid(w, r, &req) {
			return
		}
		err := svc.ApplyManualGrade(r.Context(), chi.URLParam(r, "submissionID"),
			grading.GradeInput{Score: req.Score, Feedback: req.Feedback},
			rbac.SubjectFromContext(r.Context()), rbac.RoleFromContext(r.Context()))
		switch {
		case errors.Is(err, grading.ErrSubmissionNotFound):
			http.Error(w, "submission not found", http.StatusNotFound)
		case errors.Is(err, grading.ErrNotQuizOwner):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, grading.ErrAlreadyGraded):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, grading.ErrScoreOutOfRange):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case err != nil:
			http.Error(w, "apply grade: "+err.Error(), http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}
