package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mathclass/mathclass-lms/internal/attempt"
	"github.com/mathclass/mathclass-lms/internal/quiz"
	"github.com/mathclass/mathclass-lms/internal/rbac"
)

type createAttemptReq struct {
	QuizID string `json:"quiz_id" validate:"required"`
}

func CreateAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createAttemptReq
		if !decodeValid(w, r, &req) {
			return
		}
		a, err := svc.Start(r.Context(), req.QuizID, rbac.SubjectFromContext(r.Context()))
		switch {
		case errors.Is(err, quiz.ErrNotFound):
			http.Error(w, "quiz not found", http.StatusNotFound)
		case errors.Is(err, attempt.ErrNotEnrolled):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, attempt.ErrMaxAttempts):
			http.Error(w, err.Error(), http.StatusConflict)
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusCreated, a)
		}
	}
}

func GetAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Get(r.Context(), chi.URLParam(r, "attemptID"))
		if errors.Is(err, attempt.ErrNotFound) {
			http.Error(w, "attempt not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !mayViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GetAttemptTimeHandler reports the server-authoritative countdown.
func GetAttemptTimeHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := svc.Get(r.Context(), chi.URLParam(r, "attemptID"))
		if errors.Is(err, attempt.ErrNotFound) {
			http.Error(w, "attempt not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !mayViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"attempt_id":    a.ID,
			"status":        a.Status,
			"remaining_sec": a.RemainingSec,
		})
	}
}

func SaveAnswerHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in attempt.AnswerInput
		if !decodeValid(w, r, &in) {
			return
		}
		sub, err := svc.SaveAnswer(r.Context(),
			chi.URLParam(r, "attemptID"), chi.URLParam(r, "questionID"),
			rbac.SubjectFromContext(r.Context()), in)
		switch {
		case errors.Is(err, attempt.ErrNotFound):
			http.Error(w, "attempt not found", http.StatusNotFound)
		case errors.Is(err, attempt.ErrNotOwner):
			http.Error(w, "forbidden", http.StatusForbidden)
		case errors.Is(err, attempt.ErrClosed):
			http.Error(w, "attempt already submitted", http.StatusConflict)
		case errors.Is(err, attempt.ErrUnknownQuestion):
			http.Error(w, "question not part of attempt", http.StatusNotFound)
		case err != nil:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusOK, sub)
		}
	}
}

func SubmitAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := svc.Get(r.Context(), id)
		if errors.Is(err, attempt.ErrNotFound) {
			http.Error(w, "attempt not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if a.UserID != rbac.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		res, err := svc.Submit(r.Context(), id)
		switch {
		case errors.Is(err, attempt.ErrSubmitInFlight):
			// a concurrent finalize is running; the client should poll the result
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitting"})
		case err != nil:
			// nothing was cleared; the attempt is still submittable
			http.Error(w, "submit failed: "+err.Error(), http.StatusBadGateway)
		default:
			writeJSON(w, http.StatusOK, res)
		}
	}
}

func ListAttemptSubmissionsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		a, err := svc.Get(r.Context(), id)
		if errors.Is(err, attempt.ErrNotFound) {
			http.Error(w, "attempt not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if !mayViewAttempt(r, a) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		subs, err := svc.Submissions(r.Context(), id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, subs)
	}
}

// ---- results ----

func GetResultHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.GetResult(r.Context(), chi.URLParam(r, "resultID"))
		if errors.Is(err, attempt.ErrResultNotFound) {
			http.Error(w, "result not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		role := rbac.RoleFromContext(r.Context())
		if role == rbac.RoleStudent && res.UserID != rbac.SubjectFromContext(r.Context()) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func ListResultsHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		role := rbac.RoleFromContext(r.Context())
		if role != rbac.RoleStudent {
			if v := r.URL.Query().Get("user_id"); v != "" {
				userID = v
			}
		}
		out, err := svc.ListResults(r.Context(), userID, r.URL.Query().Get("quiz_id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// mayViewAttempt admits the attempt owner and anyone with attempt:view-all.
func mayViewAttempt(r *http.Request, a attempt.Attempt) bool {
	if a.UserID == rbac.SubjectFromContext(r.Context()) {
		return true
	}
	role := rbac.RoleFromContext(r.Context())
	return role == rbac.RoleTeacher || role == rbac.RoleAdmin
}
