package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mathclass/mathclass-lms/internal/quiz"
	"github.com/mathclass/mathclass-lms/internal/rbac"
)

type quizReq struct {
	CourseID         string  `json:"course_id"`
	Title            string  `json:"title" validate:"required,max=200"`
	Description      string  `json:"description"`
	TimeLimitMinutes int     `json:"time_limit_minutes" validate:"gte=0,lte=600"`
	PassingScore     float64 `json:"passing_score" validate:"gte=0"`
	MaxAttempts      int     `json:"max_attempts" validate:"gte=0,lte=100"`
}

func CreateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req quizReq
		if !decodeValid(w, r, &req) {
			return
		}
		q, err := store.CreateQuiz(r.Context(), quiz.Quiz{
			CourseID:         req.CourseID,
			Title:            strings.TrimSpace(req.Title),
			Description:      req.Description,
			TimeLimitMinutes: req.TimeLimitMinutes,
			PassingScore:     req.PassingScore,
			MaxAttempts:      req.MaxAttempts,
			CreatedBy:        rbac.SubjectFromContext(r.Context()),
		})
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

// GetQuizHandler serves the student-safe view (no keys) to students and the
// full view to the quiz owner / admin.
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())

		q, err := store.GetQuizAdmin(r.Context(), id)
		if errors.Is(err, quiz.ErrNotFound) {
			http.Error(w, "quiz not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		if role != rbac.RoleAdmin && q.CreatedBy != sub {
			for i := range q.Questions {
				q.Questions[i].StripKey()
			}
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func UpdateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		if !requireQuizOwner(w, r, store, id) {
			return
		}
		var req quizReq
		if !decodeValid(w, r, &req) {
			return
		}
		q, err := store.UpdateQuiz(r.Context(), quiz.Quiz{
			ID:               id,
			CourseID:         req.CourseID,
			Title:            strings.TrimSpace(req.Title),
			Description:      req.Description,
			TimeLimitMinutes: req.TimeLimitMinutes,
			PassingScore:     req.PassingScore,
			MaxAttempts:      req.MaxAttempts,
		})
		if errors.Is(err, quiz.ErrNotFound) {
			http.Error(w, "quiz not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func DeleteQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		if !requireQuizOwner(w, r, store, id) {
			return
		}
		if err := store.DeleteQuiz(r.Context(), id); err != nil {
			if errors.Is(err, quiz.ErrNotFound) {
				http.Error(w, "quiz not found", http.StatusNotFound)
				return
			}
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			CourseID:   r.URL.Query().Get("course_id"),
			Q:          r.URL.Query().Get("q"),
			ViewerID:   rbac.SubjectFromContext(r.Context()),
			ViewerRole: rbac.RoleFromContext(r.Context()),
			Limit:      parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:     parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// ---- questions ----

type questionReq struct {
	Text          string   `json:"text" validate:"required"`
	Type          string   `json:"type" validate:"required,oneof=multiple_choice essay"`
	Options       []string `json:"options" validate:"max=4"`
	CorrectAnswer string   `json:"correct_answer"`
	Points        float64  `json:"points" validate:"gte=0"`
	Explanation   string   `json:"explanation"`
	Position      *int     `json:"position"`
}

// position zero is meaningful, so an omitted field appends instead.
func (r questionReq) position() int {
	if r.Position == nil {
		return quiz.PositionAppend
	}
	return *r.Position
}

func CreateQuestionHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		if !requireQuizOwner(w, r, store, quizID) {
			return
		}
		var req questionReq
		if !decodeValid(w, r, &req) {
			return
		}
		if req.Type == quiz.TypeMultipleChoice && req.CorrectAnswer == "" {
			http.Error(w, "correct_answer required for multiple choice", http.StatusBadRequest)
			return
		}
		q, err := store.CreateQuestion(r.Context(), quiz.Question{
			QuizID:        quizID,
			Position:      req.position(),
			Text:          req.Text,
			Type:          req.Type,
			Options:       req.Options,
			CorrectAnswer: req.CorrectAnswer,
			Points:        req.Points,
			Explanation:   req.Explanation,
		})
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, q)
	}
}

func UpdateQuestionHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		if !requireQuizOwner(w, r, store, quizID) {
			return
		}
		var req questionReq
		if !decodeValid(w, r, &req) {
			return
		}
		q, err := store.UpdateQuestion(r.Context(), quiz.Question{
			ID:            chi.URLParam(r, "questionID"),
			QuizID:        quizID,
			Position:      req.position(),
			Text:          req.Text,
			Type:          req.Type,
			Options:       req.Options,
			CorrectAnswer: req.CorrectAnswer,
			Points:        req.Points,
			Explanation:   req.Explanation,
		})
		if errors.Is(err, quiz.ErrNotFound) {
			http.Error(w, "question not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

func DeleteQuestionHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		quizID := chi.URLParam(r, "quizID")
		if !requireQuizOwner(w, r, store, quizID) {
			return
		}
		if err := store.DeleteQuestion(r.Context(), chi.URLParam(r, "questionID")); err != nil {
			if errors.Is(err, quiz.ErrNotFound) {
				http.Error(w, "question not found", http.StatusNotFound)
				return
			}
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func requireQuizOwner(w http.ResponseWriter, r *http.Request, store quiz.Store, quizID string) bool {
	role := rbac.RoleFromContext(r.Context())
	if role == rbac.RoleAdmin {
		return true
	}
	q, err := store.GetQuizAdmin(r.Context(), quizID)
	if errors.Is(err, quiz.ErrNotFound) {
		http.Error(w, "quiz not found", http.StatusNotFound)
		return false
	}
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return false
	}
	if q.CreatedBy != rbac.SubjectFromContext(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}
