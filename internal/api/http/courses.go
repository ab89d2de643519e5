package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mathclass/mathclass-lms/internal/course"
	"github.com/mathclass/mathclass-lms/internal/rbac"
)

type courseReq struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description"`
	Published   bool   `json:"published"`
}

func CreateCourseHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req courseReq
		if !decodeValid(w, r, &req) {
			return
		}
		c, err := store.CreateCourse(r.Context(), course.Course{
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			TeacherID:   rbac.SubjectFromContext(r.Context()),
			Published:   req.Published,
		})
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, c)
	}
}

func GetCourseHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetCourse(r.Context(), chi.URLParam(r, "courseID"))
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func UpdateCourseHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "courseID")
		if !requireCourseOwner(w, r, store, id) {
			return
		}
		var req courseReq
		if !decodeValid(w, r, &req) {
			return
		}
		c, err := store.UpdateCourse(r.Context(), course.Course{
			ID:          id,
			Title:       strings.TrimSpace(req.Title),
			Description: req.Description,
			Published:   req.Published,
		})
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "course not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, c)
	}
}

func DeleteCourseHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "courseID")
		if !requireCourseOwner(w, r, store, id) {
			return
		}
		if err := store.DeleteCourse(r.Context(), id); err != nil {
			if errors.Is(err, course.ErrNotFound) {
				http.Error(w, "course not found", http.StatusNotFound)
				return
			}
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func ListCoursesHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.ListCourses(r.Context(), course.ListOpts{
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

// ---- lessons ----

type lessonReq struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content"`
	Position *int   `json:"position"`
}

func (r lessonReq) position() int {
	if r.Position == nil {
		return course.PositionAppend
	}
	return *r.Position
}

func CreateLessonHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !requireCourseOwner(w, r, store, courseID) {
			return
		}
		var req lessonReq
		if !decodeValid(w, r, &req) {
			return
		}
		l, err := store.CreateLesson(r.Context(), course.Lesson{
			CourseID: courseID,
			Title:    strings.TrimSpace(req.Title),
			Content:  req.Content,
			Position: req.position(),
		})
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func ListLessonsHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.ListLessons(r.Context(), chi.URLParam(r, "courseID"))
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func GetLessonHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := store.GetLesson(r.Context(), chi.URLParam(r, "lessonID"))
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "lesson not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

func UpdateLessonHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "lessonID")
		l, err := store.GetLesson(r.Context(), id)
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "lesson not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		if !requireCourseOwner(w, r, store, l.CourseID) {
			return
		}
		var req lessonReq
		if !decodeValid(w, r, &req) {
			return
		}
		l.Title = strings.TrimSpace(req.Title)
		l.Content = req.Content
		if req.Position != nil && *req.Position >= 0 {
			l.Position = *req.Position
		}
		out, err := store.UpdateLesson(r.Context(), l)
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func DeleteLessonHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "lessonID")
		l, err := store.GetLesson(r.Context(), id)
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "lesson not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		if !requireCourseOwner(w, r, store, l.CourseID) {
			return
		}
		if err := store.DeleteLesson(r.Context(), id); err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- enrollment ----

func EnrollHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		studentID := rbac.SubjectFromContext(r.Context())
		err := store.Enroll(r.Context(), courseID, studentID)
		switch {
		case errors.Is(err, course.ErrNotFound):
			http.Error(w, "course not found", http.StatusNotFound)
		case errors.Is(err, course.ErrAlreadyEnrolled):
			writeJSON(w, http.StatusOK, map[string]string{"status": "already_enrolled"})
		case err != nil:
			http.Error(w, "db error", http.StatusInternalServerError)
		default:
			writeJSON(w, http.StatusCreated, map[string]string{"status": "enrolled"})
		}
	}
}

func UnenrollHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.Unenroll(r.Context(), chi.URLParam(r, "courseID"), rbac.SubjectFromContext(r.Context()))
		switch {
		case errors.Is(err, course.ErrNotFound):
			http.Error(w, "not enrolled", http.StatusNotFound)
		case err != nil:
			http.Error(w, "db error", http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

type batchEnrollReq struct {
	CourseIDs []string `json:"course_ids" validate:"required,min=1,dive,required"`
}

// EnrollBatchHandler enrolls the caller into several courses in one shot.
// The response carries one outcome per course; a mixed batch still returns
// 200 with per-item errors.
func EnrollBatchHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req batchEnrollReq
		if !decodeValid(w, r, &req) {
			return
		}
		out := store.EnrollBatch(r.Context(), rbac.SubjectFromContext(r.Context()), req.CourseIDs)
		writeJSON(w, http.StatusOK, map[string]any{"items": out})
	}
}

func ListEnrollmentsHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		courseID := chi.URLParam(r, "courseID")
		if !requireCourseOwner(w, r, store, courseID) {
			return
		}
		out, err := store.ListEnrollments(r.Context(), courseID)
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// requireCourseOwner admits the owning teacher or an admin.
func requireCourseOwner(w http.ResponseWriter, r *http.Request, store course.Store, courseID string) bool {
	role := rbac.RoleFromContext(r.Context())
	if role == rbac.RoleAdmin {
		return true
	}
	c, err := store.GetCourse(r.Context(), courseID)
	if errors.Is(err, course.ErrNotFound) {
		http.Error(w, "course not found", http.StatusNotFound)
		return false
	}
	if err != nil {
		http.Error(w, "db error", http.StatusInternalServerError)
		return false
	}
	if c.TeacherID != rbac.SubjectFromContext(r.Context()) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}
