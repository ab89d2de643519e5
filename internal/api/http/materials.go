package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mathclass/mathclass-lms/internal/course"
)

type materialReq struct {
	Title      string `json:"title" validate:"required,max=200"`
	Type       string `json:"type" validate:"required,oneof=video document interactive image"`
	ContentURL string `json:"content_url" validate:"required,url"`
	LessonID   string `json:"lesson_id"`
}

func CreateMaterialHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req materialReq
		if !decodeValid(w, r, &req) {
			return
		}
		m, err := store.CreateMaterial(r.Context(), course.Material{
			Title:      strings.TrimSpace(req.Title),
			Type:       req.Type,
			ContentURL: req.ContentURL,
			LessonID:   req.LessonID,
		})
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, m)
	}
}

func GetMaterialHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := store.GetMaterial(r.Context(), chi.URLParam(r, "materialID"))
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "material not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func UpdateMaterialHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req materialReq
		if !decodeValid(w, r, &req) {
			return
		}
		m, err := store.UpdateMaterial(r.Context(), course.Material{
			ID:         chi.URLParam(r, "materialID"),
			Title:      strings.TrimSpace(req.Title),
			Type:       req.Type,
			ContentURL: req.ContentURL,
			LessonID:   req.LessonID,
		})
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "material not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func DeleteMaterialHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.DeleteMaterial(r.Context(), chi.URLParam(r, "materialID"))
		if errors.Is(err, course.ErrNotFound) {
			http.Error(w, "material not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ListMaterialsHandler serves both the public catalog and authenticated
// views; materials are public content.
func ListMaterialsHandler(store course.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := store.ListMaterials(r.Context(), course.MaterialListOpts{
			LessonID: r.URL.Query().Get("lesson_id"),
			Type:     r.URL.Query().Get("type"),
			Limit:    parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:   parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
