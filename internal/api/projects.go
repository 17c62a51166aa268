package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seia/seia-translator/internal/project"
)

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Projects.List(r.Context())
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "list projects")
			return
		}
		if projects == nil {
			projects = []*project.Project{}
		}
		WriteJSON(w, http.StatusOK, projects)
	}
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Projects.Get(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "load project")
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func updateProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateProjectRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		p, err := cfg.Projects.Update(r.Context(), chi.URLParam(r, "id"), req.Patch())
		if err != nil {
			writeServiceError(w, cfg.Logger, err, "update project")
			return
		}
		WriteJSON(w, http.StatusOK, p)
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Projects.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, cfg.Logger, err, "delete project")
			return
		}
		WriteJSON(w, http.StatusOK, MessageResponse{Message: "project deleted"})
	}
}
