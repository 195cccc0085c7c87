package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (s *Server) HandleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.executionService.ListTasks(r.Context(), userOf(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": tasks})
}

func (s *Server) HandleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.executionService.GetTask(r.Context(), userOf(r), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": task})
}

func (s *Server) HandleListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := s.executionService.ListActivities(r.Context(), userOf(r))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": activities})
}

func (s *Server) HandleGetActivity(w http.ResponseWriter, r *http.Request) {
	activity, err := s.executionService.GetActivity(r.Context(), userOf(r), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": activity})
}
