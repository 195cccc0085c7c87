package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/humanflow/model"
)

type StepRequest struct {
	PointerId string             `json:"pointer_id"`
	Input     []FormRequest      `json:"input"`
	Response  string             `json:"response"`
	Comment   string             `json:"comment"`
	Inputs    []model.PatchInput `json:"inputs"`
}

type AddUserRequest struct {
	Identifier string `json:"identifier"`
}

func (s *Server) HandleStep(w http.ResponseWriter, r *http.Request) {
	var req StepRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	err := s.executionService.Step(r.Context(), userOf(r), req.PointerId, toSubmissions(req.Input), req.Response, req.Comment, req.Inputs)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondAccepted(w, map[string]any{"pointer_id": req.PointerId})
}

func (s *Server) HandleGetPointer(w http.ResponseWriter, r *http.Request) {
	ptr, err := s.executionService.GetPointer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, ptr)
}

func (s *Server) HandleAddUser(w http.ResponseWriter, r *http.Request) {
	var req AddUserRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.executionService.AddUser(r.Context(), userOf(r), id, req.Identifier); err != nil {
		respondWithError(w, err)
		return
	}
	respondAccepted(w, map[string]any{"pointer_id": id})
}
