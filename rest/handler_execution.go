package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/humanflow/model"
	"golang.org/x/exp/slices"
)

// FormRequest is one submitted form: the ref it answers and the raw input
// values by name.
type FormRequest struct {
	Ref  string         `json:"ref"`
	Data map[string]any `json:"data"`
}

type StartRequest struct {
	ProcessName string        `json:"process_name"`
	Input       []FormRequest `json:"input"`
}

type PatchRequest struct {
	Inputs  []model.PatchInput `json:"inputs"`
	Comment string             `json:"comment"`
}

func toSubmissions(forms []FormRequest) []model.FormSubmission {
	out := make([]model.FormSubmission, 0, len(forms))
	for _, f := range forms {
		names := make([]string, 0, len(f.Data))
		for name := range f.Data {
			names = append(names, name)
		}
		slices.Sort(names)
		out = append(out, model.NewFormSubmission(f.Ref, names, f.Data))
	}
	return out
}

func (s *Server) HandleStartExecution(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	id, err := s.executionService.Start(r.Context(), userOf(r), req.ProcessName, toSubmissions(req.Input))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondAccepted(w, map[string]any{"execution_id": id})
}

func (s *Server) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	exec, err := s.executionService.GetExecution(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, exec)
}

func (s *Server) HandlePatchExecution(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if err := decode(r, &req); err != nil {
		respondWithError(w, err)
		return
	}
	id := mux.Vars(r)["id"]
	if err := s.executionService.Patch(r.Context(), userOf(r), id, req.Inputs, req.Comment); err != nil {
		respondWithError(w, err)
		return
	}
	respondAccepted(w, map[string]any{"execution_id": id})
}

func (s *Server) HandleCancelExecution(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.executionService.Cancel(r.Context(), userOf(r), id); err != nil {
		respondWithError(w, err)
		return
	}
	respondAccepted(w, map[string]any{"execution_id": id})
}

func (s *Server) HandleGetHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := s.executionService.GetHistory(r.Context(), mux.Vars(r)["id"], r.URL.Query().Get("node_id"))
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": entries})
}
