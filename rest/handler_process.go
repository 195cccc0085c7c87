package rest

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/model"
	"go.uber.org/zap"
)

func (s *Server) HandleCreateProcess(w http.ResponseWriter, r *http.Request) {
	var p model.Process
	if err := decode(r, &p); err != nil {
		respondWithError(w, err)
		return
	}
	saved, err := s.metadataService.SaveProcess(p)
	if err != nil {
		logger.Error("error saving process", zap.String("process", p.Name), zap.Error(err))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]any{"name": saved.Name, "version": saved.Version})
}

func (s *Server) HandleGetProcess(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	p, err := s.metadataService.GetMetadataStorage().GetProcess(name)
	if err != nil {
		logger.Info("process does not exist", zap.String("name", name))
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

func (s *Server) HandleListProcesses(w http.ResponseWriter, r *http.Request) {
	processes, err := s.metadataService.GetMetadataStorage().ListProcesses()
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{"data": processes})
}
