package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/metadata"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
)

// USER_HEADER carries the identifier of the acting user. Authentication
// happens in front of this server.
const USER_HEADER string = "X-User-Identifier"
const USER_NAME_HEADER string = "X-User-Name"

type Server struct {
	http.Server
	Port             int
	metadataService  metadata.MetadataService
	executionService *service.ExecutionService
}

func NewServer(httpPort int, metadataService metadata.MetadataService, executionService *service.ExecutionService, gatherer prometheus.Gatherer) (*Server, error) {

	s := &Server{
		Server: http.Server{
			Addr:        fmt.Sprintf(":%d", httpPort),
			IdleTimeout: 2 * time.Second,
		},
		metadataService:  metadataService,
		executionService: executionService,
		Port:             httpPort,
	}

	router := mux.NewRouter()
	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/process", s.HandleListProcesses).Methods(http.MethodGet)
	v1.HandleFunc("/process", s.HandleCreateProcess).Methods(http.MethodPost)
	v1.HandleFunc("/process/{name}", s.HandleGetProcess).Methods(http.MethodGet)

	v1.HandleFunc("/execution", s.HandleStartExecution).Methods(http.MethodPost)
	v1.HandleFunc("/execution/{id}", s.HandleGetExecution).Methods(http.MethodGet)
	v1.HandleFunc("/execution/{id}", s.HandlePatchExecution).Methods(http.MethodPatch)
	v1.HandleFunc("/execution/{id}", s.HandleCancelExecution).Methods(http.MethodDelete)
	v1.HandleFunc("/log/{id}", s.HandleGetHistory).Methods(http.MethodGet)

	v1.HandleFunc("/pointer", s.HandleStep).Methods(http.MethodPost)
	v1.HandleFunc("/pointer/{id}", s.HandleGetPointer).Methods(http.MethodGet)
	v1.HandleFunc("/pointer/{id}/user", s.HandleAddUser).Methods(http.MethodPost)

	v1.HandleFunc("/task", s.HandleListTasks).Methods(http.MethodGet)
	v1.HandleFunc("/task/{id}", s.HandleGetTask).Methods(http.MethodGet)
	v1.HandleFunc("/activity", s.HandleListActivities).Methods(http.MethodGet)
	v1.HandleFunc("/activity/{id}", s.HandleGetActivity).Methods(http.MethodGet)

	if gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server on", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server", zap.Error(err))
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Debug("http request", zap.String("method", r.Method), zap.String("uri", r.RequestURI))
		next.ServeHTTP(w, r)
	})
}

func userOf(r *http.Request) model.User {
	return model.User{
		Identifier: r.Header.Get(USER_HEADER),
		HumanName:  r.Header.Get(USER_NAME_HEADER),
	}
}

func decode(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return api.Invalid("body", "request body is not valid json: %s", err.Error())
	}
	return nil
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondAccepted(w http.ResponseWriter, message map[string]any) {
	respondWithJSON(w, http.StatusAccepted, message)
}

// respondWithError writes err as {"errors":[payload]} with the status its
// kind maps to.
func respondWithError(w http.ResponseWriter, err error) {
	code := statusOf(err)
	payload, ok := api.PayloadOf(err)
	if !ok {
		payload = api.ErrorPayload{Detail: err.Error(), Code: "internal"}
		if code == http.StatusNotFound {
			payload.Code = "not_found"
		}
	}
	if code >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Int("status", code), zap.Error(err))
	}
	respondWithJSON(w, code, map[string]any{"errors": []api.ErrorPayload{payload}})
}

// statusOf maps an error to the http status matching its grpc code.
func statusOf(err error) int {
	var pe api.PayloadError
	if errors.As(err, &pe) {
		switch pe.GRPCStatus().Code() {
		case codes.InvalidArgument:
			return http.StatusBadRequest
		case codes.PermissionDenied:
			return http.StatusForbidden
		case codes.NotFound:
			return http.StatusNotFound
		case codes.FailedPrecondition:
			return http.StatusUnprocessableEntity
		case codes.Aborted, codes.Unavailable:
			return http.StatusServiceUnavailable
		}
		return http.StatusInternalServerError
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
