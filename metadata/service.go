package metadata

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	api "github.com/mohitkumar/humanflow/api/v1"
	"github.com/mohitkumar/humanflow/input"
	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/process"
	"github.com/mohitkumar/humanflow/util"
	c "github.com/patrickmn/go-cache"
	"github.com/spaolacci/murmur3"
	"go.uber.org/zap"
)

const GRAPH_CACHE_TTL = 10 * time.Minute

type MetadataService interface {
	// GetGraph returns the graph of the version of name saved last.
	GetGraph(name string) (*process.Graph, error)
	// GetGraphVersion returns the graph an execution was started on.
	GetGraphVersion(name string, version string) (*process.Graph, error)
	ValidateProcess(p model.Process) error
	SaveProcess(p model.Process) (*model.Process, error)
	GetMetadataStorage() persistence.MetadataStorage
}

var _ MetadataService = new(MetadataServiceImpl)

type MetadataServiceImpl struct {
	storage  persistence.MetadataStorage
	registry *input.Registry
	encDec   util.EncoderDecoder[model.Process]
	graphs   *c.Cache
}

func NewMetadataService(storage persistence.MetadataStorage, registry *input.Registry) *MetadataServiceImpl {
	return &MetadataServiceImpl{
		storage:  storage,
		registry: registry,
		encDec:   util.NewJsonEncoderDecoder[model.Process](),
		graphs:   c.New(GRAPH_CACHE_TTL, 2*GRAPH_CACHE_TTL),
	}
}

func cacheKey(name string, version string) string {
	return name + "@" + version
}

func notFound(err error, name string) error {
	if errors.Is(err, persistence.ErrNotFound) {
		return api.NewGraphError(api.CODE_GRAPH_NOT_FOUND, name, "process %s not found", name)
	}
	return err
}

// GetGraph always asks storage which version is current; only the compiled
// graph is cached, keyed by name and version. A missing process is a
// graph.not_found GraphError; storage failures are returned as they are.
func (s *MetadataServiceImpl) GetGraph(name string) (*process.Graph, error) {
	p, err := s.storage.GetProcess(name)
	if err != nil {
		return nil, notFound(err, name)
	}
	if g, found := s.graphs.Get(cacheKey(p.Name, p.Version)); found {
		return g.(*process.Graph), nil
	}
	return s.compile(*p)
}

func (s *MetadataServiceImpl) GetGraphVersion(name string, version string) (*process.Graph, error) {
	if g, found := s.graphs.Get(cacheKey(name, version)); found {
		return g.(*process.Graph), nil
	}
	p, err := s.storage.GetProcessVersion(name, version)
	if err != nil {
		return nil, notFound(err, cacheKey(name, version))
	}
	return s.compile(*p)
}

func (s *MetadataServiceImpl) compile(p model.Process) (*process.Graph, error) {
	g, err := process.NewGraph(p, s.registry)
	if err != nil {
		logger.Error("invalid process definition", zap.String("process", p.Name), zap.String("version", p.Version), zap.Error(err))
		return nil, err
	}
	s.graphs.Set(cacheKey(p.Name, p.Version), g, c.DefaultExpiration)
	return g, nil
}

func (s *MetadataServiceImpl) ValidateProcess(p model.Process) error {
	_, err := process.NewGraph(p, s.registry)
	return err
}

// SaveProcess stores p as the current version of its process. A definition
// without a version is given one derived from its content. A version that
// is already stored may only be saved again unchanged.
func (s *MetadataServiceImpl) SaveProcess(p model.Process) (*model.Process, error) {
	if err := s.ValidateProcess(p); err != nil {
		return nil, err
	}
	data, err := s.encDec.Encode(p)
	if err != nil {
		return nil, err
	}
	if p.Version == "" {
		p.Version = fmt.Sprintf("%016x", murmur3.Sum64(data))
		if data, err = s.encDec.Encode(p); err != nil {
			return nil, err
		}
	}
	existing, err := s.storage.GetProcessVersion(p.Name, p.Version)
	switch {
	case err == nil:
		stored, err := s.encDec.Encode(*existing)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(stored, data) {
			return nil, api.Invalid("version", "process %s already has a different version %s", p.Name, p.Version)
		}
	case !errors.Is(err, persistence.ErrNotFound):
		return nil, err
	}
	if err := s.storage.SaveProcess(p); err != nil {
		return nil, err
	}
	logger.Info("process saved", zap.String("process", p.Name), zap.String("version", p.Version))
	return &p, nil
}

func (s *MetadataServiceImpl) GetMetadataStorage() persistence.MetadataStorage {
	return s.storage
}
