package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mohitkumar/humanflow/logger"
	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/mohitkumar/humanflow/util"
	"go.uber.org/zap"
)

var _ persistence.MetadataStorage = new(fileMetadataStorage)

// fileMetadataStorage reads process definitions from a directory of yaml or
// json files, one process version per file.
type fileMetadataStorage struct {
	dir        string
	mu         sync.RWMutex
	yamlEncDec util.EncoderDecoder[model.Process]
	jsonEncDec util.EncoderDecoder[model.Process]
}

func NewFileMetadataStorage(dir string) (*fileMetadataStorage, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return &fileMetadataStorage{
		dir:        dir,
		yamlEncDec: util.NewYamlEncoderDecoder[model.Process](),
		jsonEncDec: util.NewJsonEncoderDecoder[model.Process](),
	}, nil
}

func (f *fileMetadataStorage) decode(path string) (*model.Process, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	if strings.HasSuffix(path, ".json") {
		return f.jsonEncDec.Decode(data)
	}
	return f.yamlEncDec.Decode(data)
}

func (f *fileMetadataStorage) files() ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, persistence.StorageLayerError{Message: err.Error()}
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml", ".json":
			out = append(out, filepath.Join(f.dir, e.Name()))
		}
	}
	sort.Strings(out)
	return out, nil
}

type definition struct {
	path    string
	process *model.Process
	modTime time.Time
}

// scan decodes every definition in the directory, skipping unreadable
// files.
func (f *fileMetadataStorage) scan() ([]definition, error) {
	files, err := f.files()
	if err != nil {
		return nil, err
	}
	out := make([]definition, 0, len(files))
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return nil, persistence.StorageLayerError{Message: err.Error()}
		}
		p, err := f.decode(path)
		if err != nil {
			logger.Warn("skipping unreadable process definition", zap.String("file", path), zap.Error(err))
			continue
		}
		out = append(out, definition{path: path, process: p, modTime: info.ModTime()})
	}
	return out, nil
}

func (f *fileMetadataStorage) currentPath(name string) string {
	return filepath.Join(f.dir, name+".yaml")
}

// current picks the definition of name in use: the one in <name>.yaml if
// present, otherwise the most recently written file.
func (f *fileMetadataStorage) current(defs []definition, name string) *definition {
	var found *definition
	for i := range defs {
		d := &defs[i]
		if d.process.Name != name {
			continue
		}
		if d.path == f.currentPath(name) {
			return d
		}
		if found == nil || d.modTime.After(found.modTime) {
			found = d
		}
	}
	return found
}

func (f *fileMetadataStorage) write(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return persistence.StorageLayerError{Message: err.Error()}
	}
	return nil
}

// SaveProcess writes p as the current definition in <name>.yaml and, when
// it carries a version, keeps a copy in <name>@<version>.yaml.
func (f *fileMetadataStorage) SaveProcess(p model.Process) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := f.yamlEncDec.Encode(p)
	if err != nil {
		return err
	}
	if p.Version != "" {
		if err := f.write(filepath.Join(f.dir, fmt.Sprintf("%s@%s.yaml", p.Name, p.Version)), data); err != nil {
			return err
		}
	}
	return f.write(f.currentPath(p.Name), data)
}

// DeleteProcess removes every file holding a version of name.
func (f *fileMetadataStorage) DeleteProcess(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	defs, err := f.scan()
	if err != nil {
		return err
	}
	for _, d := range defs {
		if d.process.Name != name {
			continue
		}
		if err := os.Remove(d.path); err != nil {
			return persistence.StorageLayerError{Message: err.Error()}
		}
	}
	return nil
}

func (f *fileMetadataStorage) GetProcess(name string) (*model.Process, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	defs, err := f.scan()
	if err != nil {
		return nil, err
	}
	d := f.current(defs, name)
	if d == nil {
		return nil, persistence.NotFound("process", name)
	}
	return d.process, nil
}

func (f *fileMetadataStorage) GetProcessVersion(name string, version string) (*model.Process, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	defs, err := f.scan()
	if err != nil {
		return nil, err
	}
	for _, d := range defs {
		if d.process.Name == name && d.process.Version == version {
			return d.process, nil
		}
	}
	return nil, persistence.NotFound("process", name+"@"+version)
}

func (f *fileMetadataStorage) ListProcesses() ([]model.Process, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	defs, err := f.scan()
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	out := make([]model.Process, 0, len(defs))
	for _, d := range defs {
		if seen[d.process.Name] {
			continue
		}
		seen[d.process.Name] = true
		out = append(out, *f.current(defs, d.process.Name).process)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
