package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mohitkumar/humanflow/model"
	"github.com/mohitkumar/humanflow/persistence"
	"github.com/stretchr/testify/require"
)

const documentProcess = `
name: document
description: Upload an identity document
start_node: start
nodes:
  - id: start
    kind: action
    forms:
      - ref: doc-form
        inputs:
          - name: identity_card
            type: file
            label: Documento de identidad oficial
            provider: doqer
            required: true
    edges:
      - to: end
  - id: end
    kind: end
`

func TestFileMetadataStorage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "doc.yml"), []byte(documentProcess), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [unclosed"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	storage, err := NewFileMetadataStorage(dir)
	require.NoError(t, err)

	p, err := storage.GetProcess("document")
	require.NoError(t, err)
	require.Equal(t, "start", p.StartNode)
	require.Equal(t, "doqer", p.Nodes[0].Forms[0].Inputs[0].Provider)
	require.True(t, p.Nodes[0].Forms[0].Inputs[0].Required)
	require.Equal(t, model.NODE_KIND_END, p.Nodes[1].Kind)

	require.NoError(t, storage.SaveProcess(model.Process{Name: "simple", Version: "1", StartNode: "a"}))
	require.NoError(t, storage.SaveProcess(model.Process{Name: "simple", Version: "2", StartNode: "b"}))
	current, err := storage.GetProcess("simple")
	require.NoError(t, err)
	require.Equal(t, "2", current.Version)
	old, err := storage.GetProcessVersion("simple", "1")
	require.NoError(t, err)
	require.Equal(t, "a", old.StartNode)
	_, err = os.Stat(filepath.Join(dir, "simple@1.yaml"))
	require.NoError(t, err)

	all, err := storage.ListProcesses()
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, "document", all[0].Name)
	require.Equal(t, "simple", all[1].Name)

	require.Equal(t, "2", all[1].Version)

	require.NoError(t, storage.DeleteProcess("simple"))
	_, err = storage.GetProcess("simple")
	require.ErrorIs(t, err, persistence.ErrNotFound)
	_, err = storage.GetProcessVersion("simple", "1")
	require.ErrorIs(t, err, persistence.ErrNotFound)

	_, err = NewFileMetadataStorage(filepath.Join(dir, "doc.yml"))
	require.Error(t, err)
}
