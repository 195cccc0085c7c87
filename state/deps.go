package state

import (
	"fmt"
	"strings"

	"github.com/mohitkumar/humanflow/model"
)

// ParseDep splits a dependency declaration form_ref.input_name.
func ParseDep(dep string) (string, string, error) {
	formRef, inputName, found := strings.Cut(dep, REF_SEPARATOR)
	if !found || formRef == "" || inputName == "" || strings.Contains(inputName, REF_SEPARATOR) {
		return "", "", fmt.Errorf("dependency %s must be form_ref.input_name", dep)
	}
	return formRef, inputName, nil
}

// Walk visits every leaf of the tree in tree order until fn returns false.
func Walk(tree model.StateTree, fn func(leaf *Leaf) bool) {
	for _, node := range tree.Values() {
		single := node.Actors.Len() == 1
		for _, actorId := range node.Actors.Keys() {
			actor, _ := node.Actors.Get(actorId)
			for fi, form := range actor.Forms {
				for _, name := range form.Inputs.Keys() {
					in, _ := form.Inputs.Get(name)
					leaf := &Leaf{
						Node:          node,
						Actor:         actor,
						Form:          form,
						Input:         in,
						ActorId:       actorId,
						FormIndex:     fi,
						InputName:     name,
						implicitActor: single,
					}
					if !fn(leaf) {
						return
					}
				}
			}
		}
	}
}

// CollectDeps returns every valid leaf whose form ref and input name match
// dep, wherever it was recorded.
func CollectDeps(tree model.StateTree, dep string) ([]model.DepLeaf, error) {
	formRef, inputName, err := ParseDep(dep)
	if err != nil {
		return nil, err
	}
	out := make([]model.DepLeaf, 0)
	Walk(tree, func(leaf *Leaf) bool {
		if leaf.Form.Ref == formRef && leaf.InputName == inputName && leaf.Valid() {
			out = append(out, toDepLeaf(dep, leaf))
		}
		return true
	})
	return out, nil
}

func toDepLeaf(dep string, leaf *Leaf) model.DepLeaf {
	return model.DepLeaf{
		Dep:          dep,
		Ref:          leaf.Canonical(),
		NodeId:       leaf.Node.Id,
		Actor:        leaf.ActorId,
		FormRef:      leaf.Form.Ref,
		FormIndex:    leaf.FormIndex,
		Input:        leaf.InputName,
		Value:        leaf.Input.Value,
		ValueCaption: leaf.Input.ValueCaption,
	}
}

type depKey struct {
	formRef string
	input   string
}

// DepIndex maps (form ref, input name) to the valid leaves holding it, in
// tree order. It answers the same queries as CollectDeps without rescanning
// the tree; it must be rebuilt after the tree changes.
type DepIndex struct {
	leaves map[depKey][]*Leaf
}

func NewDepIndex(tree model.StateTree) *DepIndex {
	idx := &DepIndex{leaves: make(map[depKey][]*Leaf)}
	Walk(tree, func(leaf *Leaf) bool {
		if leaf.Valid() {
			key := depKey{formRef: leaf.Form.Ref, input: leaf.InputName}
			idx.leaves[key] = append(idx.leaves[key], leaf)
		}
		return true
	})
	return idx
}

func (idx *DepIndex) Collect(dep string) ([]model.DepLeaf, error) {
	formRef, inputName, err := ParseDep(dep)
	if err != nil {
		return nil, err
	}
	leaves := idx.leaves[depKey{formRef: formRef, input: inputName}]
	out := make([]model.DepLeaf, 0, len(leaves))
	for _, leaf := range leaves {
		out = append(out, toDepLeaf(dep, leaf))
	}
	return out, nil
}
