package model

import (
	"encoding/json"
	"fmt"
)

const SORTED_MAP_TYPE string = ":sorted_map"

// SortedMap is a string keyed map that remembers insertion order. Positions
// are observable: refs address forms and inputs by their index.
type SortedMap[T any] struct {
	Items     map[string]T `bson:"items"`
	ItemOrder []string     `bson:"item_order"`
}

type sortedMapJson[T any] struct {
	Type      string       `json:"_type"`
	Items     map[string]T `json:"items"`
	ItemOrder []string     `json:"item_order"`
}

func NewSortedMap[T any]() SortedMap[T] {
	return SortedMap[T]{
		Items:     make(map[string]T),
		ItemOrder: make([]string, 0),
	}
}

// Set appends key when it is new and replaces the value in place otherwise.
func (m *SortedMap[T]) Set(key string, value T) {
	if m.Items == nil {
		m.Items = make(map[string]T)
	}
	if _, ok := m.Items[key]; !ok {
		m.ItemOrder = append(m.ItemOrder, key)
	}
	m.Items[key] = value
}

func (m SortedMap[T]) Get(key string) (T, bool) {
	v, ok := m.Items[key]
	return v, ok
}

func (m SortedMap[T]) Has(key string) bool {
	_, ok := m.Items[key]
	return ok
}

func (m SortedMap[T]) Len() int {
	return len(m.ItemOrder)
}

func (m SortedMap[T]) Keys() []string {
	keys := make([]string, len(m.ItemOrder))
	copy(keys, m.ItemOrder)
	return keys
}

// At returns the entry at position i.
func (m SortedMap[T]) At(i int) (string, T, bool) {
	var zero T
	if i < 0 || i >= len(m.ItemOrder) {
		return "", zero, false
	}
	key := m.ItemOrder[i]
	return key, m.Items[key], true
}

func (m SortedMap[T]) Index(key string) int {
	for i, k := range m.ItemOrder {
		if k == key {
			return i
		}
	}
	return -1
}

func (m SortedMap[T]) Values() []T {
	values := make([]T, 0, len(m.ItemOrder))
	for _, k := range m.ItemOrder {
		values = append(values, m.Items[k])
	}
	return values
}

func (m SortedMap[T]) MarshalJSON() ([]byte, error) {
	out := sortedMapJson[T]{
		Type:      SORTED_MAP_TYPE,
		Items:     m.Items,
		ItemOrder: m.ItemOrder,
	}
	if out.Items == nil {
		out.Items = make(map[string]T)
	}
	if out.ItemOrder == nil {
		out.ItemOrder = make([]string, 0)
	}
	return json.Marshal(out)
}

func (m *SortedMap[T]) UnmarshalJSON(data []byte) error {
	var in sortedMapJson[T]
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Type != "" && in.Type != SORTED_MAP_TYPE {
		return fmt.Errorf("expected %s, got %s", SORTED_MAP_TYPE, in.Type)
	}
	if len(in.Items) != len(in.ItemOrder) {
		return fmt.Errorf("sorted map has %d items but %d ordered keys", len(in.Items), len(in.ItemOrder))
	}
	seen := make(map[string]bool, len(in.ItemOrder))
	for _, k := range in.ItemOrder {
		if _, ok := in.Items[k]; !ok {
			return fmt.Errorf("sorted map key %s has no item", k)
		}
		if seen[k] {
			return fmt.Errorf("sorted map key %s is repeated", k)
		}
		seen[k] = true
	}
	m.Items = in.Items
	if m.Items == nil {
		m.Items = make(map[string]T)
	}
	m.ItemOrder = in.ItemOrder
	if m.ItemOrder == nil {
		m.ItemOrder = make([]string, 0)
	}
	return nil
}
