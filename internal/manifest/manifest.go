// Package manifest loads task submissions from JSON and turns them into a
// validated task graph. A submission is admitted whole or not at all: any
// invalid task rejects the entire manifest.
package manifest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/hivekit/hive/internal/scheduler"
)

// TaskSpec is one task as written in a manifest file.
type TaskSpec struct {
	ID          string   `json:"id,omitempty"` // Generated when omitted
	Description string   `json:"description"`
	Type        string   `json:"type,omitempty"`
	Requires    []string `json:"requires,omitempty"`
	DependsOn   []string `json:"depends_on,omitempty"`
}

// Manifest is a parsed task submission.
type Manifest struct {
	Name  string     `json:"name,omitempty"`
	Tasks []TaskSpec `json:"tasks"`
}

// Parse decodes a manifest from JSON.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Tasks) == 0 {
		return nil, fmt.Errorf("manifest contains no tasks")
	}
	return &m, nil
}

// LoadFile reads and parses a manifest from disk.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return m, nil
}

// Graph builds a fresh validated task graph from the manifest. Tasks
// without an ID get a generated one. The graph is built from scratch per
// call, so a rejected manifest admits nothing.
func (m *Manifest) Graph() (*scheduler.Graph, error) {
	g := scheduler.NewGraph()

	for i, spec := range m.Tasks {
		if spec.Description == "" {
			return nil, fmt.Errorf("task %d (%s): missing description", i, spec.ID)
		}
		id := spec.ID
		if id == "" {
			id = uuid.NewString()
		}
		task := &scheduler.Task{
			ID:          id,
			Description: spec.Description,
			Type:        spec.Type,
			Requires:    append([]string(nil), spec.Requires...),
			DependsOn:   append([]string(nil), spec.DependsOn...),
		}
		if err := g.AddTask(task); err != nil {
			return nil, fmt.Errorf("task %d (%s): %w", i, id, err)
		}
	}

	if _, err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
