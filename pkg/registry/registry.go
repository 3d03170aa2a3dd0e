// pkg/registry/registry.go
package registry

import (
	"fmt"
	"sort"
)

func New(version string) *ActivityRegistry {
	return &ActivityRegistry{Version: version, Activities: []Activity{}}
}

// Add appends an activity and keeps the list sorted by task type.
func (r *ActivityRegistry) Add(a Activity) {
	r.Activities = append(r.Activities, a)
	sort.SliceStable(r.Activities, func(i, j int) bool {
		return r.Activities[i].TaskType < r.Activities[j].TaskType
	})
}

func (r *ActivityRegistry) Lookup(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// Validate rejects entries without a task type and duplicate task types.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for i, a := range r.Activities {
		if a.TaskType == "" {
			return fmt.Errorf("activity %d: taskType is required", i)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("activity %s: duplicate taskType", a.TaskType)
		}
		seen[a.TaskType] = true
	}
	return nil
}
