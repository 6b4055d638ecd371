package domain

// TasksWrite replaces the task collection of a project. Timestamp is the
// nanosecond issue time assigned by the API; of two writes for the same project the
// one issued later wins.
type TasksWrite struct {
	ProjectID string `json:"projectId"`
	Tasks     []Task `json:"tasks"`
	Timestamp int64  `json:"timestamp"`
}

// ProjectUpdate is published on the updates channel after a write lands.
type ProjectUpdate struct {
	ProjectID string `json:"projectId"`
	Timestamp int64  `json:"timestamp"`
}
