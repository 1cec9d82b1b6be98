package models

import "time"

// DependencyFinishToStart means the task cannot start until the
// task it depends on is finished. It is the only supported type.
const DependencyFinishToStart = "finish-to-start"

type Dependency struct {
	ID              string
	WorkspaceID     string
	TaskID          string
	DependsOnTaskID string
	Type            string
	CreatedAt       time.Time
}
