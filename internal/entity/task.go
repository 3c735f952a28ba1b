package entity

import "encoding/json"

// Task groups every Job, Result and Label created over one dataset.
type Task struct {
	Name      string `json:"name"`
	DatasetID string `json:"dataset_id"`
	SpecID    string `json:"spec_id"`
	Ready     bool   `json:"ready"`
	CreatedAt int64  `json:"created_at"`
}

// Spec describes what is annotated in a task. The schema is opaque here.
type Spec struct {
	ID          string          `json:"id"`
	DataType    string          `json:"data_type"`
	LabelSchema json.RawMessage `json:"label_schema,omitempty"`
}

// Label is the annotation payload for one item.
type Label struct {
	TaskName    string          `json:"task_name"`
	DataID      string          `json:"data_id"`
	Annotations json.RawMessage `json:"annotations"`
}

// NewLabel returns an empty label shell.
func NewLabel(taskName, dataID string) *Label {
	return &Label{TaskName: taskName, DataID: dataID, Annotations: json.RawMessage(`[]`)}
}
