package entity

// DatasetSpec is what a caller provides to locate a dataset.
type DatasetSpec struct {
	Path string `json:"path"`
}

// Dataset is a resolved collection of data items.
type Dataset struct {
	ID        string `json:"id"`
	Path      string `json:"path"`
	Size      int    `json:"size"`
	CreatedAt int64  `json:"created_at"`
}

// DataItem is one element of a dataset.
type DataItem struct {
	DatasetID string `json:"dataset_id"`
	ID        string `json:"id"`
	Path      string `json:"path"`
}
