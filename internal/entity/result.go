package entity

import (
	"slices"
	"strconv"
)

// Result is the durable per-item summary. It lives as long as its task.
type Result struct {
	TaskName       string   `json:"task_name"`
	DataID         string   `json:"data_id"`
	Status         Status   `json:"status"`
	CurrentJobID   string   `json:"current_job_id"`
	FinishedJobIDs []string `json:"finished_job_ids"`
	CumulatedTime  int64    `json:"cumulated_time"`
	Annotator      string   `json:"annotator"`
	Validator      string   `json:"validator"`
	InProgress     bool     `json:"in_progress"`
}

// FilterFields lists the Result fields that listing filters may target.
var FilterFields = []string{"data_id", "status", "annotator", "validator", "in_progress", "current_job_id"}

// NewResult returns the initial result of a freshly created item.
func NewResult(taskName, dataID, jobID string) *Result {
	return &Result{
		TaskName:       taskName,
		DataID:         dataID,
		Status:         StatusToAnnotate,
		CurrentJobID:   jobID,
		FinishedJobIDs: []string{},
	}
}

// Field returns the string form of a filterable field.
func (r *Result) Field(name string) (string, bool) {
	switch name {
	case "data_id":
		return r.DataID, true
	case "status":
		return string(r.Status), true
	case "annotator":
		return r.Annotator, true
	case "validator":
		return r.Validator, true
	case "in_progress":
		return strconv.FormatBool(r.InProgress), true
	case "current_job_id":
		return r.CurrentJobID, true
	default:
		return "", false
	}
}

// Holder returns the user recorded for role.
func (r *Result) Holder(role Role) string {
	if role == RoleValidator {
		return r.Validator
	}
	return r.Annotator
}

// SetHolder records username in the slot for role.
func (r *Result) SetHolder(role Role, username string) {
	if role == RoleValidator {
		r.Validator = username
		return
	}
	r.Annotator = username
}

// FinishJob records a closed job once and adds its time to the item total.
func (r *Result) FinishJob(job *Job) {
	if !slices.Contains(r.FinishedJobIDs, job.ID) {
		r.FinishedJobIDs = append(r.FinishedJobIDs, job.ID)
	}
	r.CumulatedTime += job.Duration
}
