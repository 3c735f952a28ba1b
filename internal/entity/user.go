package entity

type UserRole string

const (
	RoleAdmin UserRole = "admin"
	RoleUser  UserRole = "annotator"
)

// User holds credentials and the per task/objective record of the job the
// user last received. Password is a bcrypt hash.
type User struct {
	Username         string            `json:"username"`
	Password         string            `json:"password"`
	Role             UserRole          `json:"role"`
	LastAssignedJobs map[string]string `json:"last_assigned_jobs"`
}

// QueueKey is the LastAssignedJobs key for a task and objective.
func QueueKey(taskName string, objective Status) string {
	return taskName + "/" + string(objective)
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// AssignedJob returns the job id recorded for task/objective.
func (u *User) AssignedJob(taskName string, objective Status) string {
	return u.LastAssignedJobs[QueueKey(taskName, objective)]
}

// RecordJob remembers jobID as the user's job for task/objective.
func (u *User) RecordJob(taskName string, objective Status, jobID string) {
	if u.LastAssignedJobs == nil {
		u.LastAssignedJobs = make(map[string]string)
	}
	u.LastAssignedJobs[QueueKey(taskName, objective)] = jobID
}

// ReleaseJob forgets the task/objective entry if it still points at jobID.
func (u *User) ReleaseJob(taskName string, objective Status, jobID string) bool {
	key := QueueKey(taskName, objective)
	if u.LastAssignedJobs[key] != jobID || jobID == "" {
		return false
	}
	delete(u.LastAssignedJobs, key)
	return true
}

// ForgetTask drops every entry of taskName. Entries of other tasks whose
// names merely start with taskName are kept.
func (u *User) ForgetTask(taskName string) bool {
	changed := false
	for _, objective := range allStatuses {
		if !objective.IsObjective() {
			continue
		}
		key := QueueKey(taskName, objective)
		if _, ok := u.LastAssignedJobs[key]; ok {
			delete(u.LastAssignedJobs, key)
			changed = true
		}
	}
	return changed
}
