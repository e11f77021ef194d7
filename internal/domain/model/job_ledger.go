package model

// LedgerResult is the terminal payload recorded for a completed job.
type LedgerResult struct {
	ResultMessage string `json:"result_message"`
	OutputPath    string `json:"output_docx_path,omitempty"`
}

// LedgerUpdate holds independent optional changes applied in one call.
type LedgerUpdate struct {
	Status *AIJobStatus
	Log    string
	Result *LedgerResult
}

// LedgerEntry is a point-in-time copy of a job's observability record.
type LedgerEntry struct {
	JobID    string            `json:"job_id"`
	Status   AIJobStatus       `json:"status"`
	Logs     []string          `json:"logs"`
	Result   *LedgerResult     `json:"result,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Apply folds u into e. Entries already in a terminal status are frozen and
// Apply reports false without touching them.
func (e *LedgerEntry) Apply(u LedgerUpdate) bool {
	if e.Status.Terminal() {
		return false
	}
	if u.Log != "" {
		e.Logs = append(e.Logs, u.Log)
	}
	if u.Status != nil {
		e.Status = *u.Status
	}
	if u.Result != nil {
		r := *u.Result
		e.Result = &r
	}
	return true
}

func (e *LedgerEntry) Clone() LedgerEntry {
	cp := LedgerEntry{JobID: e.JobID, Status: e.Status}
	cp.Logs = make([]string, len(e.Logs))
	copy(cp.Logs, e.Logs)
	if e.Result != nil {
		r := *e.Result
		cp.Result = &r
	}
	if e.Metadata != nil {
		cp.Metadata = make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			cp.Metadata[k] = v
		}
	}
	return cp
}

// StatusPtr is a small helper for building LedgerUpdate values.
func StatusPtr(s AIJobStatus) *AIJobStatus { return &s }
