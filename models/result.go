package models

// Artifact is a disclosed log link for one build entry.
type Artifact struct {
	URL         string `json:"url"`
	DateStamp   string `json:"date_stamp"`
	StatusLabel string `json:"status_label"`
}

// FileName is the archive file name for the artifact: "<date> <status>".
func (a Artifact) FileName() string {
	return a.DateStamp + " " + a.StatusLabel
}

// ProjectResult summarises one project's run through the pipeline.
type ProjectResult struct {
	Project      string `json:"project"`
	URL          string `json:"url"`
	TotalEntries int    `json:"total_entries"`
	Selected     int    `json:"selected"`
	Fetched      int    `json:"fetched"`
	Downloaded   int    `json:"downloaded"`
}

// PassReport is the outcome of one full pass.
type PassReport struct {
	RunID      string          `json:"run_id"`
	StartedAt  int64           `json:"started_at"`
	FinishedAt int64           `json:"finished_at"`
	Discovered int             `json:"discovered"`
	Catalog    int             `json:"catalog"`
	Retried    int             `json:"retried"`
	Failed     []Failure       `json:"failed,omitempty"`
	Results    []ProjectResult `json:"results"`
}

// Failure is a project URL that ended up in the Wrong set during a pass,
// with the first error recorded for it.
type Failure struct {
	URL   string       `json:"url"`
	Error *ErrorDetail `json:"error"`
}
