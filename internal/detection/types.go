// Package detection provides the client contract for the external
// entity-detection service: submit an asynchronous job over a set of
// documents and poll it to completion. The detection algorithm itself is
// opaque; this package only shapes requests, results, and failure classes.
package detection

// Mode selects the matching strategy for a detection job.
type Mode string

// Detection modes. ModeEntities matches against a fixed candidate list;
// ModePatterns casts a wider net with looser text templates, producing
// provisional matches that need later resolution.
const (
	ModeEntities Mode = "entities"
	ModePatterns Mode = "patterns"
)

// DocumentRef identifies a document (or a page window of one) to scan.
// A zero LastPage means the whole document.
type DocumentRef struct {
	DocumentID string `json:"document_id"`
	FirstPage  int    `json:"first_page,omitempty"`
	LastPage   int    `json:"last_page,omitempty"`
}

// Candidate is one search target: an entity id with the texts that
// identify it, or a bare pattern template in pattern mode.
type Candidate struct {
	ID    string   `json:"id,omitempty"`
	Texts []string `json:"texts"`
}

// SubmitRequest describes one detection job.
type SubmitRequest struct {
	Documents  []DocumentRef `json:"documents"`
	Candidates []Candidate   `json:"candidates"`
	Mode       Mode          `json:"mode"`
}

// Handle identifies a submitted job for later polling.
type Handle string

// State is the lifecycle state of a submitted job.
type State string

// Job states as reported by the service.
const (
	StateRunning   State = "Running"
	StateCompleted State = "Completed"
	StateFailed    State = "Failed"
)

// Box locates a match on a document page.
type Box struct {
	Page int     `json:"page"`
	XMin float64 `json:"x_min"`
	YMin float64 `json:"y_min"`
	XMax float64 `json:"x_max"`
	YMax float64 `json:"y_max"`
}

// Match is one detected occurrence. EntityIDs carries the candidate ids
// the service resolved the text to; empty in pattern mode.
type Match struct {
	DocumentID string   `json:"document_id"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence"`
	Box        Box      `json:"box"`
	EntityIDs  []string `json:"entity_ids,omitempty"`
}

// Poll is the observed status of a job. Matches is populated only when
// State is StateCompleted. Message describes the failure when StateFailed,
// and Permanent marks it unrecoverable (malformed input rather than a
// transient service fault).
type Poll struct {
	State     State   `json:"state"`
	Matches   []Match `json:"matches,omitempty"`
	Message   string  `json:"message,omitempty"`
	Permanent bool    `json:"permanent,omitempty"`
}
