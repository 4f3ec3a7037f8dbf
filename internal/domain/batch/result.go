package batch

// ItemStatus is the processing outcome of a single batch item.
type ItemStatus string

// Batch item status values.
const (
	StatusOK      ItemStatus = "ok"
	StatusError   ItemStatus = "error"
	StatusSkipped ItemStatus = "skipped"
)

// Result is the outcome of processing one document in a batch operation (rebuild).
type Result struct {
	id     string
	status ItemStatus
	chunks int
	err    error
}

// NewOK creates a successful result for a document that now has chunks embeddings.
func NewOK(id string, chunks int) Result { return Result{id: id, status: StatusOK, chunks: chunks} }

// NewError creates a failed result. The document's previous embeddings stay untouched.
func NewError(id string, err error) Result { return Result{id: id, status: StatusError, err: err} }

// NewSkipped creates a result for a document that had nothing to process.
func NewSkipped(id string) Result { return Result{id: id, status: StatusSkipped} }

// ID returns the document identifier.
func (r Result) ID() string { return r.id }

// Status returns the processing outcome.
func (r Result) Status() ItemStatus { return r.status }

// Chunks returns the number of embeddings written for the document.
func (r Result) Chunks() int { return r.chunks }

// Err returns the error, if any.
func (r Result) Err() error { return r.err }

// Summary counts results by status.
type Summary struct {
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Chunks    int
}

// Summarize aggregates a batch of results.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch r.status {
		case StatusOK:
			s.Succeeded++
			s.Chunks += r.chunks
		case StatusError:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
	}
	return s
}
