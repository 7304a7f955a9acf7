package domain

import "fmt"

// Status is the terminal state of one request.
type Status string

const (
	StatusSaved   Status = "Saved"
	StatusSkipped Status = "Skipped"
	StatusFailed  Status = "Failed"
)

// FailureKind tells apart the reasons a request was aborted.
type FailureKind string

const (
	KindNone              FailureKind = ""
	KindInvalidInput      FailureKind = "InvalidInput"
	KindNetworkFailure    FailureKind = "NetworkFailure"
	KindParseFailure      FailureKind = "ParseFailure"
	KindMissingBand       FailureKind = "MissingBand"
	KindDecompressFailure FailureKind = "DecompressFailure"
	KindOutOfBounds       FailureKind = "OutOfBounds"
	KindWriteFailure      FailureKind = "WriteFailure"
)

// Outcome is the result of fetching one cutout. Warnings carries non-fatal
// geometry notices on a saved cutout.
type Outcome struct {
	Name     string
	Path     string
	Status   Status
	Kind     FailureKind
	Err      error
	Warnings []string
	Width    int
	Height   int
}

// Failed builds a failed outcome of the given kind.
func Failed(req Request, kind FailureKind, err error) Outcome {
	return Outcome{
		Name:   req.Name,
		Path:   req.OutputPath(),
		Status: StatusFailed,
		Kind:   kind,
		Err:    err,
	}
}

// Message renders the outcome for logs and the ledger.
func (o Outcome) Message() string {
	switch o.Status {
	case StatusFailed:
		if o.Err != nil {
			return fmt.Sprintf("%s: %v", o.Kind, o.Err)
		}
		return string(o.Kind)
	case StatusSkipped:
		return "file already exists: " + o.Path
	default:
		return fmt.Sprintf("cutout saved as %s (%dx%d)", o.Path, o.Width, o.Height)
	}
}
