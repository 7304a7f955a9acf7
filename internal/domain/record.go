package domain

import "time"

// OutcomeRecord is the ledger row of the latest outcome for an object
type OutcomeRecord struct {
	Name      string
	RunID     string
	Status    Status
	Kind      FailureKind
	Message   string
	Path      string
	Width     int
	Height    int
	UpdatedAt time.Time
}

// Record converts an outcome into its ledger row for the given run.
func (o Outcome) Record(runID string, at time.Time) OutcomeRecord {
	return OutcomeRecord{
		Name:      o.Name,
		RunID:     runID,
		Status:    o.Status,
		Kind:      o.Kind,
		Message:   o.Message(),
		Path:      o.Path,
		Width:     o.Width,
		Height:    o.Height,
		UpdatedAt: at,
	}
}
