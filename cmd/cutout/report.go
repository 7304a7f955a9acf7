package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/basel-ax/skycutout/internal/domain"
	"github.com/basel-ax/skycutout/internal/repository"
)

func formatRecord(rec domain.OutcomeRecord) string {
	return fmt.Sprintf("[%s] %s at %s (run %s)", rec.Name, rec.Message, rec.UpdatedAt.Format("2006-01-02 15:04:05"), rec.RunID)
}

// reportLines renders the ledger: the latest outcome of name, or every failed
// object when name is empty.
func reportLines(ctx context.Context, repo repository.OutcomeRepository, name string) ([]string, error) {
	if name != "" {
		rec, err := repo.Get(ctx, name)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to look up %s", name)
		}
		if rec == nil {
			return []string{fmt.Sprintf("[%s] no outcome recorded", name)}, nil
		}
		return []string{formatRecord(*rec)}, nil
	}

	records, err := repo.ListFailed(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list failures")
	}
	if len(records) == 0 {
		return []string{"No failed objects recorded"}, nil
	}
	lines := make([]string, 0, len(records))
	for _, rec := range records {
		lines = append(lines, formatRecord(rec))
	}
	return lines, nil
}
