package main

import (
	"context"
	"encoding/csv"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/basel-ax/skycutout/internal/domain"
	"github.com/basel-ax/skycutout/internal/repository"
)

// fetcher is satisfied by service.CutoutService
type fetcher interface {
	Fetch(ctx context.Context, req domain.Request) domain.Outcome
}

// summary counts the outcomes of one run
type summary struct {
	RunID  string
	Total  int
	Status map[domain.Status]int
	Kinds  map[domain.FailureKind]int
}

func newSummary(runID string) *summary {
	return &summary{
		RunID:  runID,
		Status: make(map[domain.Status]int),
		Kinds:  make(map[domain.FailureKind]int),
	}
}

func (s *summary) add(o domain.Outcome) {
	s.Total++
	s.Status[o.Status]++
	if o.Status == domain.StatusFailed {
		s.Kinds[o.Kind]++
	}
}

func (s *summary) String() string {
	line := "run " + s.RunID + ": " + strconv.Itoa(s.Total) + " objects, " +
		strconv.Itoa(s.Status[domain.StatusSaved]) + " saved, " +
		strconv.Itoa(s.Status[domain.StatusSkipped]) + " skipped, " +
		strconv.Itoa(s.Status[domain.StatusFailed]) + " failed"
	if len(s.Kinds) == 0 {
		return line
	}
	kinds := make([]string, 0, len(s.Kinds))
	for _, k := range []domain.FailureKind{
		domain.KindInvalidInput,
		domain.KindNetworkFailure,
		domain.KindParseFailure,
		domain.KindMissingBand,
		domain.KindDecompressFailure,
		domain.KindOutOfBounds,
		domain.KindWriteFailure,
	} {
		if n := s.Kinds[k]; n > 0 {
			kinds = append(kinds, string(k)+"="+strconv.Itoa(n))
		}
	}
	return line + " (" + strings.Join(kinds, ", ") + ")"
}

// readCatalog parses name,ra,dec rows. A leading header row and lines starting
// with # are skipped. Unparseable coordinates become NaN so the request fails
// validation on its own instead of aborting the catalog.
func readCatalog(r io.Reader, outputDir string) ([]domain.Request, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var reqs []domain.Request
	for line := 0; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to read catalog")
		}
		if len(record) < 3 {
			return nil, errors.Errorf("catalog line %d: expected name,ra,dec, got %d fields", line+1, len(record))
		}
		ra, raErr := strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
		dec, decErr := strconv.ParseFloat(strings.TrimSpace(record[2]), 64)
		if line == 0 && raErr != nil && decErr != nil {
			continue
		}
		if raErr != nil {
			ra = math.NaN()
		}
		if decErr != nil {
			dec = math.NaN()
		}
		reqs = append(reqs, domain.Request{
			Name:      strings.TrimSpace(record[0]),
			RA:        ra,
			Dec:       dec,
			OutputDir: outputDir,
		})
	}
	return reqs, nil
}

// runCatalog fetches every request with at most concurrency fetches in flight.
// Each request writes its own file, so they share nothing but the summary.
func runCatalog(ctx context.Context, reqs []domain.Request, svc fetcher, repo repository.OutcomeRepository, concurrency int) *summary {
	sum := newSummary(uuid.NewString())
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for i, req := range reqs {
		if ctx.Err() != nil {
			log.Printf("Run %s interrupted, %d of %d objects not started", sum.RunID, len(reqs)-i, len(reqs))
			break
		}
		req := req
		g.Go(func() error {
			outcome := svc.Fetch(ctx, req)
			if repo != nil {
				if err := repo.Save(ctx, outcome.Record(sum.RunID, time.Now().UTC())); err != nil {
					log.Printf("[%s] Error recording outcome: %v", req.Name, err)
				}
			}
			mu.Lock()
			sum.add(outcome)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return sum
}
