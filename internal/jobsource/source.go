package jobsource

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"studiocast/internal/config"
	"studiocast/internal/logging"
	"studiocast/internal/services"
)

// ErrNotClaimed is returned when a terminal write targets a row that is not
// InProgress (and does not already hold the same terminal status).
var ErrNotClaimed = errors.New("row is not claimed")

// Source maps table rows to jobs and writes status back.
type Source struct {
	table          Table
	columns        config.Columns
	requireAccount bool
	logger         *slog.Logger

	mu     sync.Mutex
	layout *layout
}

// New constructs a Source over table using the configured column mapping.
func New(table Table, cfg *config.Config, logger *slog.Logger) *Source {
	s := &Source{
		table:  table,
		logger: logging.NewComponentLogger(logger, "jobsource"),
	}
	if cfg != nil {
		s.columns = cfg.Columns
		s.requireAccount = cfg.Jobs.RequireAccount
	}
	return s
}

// Probe reads the table once and verifies the header carries every required
// column.
func (s *Source) Probe(ctx context.Context) error {
	rows, err := s.read(ctx)
	if err != nil {
		return err
	}
	_, err = s.refreshLayout(rows)
	return err
}

// FetchPending returns rows whose status reads New, in sheet order. A limit
// of zero or less returns all of them.
func (s *Source) FetchPending(ctx context.Context, limit int) ([]Job, error) {
	rows, err := s.read(ctx)
	if err != nil {
		return nil, err
	}
	l, err := s.refreshLayout(rows)
	if err != nil {
		return nil, err
	}

	var jobs []Job
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		if ParseStatus(cell(row, l.status)) != StatusNew {
			continue
		}
		jobs = append(jobs, l.job(i+1, row))
		if limit > 0 && len(jobs) >= limit {
			break
		}
	}
	s.logger.Debug("pending rows fetched",
		logging.Int("pending", len(jobs)),
		logging.Int("rows", len(rows)-1),
	)
	return jobs, nil
}

// Claim marks the job InProgress if its row still reads New. It returns false
// when another worker or an operator changed the row first.
func (s *Source) Claim(ctx context.Context, job Job) (bool, error) {
	if job.RowIndex < 2 {
		return false, services.Wrap(services.ErrValidation, "jobsource", "claim", fmt.Sprintf("invalid row %d", job.RowIndex), nil)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.currentLayout(ctx)
	if err != nil {
		return false, err
	}
	status, err := s.cell(ctx, job.RowIndex, l.status)
	if err != nil {
		return false, err
	}
	if ParseStatus(status) != StatusNew {
		s.logger.Debug("claim lost", logging.Int(logging.FieldJobRow, job.RowIndex), logging.String("status", status))
		return false, nil
	}
	if l.title > 0 && job.Title != "" {
		title, err := s.cell(ctx, job.RowIndex, l.title)
		if err != nil {
			return false, err
		}
		if strings.TrimSpace(title) != job.Title {
			logging.WarnWithContext(s.logger, "row changed since fetch; skipping claim", "claim_row_moved",
				logging.Int(logging.FieldJobRow, job.RowIndex),
				logging.String(logging.FieldErrorHint, "avoid inserting or sorting rows while the daemon runs"),
				logging.String(logging.FieldImpact, "row will be reconsidered on the next fetch"),
			)
			return false, nil
		}
	}
	if err := s.write(ctx, []CellUpdate{{Row: job.RowIndex, Col: l.status, Value: string(StatusInProgress)}}); err != nil {
		return false, err
	}
	return true, nil
}

// Complete records a successful upload. Repeating the call writes the same values.
func (s *Source) Complete(ctx context.Context, job Job, resultURL string) error {
	return s.finish(ctx, job, StatusDone, func(l layout) []CellUpdate {
		updates := []CellUpdate{
			{Row: job.RowIndex, Col: l.status, Value: string(StatusDone)},
			{Row: job.RowIndex, Col: l.resultURL, Value: resultURL},
		}
		if l.reason > 0 {
			updates = append(updates, CellUpdate{Row: job.RowIndex, Col: l.reason, Value: ""})
		}
		return updates
	})
}

// Fail records a failed upload with its failure kind as the reason. Repeating
// the call writes the same values.
func (s *Source) Fail(ctx context.Context, job Job, reason string) error {
	return s.finish(ctx, job, StatusFailed, func(l layout) []CellUpdate {
		updates := []CellUpdate{{Row: job.RowIndex, Col: l.status, Value: string(StatusFailed)}}
		if l.reason > 0 {
			updates = append(updates, CellUpdate{Row: job.RowIndex, Col: l.reason, Value: reason})
		}
		return updates
	})
}

func (s *Source) finish(ctx context.Context, job Job, target Status, build func(layout) []CellUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, err := s.currentLayout(ctx)
	if err != nil {
		return err
	}
	current, err := s.cell(ctx, job.RowIndex, l.status)
	if err != nil {
		return err
	}
	switch ParseStatus(current) {
	case StatusInProgress, target:
	default:
		return fmt.Errorf("%w: row %d reads %q, want %s", ErrNotClaimed, job.RowIndex, current, StatusInProgress)
	}
	return s.write(ctx, build(l))
}

func (s *Source) currentLayout(ctx context.Context) (layout, error) {
	if s.layout != nil {
		return *s.layout, nil
	}
	rows, err := s.read(ctx)
	if err != nil {
		return layout{}, err
	}
	return s.storeLayout(rows)
}

func (s *Source) refreshLayout(rows [][]string) (layout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeLayout(rows)
}

func (s *Source) storeLayout(rows [][]string) (layout, error) {
	if len(rows) == 0 {
		return layout{}, services.Wrap(services.ErrSchema, "jobsource", "resolve columns", "table has no header row", nil)
	}
	l, err := resolveLayout(rows[0], s.columns, s.requireAccount)
	if err != nil {
		return layout{}, err
	}
	s.layout = &l
	return l, nil
}

func (s *Source) read(ctx context.Context) ([][]string, error) {
	rows, err := s.table.Read(ctx)
	if err != nil {
		return nil, wrapTableError("read rows", err)
	}
	return rows, nil
}

func (s *Source) cell(ctx context.Context, row, col int) (string, error) {
	value, err := s.table.Cell(ctx, row, col)
	if err != nil {
		return "", wrapTableError(fmt.Sprintf("read cell r%dc%d", row, col), err)
	}
	return value, nil
}

func (s *Source) write(ctx context.Context, updates []CellUpdate) error {
	if err := s.table.Write(ctx, updates); err != nil {
		return wrapTableError("write cells", err)
	}
	return nil
}

// wrapTableError marks unclassified table failures as transient.
func wrapTableError(operation string, err error) error {
	if services.KindOf(err) != services.KindUnknown {
		return err
	}
	return services.Wrap(services.ErrTransientIO, "jobsource", operation, "", err)
}
