package testsupport

import (
	"context"
	"strings"
	"sync"

	"studiocast/internal/jobsource"
)

// MemTable is an in-memory jobsource.Table with fault injection.
type MemTable struct {
	mu   sync.Mutex
	rows [][]string

	// FailReads makes the next N Read calls return ReadErr.
	FailReads int
	ReadErr   error
	// FailWrites makes the next N Write calls return WriteErr.
	FailWrites int
	WriteErr   error
	// BeforeCell runs before each Cell read without the table lock held.
	BeforeCell func(row, col int)

	reads  int
	writes []jobsource.CellUpdate
}

// NewMemTable builds a table from a header row and data rows.
func NewMemTable(header []string, rows ...[]string) *MemTable {
	all := make([][]string, 0, len(rows)+1)
	all = append(all, append([]string(nil), header...))
	for _, row := range rows {
		all = append(all, append([]string(nil), row...))
	}
	return &MemTable{rows: all}
}

func (m *MemTable) Read(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.FailReads > 0 {
		m.FailReads--
		return nil, m.ReadErr
	}
	out := make([][]string, len(m.rows))
	for i, row := range m.rows {
		out[i] = append([]string(nil), row...)
	}
	return out, nil
}

func (m *MemTable) Cell(ctx context.Context, row, col int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.BeforeCell != nil {
		m.BeforeCell(row, col)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(row, col), nil
}

func (m *MemTable) Write(ctx context.Context, updates []jobsource.CellUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites > 0 {
		m.FailWrites--
		return m.WriteErr
	}
	for _, u := range updates {
		m.set(u.Row, u.Col, u.Value)
		m.writes = append(m.writes, u)
	}
	return nil
}

// Value returns the cell in row under the named header column.
func (m *MemTable) Value(row int, column string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	col := m.column(column)
	if col == 0 {
		return ""
	}
	return m.get(row, col)
}

// Set writes a cell by header name, bypassing fault injection.
func (m *MemTable) Set(row int, column, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if col := m.column(column); col > 0 {
		m.set(row, col, value)
	}
}

// Writes returns every applied cell update in order.
func (m *MemTable) Writes() []jobsource.CellUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]jobsource.CellUpdate(nil), m.writes...)
}

// Reads returns how many Read calls were made.
func (m *MemTable) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *MemTable) column(name string) int {
	if len(m.rows) == 0 {
		return 0
	}
	for i, h := range m.rows[0] {
		if strings.EqualFold(strings.TrimSpace(h), name) {
			return i + 1
		}
	}
	return 0
}

func (m *MemTable) get(row, col int) string {
	if row < 1 || row > len(m.rows) {
		return ""
	}
	r := m.rows[row-1]
	if col < 1 || col > len(r) {
		return ""
	}
	return r[col-1]
}

func (m *MemTable) set(row, col int, value string) {
	for len(m.rows) < row {
		m.rows = append(m.rows, nil)
	}
	r := m.rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	m.rows[row-1] = r
}

// SheetHeader is the default column layout of the job spreadsheet.
var SheetHeader = []string{"UploadYT", "Account", "FileName", "DriveFileId", "DriveUrl", "Title", "Description", "Tags", "Hashtags", "Visibility", "AlteredContent", "MadeForKids", "YTUrl", "Reason"}

// JobRow returns a New row in SheetHeader layout.
func JobRow(account, file, title string) []string {
	row := make([]string, len(SheetHeader))
	row[0] = "New"
	row[1] = account
	row[2] = file
	row[5] = title
	return row
}
