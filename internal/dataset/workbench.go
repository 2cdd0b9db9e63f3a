package dataset

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// DefaultQueryLimit caps rows returned when the caller gives no limit.
const DefaultQueryLimit = 50

// MaxQueryLimit is the largest row cap a caller may ask for.
const MaxQueryLimit = 500

// ErrReadOnlyQuery is returned for anything other than a single SELECT.
var ErrReadOnlyQuery = errors.New("only a single SELECT (or WITH ... SELECT) statement is allowed")

// ─── Types ───────────────────────────────────────────────────────────────────

// Table maps a sheet to the SQL table holding it.
type Table struct {
	Sheet   string   `json:"sheet"`
	Name    string   `json:"table"`
	Columns []string `json:"columns"`
	Rows    int      `json:"rows"`
}

// QueryResult is a bounded result set.
type QueryResult struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	Truncated bool       `json:"truncated"`
}

// Workbench is an in-memory SQLite database holding one table per sheet.
// It lives as long as the dataset it was built from.
type Workbench struct {
	db     *sql.DB
	tables []Table
}

// ─── Construction ────────────────────────────────────────────────────────────

// NewWorkbench loads every sheet of ds into a fresh in-memory database.
// The first row of each sheet is the header.
func NewWorkbench(ctx context.Context, ds *Dataset) (*Workbench, error) {
	if ds == nil {
		return nil, fmt.Errorf("workbench: no dataset")
	}

	db, err := openDB("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("workbench: open database: %w", err)
	}
	// Each connection to :memory: is its own database.
	db.SetMaxOpenConns(1)

	w := &Workbench{db: db}
	used := map[string]bool{}
	for _, sheet := range ds.SheetNames {
		t, err := w.load(ctx, sheet, ds.Sheets[sheet], used)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		w.tables = append(w.tables, t)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA query_only = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("workbench: pragma query_only: %w", err)
	}
	return w, nil
}

func (w *Workbench) load(ctx context.Context, sheet string, rows [][]string, used map[string]bool) (Table, error) {
	name := uniqueIdent(identifier(sheet, "sheet"), used)
	t := Table{Sheet: sheet, Name: name}

	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	width := len(header)
	for _, r := range rows {
		if len(r) > width {
			width = len(r)
		}
	}
	if width == 0 {
		width = 1
	}

	cols := map[string]bool{}
	for i := 0; i < width; i++ {
		label := ""
		if i < len(header) {
			label = header[i]
		}
		t.Columns = append(t.Columns, uniqueIdent(identifier(label, "col_"+strconv.Itoa(i+1)), cols))
	}

	defs := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		defs[i] = quoteIdent(c) + " NUMERIC"
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(defs, ", "))
	if _, err := w.db.ExecContext(ctx, create); err != nil {
		return t, fmt.Errorf("workbench: create table %q: %w", name, err)
	}
	if len(rows) < 2 {
		return t, nil
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return t, fmt.Errorf("workbench: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(marks, ", ")))
	if err != nil {
		return t, fmt.Errorf("workbench: prepare insert: %w", err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for _, r := range rows[1:] {
		for i := range args {
			args[i] = nil
			if i < len(r) && r[i] != "" {
				args[i] = r[i]
			}
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return t, fmt.Errorf("workbench: insert into %q: %w", name, err)
		}
		t.Rows++
	}
	if err := tx.Commit(); err != nil {
		return t, fmt.Errorf("workbench: commit: %w", err)
	}
	return t, nil
}

// Close releases the database.
func (w *Workbench) Close() error {
	return w.db.Close()
}

// Tables lists the sheet-to-table mapping in sheet order.
func (w *Workbench) Tables() []Table {
	out := make([]Table, len(w.tables))
	copy(out, w.tables)
	return out
}

// ─── Queries ─────────────────────────────────────────────────────────────────

// Query runs one read-only statement and returns at most limit rows.
// A limit of zero or less means DefaultQueryLimit.
func (w *Workbench) Query(ctx context.Context, query string, limit int) (*QueryResult, error) {
	query = strings.TrimSpace(query)
	query = strings.TrimSpace(strings.TrimSuffix(query, ";"))
	if err := checkReadOnly(query); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if limit > MaxQueryLimit {
		limit = MaxQueryLimit
	}

	rows, err := w.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("workbench: query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("workbench: columns: %w", err)
	}
	res := &QueryResult{Columns: cols, Rows: [][]string{}}

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	for rows.Next() {
		if len(res.Rows) == limit {
			res.Truncated = true
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("workbench: scan: %w", err)
		}
		out := make([]string, len(cols))
		for i, v := range vals {
			out[i] = formatValue(v)
		}
		res.Rows = append(res.Rows, out)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("workbench: rows: %w", err)
	}
	return res, nil
}

var leadingKeyword = regexp.MustCompile(`(?i)^(select|with)\b`)

// checkReadOnly admits one SELECT or WITH statement. query_only guards
// writes at the engine level; this gives a clearer error first.
func checkReadOnly(query string) error {
	if query == "" {
		return fmt.Errorf("%w: query is empty", ErrReadOnlyQuery)
	}
	if !leadingKeyword.MatchString(query) {
		return ErrReadOnlyQuery
	}
	if strings.Contains(stripLiterals(query), ";") {
		return fmt.Errorf("%w: multiple statements", ErrReadOnlyQuery)
	}
	return nil
}

// stripLiterals blanks out quoted strings so separators inside them are ignored.
func stripLiterals(q string) string {
	var b strings.Builder
	var quote rune
	for _, r := range q {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"' || r == '`':
			quote = r
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// ─── Identifiers ─────────────────────────────────────────────────────────────

var nonIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// identifier lowercases s and keeps only [a-z0-9_], falling back when
// nothing usable remains.
func identifier(s, fallback string) string {
	id := nonIdent.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "_")
	id = strings.Trim(id, "_")
	if id == "" {
		return fallback
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "_" + id
	}
	return id
}

func uniqueIdent(id string, used map[string]bool) string {
	cand := id
	for n := 2; used[cand]; n++ {
		cand = id + "_" + strconv.Itoa(n)
	}
	used[cand] = true
	return cand
}

func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
