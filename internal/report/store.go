// Package report persists and renders audit results: a SQLite store for
// querying and resume decisions, and a Markdown report with the full
// turn/attempt trail for human review.
package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/massaudit/massaudit/internal/verify"
	"github.com/massaudit/massaudit/pkg/issuecorrelation"
)

const schema = `
CREATE TABLE IF NOT EXISTS findings (
	id             TEXT PRIMARY KEY,
	project        TEXT NOT NULL,
	scanner        TEXT,
	rule_id        TEXT NOT NULL,
	title          TEXT,
	severity       TEXT,
	class          TEXT,
	file_path      TEXT,
	start_line     INTEGER,
	end_line       INTEGER,
	snippet_hash   TEXT,
	risk           TEXT NOT NULL,
	rationale      TEXT,
	outcome        TEXT,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS judgment_turns (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	finding_id     TEXT NOT NULL,
	turn_index     INTEGER NOT NULL,
	context_size   INTEGER NOT NULL,
	verdict_json   TEXT,
	request_json   TEXT,
	resolved_json  TEXT,
	engine_error   TEXT,
	FOREIGN KEY (finding_id) REFERENCES findings(id)
);

CREATE TABLE IF NOT EXISTS verification_attempts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	finding_id     TEXT NOT NULL,
	attempt_index  INTEGER NOT NULL,
	script         TEXT,
	output         TEXT,
	exit_status    INTEGER,
	build_ok       INTEGER NOT NULL,
	timed_out      INTEGER NOT NULL,
	outcome        TEXT,
	FOREIGN KEY (finding_id) REFERENCES findings(id)
);
`

// Store persists terminal records in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRecord writes one terminal record with its full turn and attempt trail
// in a single transaction.
func (s *Store) SaveRecord(record verify.Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT OR REPLACE INTO findings
		(id, project, scanner, rule_id, title, severity, class, file_path, start_line, end_line, snippet_hash, risk, rationale, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Finding.ID, record.Finding.Project, record.Finding.Scanner, record.Finding.RuleID, record.Finding.Title,
		record.Finding.Severity, string(record.Finding.Class), record.Finding.FilePath, record.Finding.StartLine,
		record.Finding.EndLine, issuecorrelation.ComputeSnippetHash(record.Finding.Snippet),
		string(record.Verdict.Risk), record.Verdict.Rationale, string(record.Outcome),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM judgment_turns WHERE finding_id = ?`, record.Finding.ID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}
	for _, turn := range record.Turns {
		verdictJSON, _ := json.Marshal(turn.Verdict)
		requestJSON, _ := json.Marshal(turn.NeedContext)
		resolvedJSON, _ := json.Marshal(turn.ResolvedNow)
		_, err = tx.Exec(`INSERT INTO judgment_turns
			(finding_id, turn_index, context_size, verdict_json, request_json, resolved_json, engine_error)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			record.Finding.ID, turn.Index, turn.ContextSize,
			string(verdictJSON), string(requestJSON), string(resolvedJSON), turn.EngineError)
		if err != nil {
			return fmt.Errorf("insert turn: %w", err)
		}
	}

	if _, err := tx.Exec(`DELETE FROM verification_attempts WHERE finding_id = ?`, record.Finding.ID); err != nil {
		return fmt.Errorf("clear attempts: %w", err)
	}
	for _, attempt := range record.Attempts {
		_, err = tx.Exec(`INSERT INTO verification_attempts
			(finding_id, attempt_index, script, output, exit_status, build_ok, timed_out, outcome)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			record.Finding.ID, attempt.Index, attempt.Script, attempt.Output,
			attempt.ExitStatus, boolToInt(attempt.BuildOK), boolToInt(attempt.TimedOut), string(attempt.Outcome))
		if err != nil {
			return fmt.Errorf("insert attempt: %w", err)
		}
	}

	return tx.Commit()
}

// ProjectDone reports whether a project already has stored results, used for
// resume decisions at project granularity.
func (s *Store) ProjectDone(project string) (bool, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM findings WHERE project = ?`, project).Scan(&count); err != nil {
		return false, fmt.Errorf("query project: %w", err)
	}
	return count > 0, nil
}

// KnownIssues returns correlation metadata for every stored finding of a
// project, used to decide which freshly scanned findings still need
// verification.
func (s *Store) KnownIssues(project string) ([]issuecorrelation.IssueMetadata, error) {
	rows, err := s.db.Query(`SELECT id, scanner, rule_id, severity, file_path, start_line, end_line, snippet_hash
		FROM findings WHERE project = ?`, project)
	if err != nil {
		return nil, fmt.Errorf("query known findings: %w", err)
	}
	defer rows.Close()

	var known []issuecorrelation.IssueMetadata
	for rows.Next() {
		var meta issuecorrelation.IssueMetadata
		if err := rows.Scan(&meta.IssueID, &meta.Scanner, &meta.RuleID, &meta.Severity,
			&meta.Filename, &meta.StartLine, &meta.EndLine, &meta.SnippetHash); err != nil {
			return nil, fmt.Errorf("scan known finding: %w", err)
		}
		known = append(known, meta)
	}
	return known, rows.Err()
}

// Summary is the per-project aggregate used by the report header.
type Summary struct {
	Project   string
	Total     int
	ByRisk    map[string]int
	ByOutcome map[string]int
}

// Summarize aggregates stored results for one project.
func (s *Store) Summarize(project string) (Summary, error) {
	summary := Summary{
		Project:   project,
		ByRisk:    map[string]int{},
		ByOutcome: map[string]int{},
	}

	rows, err := s.db.Query(`SELECT risk, outcome FROM findings WHERE project = ?`, project)
	if err != nil {
		return summary, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var risk, outcome string
		if err := rows.Scan(&risk, &outcome); err != nil {
			return summary, fmt.Errorf("scan finding: %w", err)
		}
		summary.Total++
		summary.ByRisk[risk]++
		if outcome != "" {
			summary.ByOutcome[outcome]++
		}
	}
	return summary, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
