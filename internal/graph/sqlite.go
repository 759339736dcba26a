package graph

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Compile-time check that SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore persists graph collections in a SQLite database. All rows are
// keyed by (user_id, id); upserts are last-writer-wins via ON CONFLICT.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "paperforge.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for tests.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *SQLiteStore) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *SQLiteStore) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Concepts ---

const conceptUpsert = `
	INSERT INTO concepts (user_id, id, name, name_en, name_ja, definition, definition_ja, concept_type, source_paper)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(user_id, id) DO UPDATE SET
		name = excluded.name,
		name_en = excluded.name_en,
		name_ja = excluded.name_ja,
		definition = excluded.definition,
		definition_ja = excluded.definition_ja,
		concept_type = excluded.concept_type,
		source_paper = excluded.source_paper`

func (s *SQLiteStore) PutConcept(userID string, c Concept) error {
	_, err := s.db.Exec(conceptUpsert,
		userID, c.ID, c.Name, c.NameEn, c.NameJa, c.Definition, c.DefinitionJa, c.ConceptType, c.SourcePaper)
	return err
}

func (s *SQLiteStore) PutConceptsBatch(userID string, concepts []Concept) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch transaction: %w", err)
	}

	stmt, err := tx.Prepare(conceptUpsert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, c := range concepts {
		if _, err := stmt.Exec(userID, c.ID, c.Name, c.NameEn, c.NameJa, c.Definition, c.DefinitionJa, c.ConceptType, c.SourcePaper); err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting concept %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetConcept(userID, conceptID string) (Concept, error) {
	var c Concept
	err := s.db.QueryRow(`
		SELECT id, name, name_en, name_ja, definition, definition_ja, concept_type, source_paper
		FROM concepts WHERE user_id = ? AND id = ?`, userID, conceptID,
	).Scan(&c.ID, &c.Name, &c.NameEn, &c.NameJa, &c.Definition, &c.DefinitionJa, &c.ConceptType, &c.SourcePaper)
	if err == sql.ErrNoRows {
		return Concept{}, ErrNotFound
	}
	if err != nil {
		return Concept{}, err
	}
	return c, nil
}

func (s *SQLiteStore) AllConcepts(userID string) ([]Concept, error) {
	rows, err := s.db.Query(`
		SELECT id, name, name_en, name_ja, definition, definition_ja, concept_type, source_paper
		FROM concepts WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Concept
	for rows.Next() {
		var c Concept
		if err := rows.Scan(&c.ID, &c.Name, &c.NameEn, &c.NameJa, &c.Definition, &c.DefinitionJa, &c.ConceptType, &c.SourcePaper); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteConcept(userID, conceptID string) error {
	return s.deleteRow("concepts", userID, conceptID)
}

func (s *SQLiteStore) ClearConcepts(userID string) (int, error) {
	return s.clearRows("concepts", userID)
}

// --- Relations ---

const relationUpsert = `
	INSERT INTO relations (user_id, id, source, target, relation_type)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(user_id, id) DO UPDATE SET
		source = excluded.source,
		target = excluded.target,
		relation_type = excluded.relation_type`

func (s *SQLiteStore) PutRelation(userID string, r Relation) error {
	_, err := s.db.Exec(relationUpsert, userID, r.ID, r.Source, r.Target, r.RelationType)
	return err
}

func (s *SQLiteStore) PutRelationsBatch(userID string, relations []Relation) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning batch transaction: %w", err)
	}

	stmt, err := tx.Prepare(relationUpsert)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range relations {
		if _, err := stmt.Exec(userID, r.ID, r.Source, r.Target, r.RelationType); err != nil {
			tx.Rollback()
			return fmt.Errorf("upserting relation %s: %w", r.ID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) AllRelations(userID string) ([]Relation, error) {
	rows, err := s.db.Query(`
		SELECT id, source, target, relation_type
		FROM relations WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ID, &r.Source, &r.Target, &r.RelationType); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteRelation(userID, relationID string) error {
	return s.deleteRow("relations", userID, relationID)
}

func (s *SQLiteStore) ClearRelations(userID string) (int, error) {
	return s.clearRows("relations", userID)
}

// --- Papers ---

func (s *SQLiteStore) PutPaper(userID string, p Paper) error {
	_, err := s.db.Exec(`
		INSERT INTO papers (user_id, id, filename, title, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			filename = excluded.filename,
			title = excluded.title,
			status = excluded.status`,
		userID, p.ID, p.Filename, p.Title, p.Status)
	return err
}

func (s *SQLiteStore) GetPaper(userID, paperID string) (Paper, error) {
	var p Paper
	err := s.db.QueryRow(`
		SELECT id, filename, title, status FROM papers WHERE user_id = ? AND id = ?`,
		userID, paperID,
	).Scan(&p.ID, &p.Filename, &p.Title, &p.Status)
	if err == sql.ErrNoRows {
		return Paper{}, ErrNotFound
	}
	if err != nil {
		return Paper{}, err
	}
	return p, nil
}

func (s *SQLiteStore) AllPapers(userID string) ([]Paper, error) {
	rows, err := s.db.Query(`
		SELECT id, filename, title, status FROM papers
		WHERE user_id = ? ORDER BY created_at ASC, id ASC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Paper
	for rows.Next() {
		var p Paper
		if err := rows.Scan(&p.ID, &p.Filename, &p.Title, &p.Status); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeletePaper(userID, paperID string) error {
	return s.deleteRow("papers", userID, paperID)
}

func (s *SQLiteStore) ClearPapers(userID string) (int, error) {
	return s.clearRows("papers", userID)
}

// deleteRow removes one record by (user_id, id). The table name is always
// one of the fixed collection tables, never caller input.
func (s *SQLiteStore) deleteRow(table, userID, id string) error {
	res, err := s.db.Exec("DELETE FROM "+table+" WHERE user_id = ? AND id = ?", userID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) clearRows(table, userID string) (int, error) {
	res, err := s.db.Exec("DELETE FROM "+table+" WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
