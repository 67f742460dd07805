package pricecheck

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/pricecheck/internal/store/migrations"
	"github.com/oklog/ulid/v2"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

const schemaVersion = "2"

// Selector is a set of equality constraints over document fields. A nil
// value matches documents where the field is absent or null.
type Selector map[string]any

// PutResult is the outcome of a successful write.
type PutResult struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// BulkResult is the per-document outcome of BulkPut. Err is nil on success.
type BulkResult struct {
	ID  string `json:"id"`
	Rev string `json:"rev,omitempty"`
	Err error  `json:"-"`
}

// Store is the local document store: a SQLite database holding every entity
// kind as a JSON document keyed by _id, with optimistic revision control.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	path   string
}

// fieldName restricts selector fields to plain identifiers so they can be
// embedded in JSON paths.
var fieldName = regexp.MustCompile(`^[A-Za-z$][A-Za-z0-9_]*$`)

// NewStore opens or creates a local document store.
func NewStore(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrent access
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	store := &Store{db: db, path: path}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("store: set goose dialect: %w", err)
	}
	if err := goose.Up(s.db, "."); err != nil {
		return fmt.Errorf("store: run migrations: %w", err)
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES ('schema_version', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, schemaVersion)
	return err
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Get returns the document with the given id, or ErrNotFound.
func (s *Store) Get(id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	row := s.db.QueryRow(`SELECT id, rev, body FROM documents WHERE id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store: get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return doc, nil
}

// Put creates or updates a document. Creating requires the id to be unused
// and no _rev; updating requires _rev to match the stored revision. Any
// other combination fails with ErrConflict.
func (s *Store) Put(doc Document) (*PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback() // no-op if committed

	res, err := putTx(tx, doc, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit put %s: %w", doc.ID(), err)
	}
	return res, nil
}

// BulkPut writes many documents in one transaction. Conflicts and invalid
// documents are reported per document and do not stop the batch; documents
// without an _id get a generated one.
func (s *Store) BulkPut(docs []Document) ([]BulkResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("store: begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	results := make([]BulkResult, len(docs))
	for i, doc := range docs {
		if doc.ID() == "" {
			doc = doc.Clone()
			doc[FieldID] = strings.ToLower(ulid.Make().String())
		}
		res, err := putTx(tx, doc, now)
		if err != nil {
			var verr *ValidationError
			if !errors.Is(err, ErrConflict) && !errors.As(err, &verr) {
				return nil, err
			}
			results[i] = BulkResult{ID: doc.ID(), Err: err}
			continue
		}
		results[i] = BulkResult{ID: res.ID, Rev: res.Rev}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("store: commit bulk put: %w", err)
	}
	return results, nil
}

// Remove deletes a document. The document's _rev must match the stored
// revision.
func (s *Store) Remove(doc Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	id := doc.ID()
	var current string
	err := s.db.QueryRow(`SELECT rev FROM documents WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("store: remove %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("store: remove %s: %w", id, err)
	}
	if doc.Rev() != current {
		return fmt.Errorf("store: remove %s: %w", id, ErrConflict)
	}

	if _, err := s.db.Exec(`DELETE FROM documents WHERE id = ? AND rev = ?`, id, current); err != nil {
		return fmt.Errorf("store: remove %s: %w", id, err)
	}
	return nil
}

// Find returns the documents matching every constraint of sel, ordered by
// id. A nil or empty selector returns all documents.
func (s *Store) Find(sel Selector) ([]Document, error) {
	where, args, err := buildWhere(sel)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`SELECT id, rev, body FROM documents`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, fmt.Errorf("store: find: %w", err)
	}
	defer rows.Close()

	var results []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("store: find: %w", err)
		}
		results = append(results, doc)
	}
	return results, rows.Err()
}

// AllDocs returns every document in the store.
func (s *Store) AllDocs() ([]Document, error) {
	return s.Find(nil)
}

// EnsureIndex creates an index over the given fields if it does not exist.
// Indexes only affect query speed, never results.
func (s *Store) EnsureIndex(fields ...string) error {
	if len(fields) == 0 {
		return &ValidationError{Field: "fields", Message: "at least one field is required"}
	}
	exprs := make([]string, len(fields))
	for i, f := range fields {
		expr, err := fieldExpr(f)
		if err != nil {
			return err
		}
		exprs[i] = expr
	}
	name := "idx_documents_" + strings.ToLower(strings.Join(fields, "_"))
	name = strings.NewReplacer("$", "", ".", "_").Replace(name)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON documents (%s)`, name, strings.Join(exprs, ", "))
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("store: create index %s: %w", name, err)
	}
	return nil
}

// Destroy irrecoverably discards every document, leaving an empty store.
// Metadata (including the last sync timestamp) is kept.
func (s *Store) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM documents`); err != nil {
		return fmt.Errorf("store: destroy: %w", err)
	}
	return nil
}

// GetMetadata returns a metadata value, or ErrNotFound.
func (s *Store) GetMetadata(key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", ErrStoreClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("store: metadata %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("store: metadata %s: %w", key, err)
	}
	return value, nil
}

// SetMetadata stores a metadata value.
func (s *Store) SetMetadata(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store: set metadata %s: %w", key, err)
	}
	return nil
}

// LastSync returns the time of the last completed full refresh, or the zero
// time if the store has never been synced.
func (s *Store) LastSync() (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return time.Time{}, ErrStoreClosed
	}
	return s.lastSync()
}

// lastSync reads the last sync time. Callers hold s.mu.
func (s *Store) lastSync() (time.Time, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM metadata WHERE key = ?`, LastSyncKey).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("store: read %s: %w", LastSyncKey, err)
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("store: parse %s: %w", LastSyncKey, err)
	}
	return t, nil
}

// Stats returns store statistics.
func (s *Store) Stats() (*StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	stats := &StoreStats{ByEntity: map[EntityName]int{}, SchemaVersion: schemaVersion}

	rows, err := s.db.Query(`SELECT entity_name, COUNT(*) FROM documents GROUP BY entity_name`)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("store: stats: %w", err)
		}
		stats.ByEntity[EntityName(name)] = n
		stats.DocumentCount += n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}

	err = s.db.QueryRow(`
		SELECT COUNT(*) FROM documents
		WHERE entity_name = ? AND json_extract(body, '$.IsCollected') = 1
	`, string(EntityProducts)).Scan(&stats.PendingSync)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}

	if stats.LastSync, err = s.lastSync(); err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}

	return stats, nil
}

// Close closes the store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}

// putTx applies the revision rules of Put inside tx.
func putTx(tx *sql.Tx, doc Document, now time.Time) (*PutResult, error) {
	id := doc.ID()
	if id == "" {
		return nil, &ValidationError{Field: FieldID, Message: "required"}
	}

	var current string
	exists := true
	err := tx.QueryRow(`SELECT rev FROM documents WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		exists = false
	} else if err != nil {
		return nil, fmt.Errorf("store: put %s: %w", id, err)
	}

	rev := doc.Rev()
	if (exists && rev != current) || (!exists && rev != "") {
		return nil, fmt.Errorf("store: put %s: %w", id, ErrConflict)
	}

	newRev := nextRev(current)
	body, err := encodeBody(doc)
	if err != nil {
		return nil, fmt.Errorf("store: put %s: %w", id, err)
	}

	if exists {
		_, err = tx.Exec(`
			UPDATE documents SET rev = ?, entity_name = ?, body = ?, updated_at = ?
			WHERE id = ?
		`, newRev, doc.String(FieldEntityName), body, now.Format(time.RFC3339Nano), id)
	} else {
		_, err = tx.Exec(`
			INSERT INTO documents (id, rev, entity_name, body, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, id, newRev, doc.String(FieldEntityName), body, now.Format(time.RFC3339Nano))
	}
	if err != nil {
		return nil, fmt.Errorf("store: put %s: %w", id, err)
	}
	return &PutResult{ID: id, Rev: newRev}, nil
}

// nextRev returns the revision following current: "<generation>-<ulid>".
func nextRev(current string) string {
	gen := 0
	if i := strings.IndexByte(current, '-'); i > 0 {
		gen, _ = strconv.Atoi(current[:i])
	}
	return fmt.Sprintf("%d-%s", gen+1, strings.ToLower(ulid.Make().String()))
}

// encodeBody serialises everything but the revision envelope.
func encodeBody(doc Document) (string, error) {
	body := make(map[string]any, len(doc))
	for k, v := range doc {
		if k == FieldID || k == FieldRev {
			continue
		}
		body[k] = v
	}
	data, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// fieldExpr maps a document field to the SQL expression reading it.
func fieldExpr(field string) (string, error) {
	switch field {
	case FieldID:
		return "id", nil
	case FieldRev:
		return "rev", nil
	case FieldEntityName:
		return "entity_name", nil
	}
	if !fieldName.MatchString(field) {
		return "", &ValidationError{Field: "selector", Message: fmt.Sprintf("unsupported field name %q", field)}
	}
	return fmt.Sprintf(`json_extract(body, '$.%s')`, field), nil
}

func buildWhere(sel Selector) (string, []any, error) {
	if len(sel) == 0 {
		return "", nil, nil
	}

	fields := make([]string, 0, len(sel))
	for f := range sel {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	clauses := make([]string, 0, len(fields))
	args := make([]any, 0, len(fields))
	for _, f := range fields {
		expr, err := fieldExpr(f)
		if err != nil {
			return "", nil, err
		}
		v, err := sqlValue(sel[f])
		if err != nil {
			return "", nil, &ValidationError{Field: f, Message: err.Error()}
		}
		if v == nil {
			clauses = append(clauses, expr+" IS NULL")
			continue
		}
		clauses = append(clauses, expr+" = ?")
		args = append(args, v)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

// sqlValue converts a selector value to what json_extract yields for it.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		return x, nil
	case EntityName:
		return string(x), nil
	case CreatedBy:
		return string(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case int:
		return x, nil
	case int64:
		return x, nil
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	default:
		return nil, fmt.Errorf("unsupported selector value of type %T", v)
	}
}

// scanner abstracts the Scan method shared by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(sc scanner) (Document, error) {
	var id, rev, body string
	if err := sc.Scan(&id, &rev, &body); err != nil {
		return nil, err
	}
	doc, err := parseDocument([]byte(body))
	if err != nil {
		return nil, err
	}
	doc[FieldID] = id
	doc[FieldRev] = rev
	return doc, nil
}
