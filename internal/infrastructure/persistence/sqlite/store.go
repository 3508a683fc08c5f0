// Package sqlite implements the hafalan document store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"

	_ "modernc.org/sqlite" // SQLite driver.
)

// Store wraps SQLite access for santri, daily records and summaries.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Records() hafalan.RecordRepository   { return recordRepo{s.db} }
func (s *Store) Summaries() hafalan.SummaryRepository { return summaryRepo{s.db} }
func (s *Store) Students() hafalan.StudentRepository  { return studentRepo{s.db} }

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS santri (
			nama TEXT PRIMARY KEY,
			gender TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS daily_records (
			id TEXT PRIMARY KEY,
			nama TEXT NOT NULL,
			bulan TEXT NOT NULL,
			tahun TEXT NOT NULL,
			tanggal_str TEXT NOT NULL,
			doc TEXT NOT NULL,
			seq INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS monthly_summaries (
			key TEXT PRIMARY KEY,
			nama TEXT NOT NULL,
			bulan TEXT NOT NULL,
			tahun TEXT NOT NULL,
			doc TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_daily_records_period ON daily_records(bulan, tahun);`,
		`CREATE INDEX IF NOT EXISTS idx_daily_records_nama ON daily_records(nama);`,
		`CREATE INDEX IF NOT EXISTS idx_daily_records_tanggal ON daily_records(tanggal_str);`,
		`CREATE INDEX IF NOT EXISTS idx_monthly_summaries_period ON monthly_summaries(bulan, tahun);`,
		`CREATE INDEX IF NOT EXISTS idx_monthly_summaries_nama ON monthly_summaries(nama);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func upstream(op string, err error) error {
	return shared.WrapError("sqlite", op, shared.ErrUpstreamUnavailable, "database request failed", err)
}

// ──────────────────────────────────────────────────────────────────────────────
// Daily records
// ──────────────────────────────────────────────────────────────────────────────

type recordRepo struct{ db *sql.DB }

func (r recordRepo) Save(ctx context.Context, rec hafalan.DailyRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return rec.ID, r.insert(ctx, rec.ID, rec.Document())
}

// Insert stores a raw document as-is. Used by imports of legacy data.
func (s *Store) Insert(ctx context.Context, doc hafalan.RawRecord) (string, error) {
	id := doc.String(hafalan.FieldID)
	if id == "" {
		id = uuid.NewString()
	}
	return id, recordRepo{s.db}.insert(ctx, id, doc)
}

func (r recordRepo) insert(ctx context.Context, id string, doc hafalan.RawRecord) error {
	cp := make(hafalan.RawRecord, len(doc)+1)
	for k, v := range doc {
		cp[k] = v
	}
	cp[hafalan.FieldID] = id
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO daily_records (id, nama, bulan, tahun, tanggal_str, doc, seq)
		 VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM daily_records))`,
		id,
		cp.String(hafalan.FieldName),
		cp.String(hafalan.FieldMonth),
		cp.String(hafalan.FieldYear),
		cp.String(hafalan.FieldDateStr),
		string(data),
	)
	if err != nil {
		return upstream("SaveRecord", err)
	}
	return nil
}

func (r recordRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM daily_records WHERE id = ?`, id)
	if err != nil {
		return upstream("DeleteRecord", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shared.ErrRecordNotFound
	}
	return nil
}

func (r recordRepo) FindByPeriod(ctx context.Context, p hafalan.PeriodKey) ([]hafalan.RawRecord, error) {
	return r.find(ctx, "FindByPeriod",
		`SELECT doc FROM daily_records WHERE bulan = ? AND tahun = ? ORDER BY seq`, p.Month, p.Year)
}

func (r recordRepo) FindByDate(ctx context.Context, date string) ([]hafalan.RawRecord, error) {
	return r.find(ctx, "FindByDate", `SELECT doc FROM daily_records WHERE tanggal_str = ? ORDER BY seq`, date)
}

func (r recordRepo) FindByStudent(ctx context.Context, name string) ([]hafalan.RawRecord, error) {
	return r.find(ctx, "FindByStudent", `SELECT doc FROM daily_records WHERE nama = ? ORDER BY seq`, name)
}

func (r recordRepo) All(ctx context.Context) ([]hafalan.RawRecord, error) {
	return r.find(ctx, "AllRecords", `SELECT doc FROM daily_records ORDER BY seq`)
}

func (r recordRepo) CountByStudent(ctx context.Context, name string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM daily_records WHERE nama = ?`, name).Scan(&n); err != nil {
		return 0, upstream("CountRecords", err)
	}
	return n, nil
}

func (r recordRepo) find(ctx context.Context, op, query string, args ...any) ([]hafalan.RawRecord, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, upstream(op, err)
	}
	defer rows.Close()

	out := make([]hafalan.RawRecord, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, upstream(op, err)
		}
		var doc hafalan.RawRecord
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, upstream(op, fmt.Errorf("decode record: %w", err))
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(op, err)
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Monthly summaries
// ──────────────────────────────────────────────────────────────────────────────

type summaryRepo struct{ db *sql.DB }

func (r summaryRepo) Upsert(ctx context.Context, s hafalan.MonthlySummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO monthly_summaries (key, nama, bulan, tahun, doc, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`,
		s.Key(), s.StudentName, s.Month, s.Year, string(data), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return upstream("UpsertSummary", err)
	}
	return nil
}

func (r summaryRepo) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM monthly_summaries WHERE key = ?`, key)
	if err != nil {
		return upstream("DeleteSummary", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shared.ErrSummaryNotFound
	}
	return nil
}

func (r summaryRepo) FindByPeriod(ctx context.Context, p hafalan.PeriodKey) ([]hafalan.MonthlySummary, error) {
	return r.find(ctx, "FindSummariesByPeriod",
		`SELECT doc FROM monthly_summaries WHERE bulan = ? AND tahun = ? ORDER BY key`, p.Month, p.Year)
}

func (r summaryRepo) FindByStudent(ctx context.Context, name string) ([]hafalan.MonthlySummary, error) {
	return r.find(ctx, "FindSummariesByStudent", `SELECT doc FROM monthly_summaries WHERE nama = ? ORDER BY key`, name)
}

func (r summaryRepo) All(ctx context.Context) ([]hafalan.MonthlySummary, error) {
	return r.find(ctx, "AllSummaries", `SELECT doc FROM monthly_summaries ORDER BY key`)
}

func (r summaryRepo) CountByStudent(ctx context.Context, name string) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM monthly_summaries WHERE nama = ?`, name).Scan(&n); err != nil {
		return 0, upstream("CountSummaries", err)
	}
	return n, nil
}

func (r summaryRepo) find(ctx context.Context, op, query string, args ...any) ([]hafalan.MonthlySummary, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, upstream(op, err)
	}
	defer rows.Close()

	out := make([]hafalan.MonthlySummary, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, upstream(op, err)
		}
		var s hafalan.MonthlySummary
		if err := json.Unmarshal([]byte(data), &s); err != nil {
			return nil, upstream(op, fmt.Errorf("decode summary: %w", err))
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(op, err)
	}
	return out, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Santri
// ──────────────────────────────────────────────────────────────────────────────

type studentRepo struct{ db *sql.DB }

func (r studentRepo) Save(ctx context.Context, s hafalan.Santri) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO santri (nama, gender) VALUES (?, ?)
		 ON CONFLICT(nama) DO UPDATE SET gender = excluded.gender`,
		s.Name, string(s.Gender))
	if err != nil {
		return upstream("SaveSantri", err)
	}
	return nil
}

func (r studentRepo) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM santri WHERE nama = ?`, name)
	if err != nil {
		return upstream("DeleteSantri", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

func (r studentRepo) Get(ctx context.Context, name string) (hafalan.Santri, error) {
	var s hafalan.Santri
	var gender string
	err := r.db.QueryRowContext(ctx, `SELECT nama, gender FROM santri WHERE nama = ?`, name).Scan(&s.Name, &gender)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return hafalan.Santri{}, shared.ErrStudentNotFound
		}
		return hafalan.Santri{}, upstream("GetSantri", err)
	}
	s.Gender = hafalan.Gender(gender)
	return s, nil
}

func (r studentRepo) List(ctx context.Context) ([]hafalan.Santri, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT nama, gender FROM santri ORDER BY nama`)
	if err != nil {
		return nil, upstream("ListSantri", err)
	}
	defer rows.Close()

	out := make([]hafalan.Santri, 0)
	for rows.Next() {
		var s hafalan.Santri
		var gender string
		if err := rows.Scan(&s.Name, &gender); err != nil {
			return nil, upstream("ListSantri", err)
		}
		s.Gender = hafalan.Gender(gender)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream("ListSantri", err)
	}
	return out, nil
}
