package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Store implements hafalan.Store on top of a Connection.
type Store struct {
	conn *Connection
}

// NewStore creates a new Store.
func NewStore(conn *Connection) *Store {
	return &Store{conn: conn}
}

func (s *Store) Records() hafalan.RecordRepository   { return &RecordRepository{conn: s.conn} }
func (s *Store) Summaries() hafalan.SummaryRepository { return &SummaryRepository{conn: s.conn} }
func (s *Store) Students() hafalan.StudentRepository  { return &StudentRepository{conn: s.conn} }

// Ping checks the database.
func (s *Store) Ping(ctx context.Context) error { return s.conn.Ping(ctx) }

// Close closes the pool.
func (s *Store) Close() error {
	s.conn.Close()
	return nil
}

func upstream(op string, err error) error {
	return shared.WrapError("postgres", op, shared.ErrUpstreamUnavailable, "database request failed", err)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY RECORD REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository implements hafalan.RecordRepository for PostgreSQL.
type RecordRepository struct {
	conn *Connection
}

// Save inserts a new record document.
func (r *RecordRepository) Save(ctx context.Context, rec hafalan.DailyRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	doc := rec.Document()
	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	query := `
		INSERT INTO daily_records (id, nama, bulan, tahun, tanggal_str, doc)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = r.conn.Exec(ctx, query,
		rec.ID,
		rec.StudentName,
		doc.String(hafalan.FieldMonth),
		doc.String(hafalan.FieldYear),
		doc.String(hafalan.FieldDateStr),
		data,
	)
	if err != nil {
		return "", upstream("SaveRecord", err)
	}
	return rec.ID, nil
}

// Delete removes a record by id.
func (r *RecordRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrRecordNotFound
	}
	tag, err := r.conn.Exec(ctx, `DELETE FROM daily_records WHERE id = $1`, id)
	if err != nil {
		return upstream("DeleteRecord", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrRecordNotFound
	}
	return nil
}

// FindByPeriod returns all documents of one month in a single query.
func (r *RecordRepository) FindByPeriod(ctx context.Context, p hafalan.PeriodKey) ([]hafalan.RawRecord, error) {
	return r.find(ctx, "FindByPeriod",
		`SELECT id, doc FROM daily_records WHERE bulan = $1 AND tahun = $2 ORDER BY created_at`,
		p.Month, p.Year)
}

// FindByDate returns documents of one date.
func (r *RecordRepository) FindByDate(ctx context.Context, date string) ([]hafalan.RawRecord, error) {
	return r.find(ctx, "FindByDate",
		`SELECT id, doc FROM daily_records WHERE tanggal_str = $1 ORDER BY created_at`, date)
}

// FindByStudent returns every document of one santri.
func (r *RecordRepository) FindByStudent(ctx context.Context, name string) ([]hafalan.RawRecord, error) {
	return r.find(ctx, "FindByStudent",
		`SELECT id, doc FROM daily_records WHERE nama = $1 ORDER BY created_at`, name)
}

// All returns the whole collection.
func (r *RecordRepository) All(ctx context.Context) ([]hafalan.RawRecord, error) {
	return r.find(ctx, "AllRecords", `SELECT id, doc FROM daily_records ORDER BY created_at`)
}

// CountByStudent counts documents of one santri.
func (r *RecordRepository) CountByStudent(ctx context.Context, name string) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT count(*) FROM daily_records WHERE nama = $1`, name).Scan(&n); err != nil {
		return 0, upstream("CountRecords", err)
	}
	return n, nil
}

func (r *RecordRepository) find(ctx context.Context, op, query string, args ...any) ([]hafalan.RawRecord, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, upstream(op, err)
	}
	defer rows.Close()

	out := make([]hafalan.RawRecord, 0)
	for rows.Next() {
		var id string
		var data []byte
		if err := rows.Scan(&id, &data); err != nil {
			return nil, upstream(op, err)
		}
		var doc hafalan.RawRecord
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, upstream(op, fmt.Errorf("decode record %s: %w", id, err))
		}
		if doc == nil {
			doc = hafalan.RawRecord{}
		}
		doc[hafalan.FieldID] = id
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(op, err)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MONTHLY SUMMARY REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// SummaryRepository implements hafalan.SummaryRepository for PostgreSQL.
type SummaryRepository struct {
	conn *Connection
}

// Upsert writes the summary under its deterministic key, replacing any previous one.
func (r *SummaryRepository) Upsert(ctx context.Context, s hafalan.MonthlySummary) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal summary: %w", err)
	}
	query := `
		INSERT INTO monthly_summaries (key, nama, bulan, tahun, doc, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (key) DO UPDATE SET
			doc = EXCLUDED.doc,
			updated_at = NOW()
	`
	if _, err := r.conn.Exec(ctx, query, s.Key(), s.StudentName, s.Month, s.Year, data); err != nil {
		return upstream("UpsertSummary", err)
	}
	return nil
}

// Delete removes a summary by key.
func (r *SummaryRepository) Delete(ctx context.Context, key string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM monthly_summaries WHERE key = $1`, key)
	if err != nil {
		return upstream("DeleteSummary", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrSummaryNotFound
	}
	return nil
}

// FindByPeriod returns summaries of one month.
func (r *SummaryRepository) FindByPeriod(ctx context.Context, p hafalan.PeriodKey) ([]hafalan.MonthlySummary, error) {
	return r.find(ctx, "FindSummariesByPeriod",
		`SELECT doc FROM monthly_summaries WHERE bulan = $1 AND tahun = $2 ORDER BY key`, p.Month, p.Year)
}

// FindByStudent returns summaries of one santri.
func (r *SummaryRepository) FindByStudent(ctx context.Context, name string) ([]hafalan.MonthlySummary, error) {
	return r.find(ctx, "FindSummariesByStudent",
		`SELECT doc FROM monthly_summaries WHERE nama = $1 ORDER BY key`, name)
}

// All returns every summary.
func (r *SummaryRepository) All(ctx context.Context) ([]hafalan.MonthlySummary, error) {
	return r.find(ctx, "AllSummaries", `SELECT doc FROM monthly_summaries ORDER BY key`)
}

// CountByStudent counts summaries of one santri.
func (r *SummaryRepository) CountByStudent(ctx context.Context, name string) (int, error) {
	var n int
	if err := r.conn.QueryRow(ctx, `SELECT count(*) FROM monthly_summaries WHERE nama = $1`, name).Scan(&n); err != nil {
		return 0, upstream("CountSummaries", err)
	}
	return n, nil
}

func (r *SummaryRepository) find(ctx context.Context, op, query string, args ...any) ([]hafalan.MonthlySummary, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, upstream(op, err)
	}
	defer rows.Close()

	out := make([]hafalan.MonthlySummary, 0)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, upstream(op, err)
		}
		var s hafalan.MonthlySummary
		if err := json.Unmarshal(data, &s); err != nil {
			return nil, upstream(op, fmt.Errorf("decode summary: %w", err))
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, upstream(op, err)
	}
	return out, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// SANTRI REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// StudentRepository implements hafalan.StudentRepository for PostgreSQL.
type StudentRepository struct {
	conn *Connection
}

// Save inserts or replaces a santri.
func (r *StudentRepository) Save(ctx context.Context, s hafalan.Santri) error {
	query := `
		INSERT INTO santri (nama, gender) VALUES ($1, $2)
		ON CONFLICT (nama) DO UPDATE SET gender = EXCLUDED.gender
	`
	if _, err := r.conn.Exec(ctx, query, s.Name, string(s.Gender)); err != nil {
		return upstream("SaveSantri", err)
	}
	return nil
}

// Delete removes a santri by name.
func (r *StudentRepository) Delete(ctx context.Context, name string) error {
	tag, err := r.conn.Exec(ctx, `DELETE FROM santri WHERE nama = $1`, name)
	if err != nil {
		return upstream("DeleteSantri", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrStudentNotFound
	}
	return nil
}

// Get returns a santri by name.
func (r *StudentRepository) Get(ctx context.Context, name string) (hafalan.Santri, error) {
	var s hafalan.Santri
	var gender string
	err := r.conn.QueryRow(ctx, `SELECT nama, gender FROM santri WHERE nama = $1`, name).Scan(&s.Name, &gender)
	if err != nil {
		if IsNoRows(err) {
			return hafalan.Santri{}, shared.ErrStudentNotFound
		}
		return hafalan.Santri{}, upstream("GetSantri", err)
	}
	s.Gender = hafalan.Gender(gender)
	return s, nil
}

// List returns all santri sorted by name.
func (r *StudentRepository) List(ctx context.Context) ([]hafalan.Santri, error) {
	rows, err := r.conn.Query(ctx, `SELECT nama, gender FROM santri ORDER BY nama`)
	if err != nil {
		return nil, upstream("ListSantri", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (hafalan.Santri, error) {
		var s hafalan.Santri
		var gender string
		err := row.Scan(&s.Name, &gender)
		s.Gender = hafalan.Gender(gender)
		return s, err
	})
	if err != nil {
		return nil, upstream("ListSantri", err)
	}
	return list, nil
}
