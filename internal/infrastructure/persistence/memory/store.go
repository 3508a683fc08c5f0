// Package memory implements hafalan.Store in process memory.
// It backs the "memory" store driver and the handler tests.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/almuhajirin/hafalan-hub/internal/domain/hafalan"
	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
	"github.com/google/uuid"
)

// Store keeps every collection in maps guarded by one mutex.
type Store struct {
	mu        sync.RWMutex
	records   map[string]hafalan.RawRecord
	order     []string
	summaries map[string]hafalan.MonthlySummary
	students  map[string]hafalan.Santri

	// FailWith, when set, is returned by every read and write.
	FailWith error
	// Loads counts FindByPeriod calls.
	Loads int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		records:   make(map[string]hafalan.RawRecord),
		summaries: make(map[string]hafalan.MonthlySummary),
		students:  make(map[string]hafalan.Santri),
	}
}

func (s *Store) Records() hafalan.RecordRepository   { return recordRepo{s} }
func (s *Store) Summaries() hafalan.SummaryRepository { return summaryRepo{s} }
func (s *Store) Students() hafalan.StudentRepository  { return studentRepo{s} }

// Ping reports FailWith, if set.
func (s *Store) Ping(context.Context) error { return s.FailWith }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// PutRaw stores a document as-is, bypassing DailyRecord validation.
// Used to seed legacy or malformed rows.
func (s *Store) PutRaw(doc hafalan.RawRecord) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := doc.String(hafalan.FieldID)
	if id == "" {
		id = uuid.NewString()
	}
	cp := roundTrip(doc)
	cp[hafalan.FieldID] = id
	s.put(id, cp)
	return id
}

func (s *Store) put(id string, doc hafalan.RawRecord) {
	if _, exists := s.records[id]; !exists {
		s.order = append(s.order, id)
	}
	s.records[id] = doc
}

// roundTrip makes stored documents look like decoded JSON, the same
// shape the SQL backends return.
func roundTrip(doc hafalan.RawRecord) hafalan.RawRecord {
	data, err := json.Marshal(doc)
	if err != nil {
		return doc
	}
	var out hafalan.RawRecord
	if err := json.Unmarshal(data, &out); err != nil {
		return doc
	}
	return out
}

func (s *Store) filter(match func(hafalan.RawRecord) bool) []hafalan.RawRecord {
	out := make([]hafalan.RawRecord, 0)
	for _, id := range s.order {
		doc, ok := s.records[id]
		if !ok || !match(doc) {
			continue
		}
		out = append(out, roundTrip(doc))
	}
	return out
}

// ──────────────────────────────────────────────────────────────────────────────
// Records
// ──────────────────────────────────────────────────────────────────────────────

type recordRepo struct{ s *Store }

func (r recordRepo) Save(_ context.Context, rec hafalan.DailyRecord) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailWith != nil {
		return "", r.s.FailWith
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	r.s.put(rec.ID, roundTrip(rec.Document()))
	return rec.ID, nil
}

func (r recordRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailWith != nil {
		return r.s.FailWith
	}
	if _, ok := r.s.records[id]; !ok {
		return shared.ErrRecordNotFound
	}
	delete(r.s.records, id)
	for i, v := range r.s.order {
		if v == id {
			r.s.order = append(r.s.order[:i], r.s.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r recordRepo) FindByPeriod(_ context.Context, p hafalan.PeriodKey) ([]hafalan.RawRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.Loads++
	if r.s.FailWith != nil {
		return nil, r.s.FailWith
	}
	return r.s.filter(func(d hafalan.RawRecord) bool {
		return d.String(hafalan.FieldMonth) == p.Month && d.String(hafalan.FieldYear) == p.Year
	}), nil
}

func (r recordRepo) FindByDate(_ context.Context, date string) ([]hafalan.RawRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.FailWith != nil {
		return nil, r.s.FailWith
	}
	return r.s.filter(func(d hafalan.RawRecord) bool {
		return d.String(hafalan.FieldDateStr) == date
	}), nil
}

func (r recordRepo) FindByStudent(_ context.Context, name string) ([]hafalan.RawRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.FailWith != nil {
		return nil, r.s.FailWith
	}
	return r.s.filter(func(d hafalan.RawRecord) bool {
		return d.String(hafalan.FieldName) == name
	}), nil
}

func (r recordRepo) CountByStudent(ctx context.Context, name string) (int, error) {
	docs, err := r.FindByStudent(ctx, name)
	return len(docs), err
}

func (r recordRepo) All(_ context.Context) ([]hafalan.RawRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.FailWith != nil {
		return nil, r.s.FailWith
	}
	return r.s.filter(func(hafalan.RawRecord) bool { return true }), nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Summaries
// ──────────────────────────────────────────────────────────────────────────────

type summaryRepo struct{ s *Store }

func (r summaryRepo) Upsert(_ context.Context, sum hafalan.MonthlySummary) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailWith != nil {
		return r.s.FailWith
	}
	r.s.summaries[sum.Key()] = sum
	return nil
}

func (r summaryRepo) Delete(_ context.Context, key string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailWith != nil {
		return r.s.FailWith
	}
	if _, ok := r.s.summaries[key]; !ok {
		return shared.ErrSummaryNotFound
	}
	delete(r.s.summaries, key)
	return nil
}

func (r summaryRepo) collect(match func(hafalan.MonthlySummary) bool) ([]hafalan.MonthlySummary, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.FailWith != nil {
		return nil, r.s.FailWith
	}
	out := make([]hafalan.MonthlySummary, 0)
	for _, sum := range r.s.summaries {
		if match(sum) {
			out = append(out, sum)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

func (r summaryRepo) FindByPeriod(_ context.Context, p hafalan.PeriodKey) ([]hafalan.MonthlySummary, error) {
	return r.collect(func(s hafalan.MonthlySummary) bool { return s.Period() == p })
}

func (r summaryRepo) FindByStudent(_ context.Context, name string) ([]hafalan.MonthlySummary, error) {
	return r.collect(func(s hafalan.MonthlySummary) bool { return s.StudentName == name })
}

func (r summaryRepo) CountByStudent(ctx context.Context, name string) (int, error) {
	list, err := r.FindByStudent(ctx, name)
	return len(list), err
}

func (r summaryRepo) All(_ context.Context) ([]hafalan.MonthlySummary, error) {
	return r.collect(func(hafalan.MonthlySummary) bool { return true })
}

// ──────────────────────────────────────────────────────────────────────────────
// Students
// ──────────────────────────────────────────────────────────────────────────────

type studentRepo struct{ s *Store }

func (r studentRepo) Save(_ context.Context, st hafalan.Santri) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailWith != nil {
		return r.s.FailWith
	}
	r.s.students[st.Name] = st
	return nil
}

func (r studentRepo) Delete(_ context.Context, name string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.FailWith != nil {
		return r.s.FailWith
	}
	if _, ok := r.s.students[name]; !ok {
		return shared.ErrStudentNotFound
	}
	delete(r.s.students, name)
	return nil
}

func (r studentRepo) Get(_ context.Context, name string) (hafalan.Santri, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.FailWith != nil {
		return hafalan.Santri{}, r.s.FailWith
	}
	st, ok := r.s.students[name]
	if !ok {
		return hafalan.Santri{}, shared.ErrStudentNotFound
	}
	return st, nil
}

func (r studentRepo) List(_ context.Context) ([]hafalan.Santri, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.FailWith != nil {
		return nil, r.s.FailWith
	}
	out := make([]hafalan.Santri, 0, len(r.s.students))
	for _, st := range r.s.students {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
