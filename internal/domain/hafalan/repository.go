package hafalan

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// ══════════════════════════════════════════════════════════════════════════════

// RecordRepository - журнал дневных записей (append-only, ключ - UUID).
// Документы возвращаются как есть: нормализация выполняется при чтении отчёта.
type RecordRepository interface {
	// Save сохраняет новую запись и возвращает её идентификатор.
	Save(ctx context.Context, rec DailyRecord) (string, error)

	// Delete удаляет запись по идентификатору.
	Delete(ctx context.Context, id string) error

	// FindByPeriod возвращает все документы месяца одним запросом.
	FindByPeriod(ctx context.Context, period PeriodKey) ([]RawRecord, error)

	// FindByDate возвращает документы за дату (YYYY-MM-DD).
	FindByDate(ctx context.Context, dateStr string) ([]RawRecord, error)

	// FindByStudent возвращает все документы сантри.
	FindByStudent(ctx context.Context, name string) ([]RawRecord, error)

	// CountByStudent считает документы сантри.
	CountByStudent(ctx context.Context, name string) (int, error)

	// All возвращает всю коллекцию (для экспорта).
	All(ctx context.Context) ([]RawRecord, error)
}

// SummaryRepository - месячные сводки с ключом nama_bulan_tahun.
// Upsert перезаписывает существующую сводку с тем же ключом.
type SummaryRepository interface {
	Upsert(ctx context.Context, s MonthlySummary) error
	Delete(ctx context.Context, key string) error
	FindByPeriod(ctx context.Context, period PeriodKey) ([]MonthlySummary, error)
	FindByStudent(ctx context.Context, name string) ([]MonthlySummary, error)
	CountByStudent(ctx context.Context, name string) (int, error)
	All(ctx context.Context) ([]MonthlySummary, error)
}

// StudentRepository - мастер-список сантри. Save перезаписывает по имени.
type StudentRepository interface {
	Save(ctx context.Context, s Santri) error
	Delete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (Santri, error)
	List(ctx context.Context) ([]Santri, error)
}

// Store объединяет все репозитории одного бэкенда.
type Store interface {
	Records() RecordRepository
	Summaries() SummaryRepository
	Students() StudentRepository
	Ping(ctx context.Context) error
	Close() error
}
