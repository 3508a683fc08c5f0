package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_santri",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_daily_records",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_monthly_summaries",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: SANTRI MASTER
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS santri (
    nama TEXT PRIMARY KEY,
    gender CHAR(1) NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_gender CHECK (gender IN ('L', 'P'))
);
`

const migration001Down = `
DROP TABLE IF EXISTS santri;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: DAILY RECORDS (hafalan_harian)
// ══════════════════════════════════════════════════════════════════════════════

// Records are append-only. The filter columns are copied out of the document;
// doc keeps the document exactly as written.
const migration002Up = `
CREATE TABLE IF NOT EXISTS daily_records (
    id UUID PRIMARY KEY,
    nama TEXT NOT NULL,
    bulan TEXT NOT NULL,
    tahun TEXT NOT NULL,
    tanggal_str TEXT NOT NULL,
    doc JSONB NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_daily_records_period ON daily_records(bulan, tahun);
CREATE INDEX IF NOT EXISTS idx_daily_records_nama ON daily_records(nama);
CREATE INDEX IF NOT EXISTS idx_daily_records_tanggal ON daily_records(tanggal_str);
`

const migration002Down = `
DROP TABLE IF EXISTS daily_records;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: MONTHLY SUMMARIES (hafalan)
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS monthly_summaries (
    key TEXT PRIMARY KEY,
    nama TEXT NOT NULL,
    bulan TEXT NOT NULL,
    tahun TEXT NOT NULL,
    doc JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_monthly_summaries_period ON monthly_summaries(bulan, tahun);
CREATE INDEX IF NOT EXISTS idx_monthly_summaries_nama ON monthly_summaries(nama);
`

const migration003Down = `
DROP TABLE IF EXISTS monthly_summaries;
`
