package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/db"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/resolve"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id                 TEXT PRIMARY KEY,
	intermediary_id    TEXT,
	intermediary_code  TEXT,
	period_id          TEXT,
	filename           TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'UPLOADED',
	is_current_version BOOLEAN NOT NULL DEFAULT false,
	version            INTEGER NOT NULL DEFAULT 1,
	supersedes_id      TEXT,
	superseded_by_id   TEXT,
	total_records      INTEGER NOT NULL DEFAULT 0,
	valid_records      INTEGER NOT NULL DEFAULT 0,
	error_records      INTEGER NOT NULL DEFAULT 0,
	failure_stage      TEXT,
	failure_reason     TEXT,
	uploaded_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	processed_at       TIMESTAMPTZ,
	superseded_at      TIMESTAMPTZ,
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- At most one current submission per (intermediary, period).
CREATE UNIQUE INDEX IF NOT EXISTS idx_submissions_current
	ON submissions(intermediary_id, period_id) WHERE is_current_version;
CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);

CREATE TABLE IF NOT EXISTS pay_records (
	id             TEXT PRIMARY KEY,
	submission_id  TEXT NOT NULL REFERENCES submissions(id),
	row_number     INTEGER NOT NULL,
	contractor_id  TEXT,
	association_id TEXT,
	employee_id    TEXT,
	forename       TEXT,
	surname        TEXT,
	unit_days      DOUBLE PRECISION NOT NULL DEFAULT 0,
	day_rate       DOUBLE PRECISION NOT NULL DEFAULT 0,
	amount         DOUBLE PRECISION NOT NULL DEFAULT 0,
	vat_amount     DOUBLE PRECISION NOT NULL DEFAULT 0,
	gross_amount   DOUBLE PRECISION NOT NULL DEFAULT 0,
	total_hours    DOUBLE PRECISION NOT NULL DEFAULT 0,
	record_type    TEXT NOT NULL DEFAULT 'STANDARD',
	notes          TEXT,
	is_active      BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_pay_records_submission ON pay_records(submission_id);
CREATE INDEX IF NOT EXISTS idx_pay_records_contractor ON pay_records(contractor_id, record_type);

CREATE TABLE IF NOT EXISTS validation_findings (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL REFERENCES submissions(id),
	severity      TEXT NOT NULL,
	kind          TEXT NOT NULL,
	row_number    INTEGER NOT NULL DEFAULT 0,
	message       TEXT NOT NULL,
	suggested_fix TEXT,
	auto_resolved BOOLEAN NOT NULL DEFAULT false,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_findings_submission ON validation_findings(submission_id);

CREATE TABLE IF NOT EXISTS intermediaries (
	id   TEXT PRIMARY KEY,
	code TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS pay_periods (
	id                  TEXT PRIMARY KEY,
	period_number       INTEGER NOT NULL,
	year                INTEGER NOT NULL,
	work_start_date     TIMESTAMPTZ NOT NULL,
	work_end_date       TIMESTAMPTZ NOT NULL,
	submission_deadline TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS contractors (
	id              TEXT PRIMARY KEY,
	first_name      TEXT NOT NULL,
	last_name       TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	standard_rate   DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_contractors_normalized ON contractors(normalized_name);

CREATE TABLE IF NOT EXISTS associations (
	id              TEXT PRIMARY KEY,
	contractor_id   TEXT NOT NULL REFERENCES contractors(id),
	intermediary_id TEXT NOT NULL REFERENCES intermediaries(id),
	employee_id     TEXT NOT NULL,
	valid_from      TIMESTAMPTZ NOT NULL,
	valid_to        TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_associations_contractor ON associations(contractor_id);

CREATE TABLE IF NOT EXISTS permanent_staff (
	normalized_name TEXT PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS system_parameters (
	name  TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if sub.UploadedAt.IsZero() {
		sub.UploadedAt = now
	}
	sub.UpdatedAt = now
	if sub.Status == "" {
		sub.Status = model.StatusUploaded
	}
	if sub.Version == 0 {
		sub.Version = 1
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO submissions (id, intermediary_id, intermediary_code, period_id, filename, status, version, uploaded_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, nullable(sub.IntermediaryID), nullable(sub.IntermediaryCode), nullable(sub.PeriodID),
		sub.Filename, string(sub.Status), sub.Version, sub.UploadedAt, sub.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert submission")
}

const submissionColumns = `id, intermediary_id, intermediary_code, period_id, filename, status, is_current_version, version,
	supersedes_id, superseded_by_id, total_records, valid_records, error_records, failure_stage, failure_reason,
	uploaded_at, processed_at, superseded_at, updated_at`

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get submission %s", id)
	}
	return sub, nil
}

func (s *PostgresStore) BeginProcessing(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $1, updated_at = now()
		 WHERE id = $2 AND status IN ($3, $1)`,
		string(model.StatusProcessing), id, string(model.StatusUploaded),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: begin processing %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("submission %s is not in a processable state", id)
	}
	return nil
}

func (s *PostgresStore) SetSubmissionTarget(ctx context.Context, id, intermediaryID, code, periodID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET intermediary_id = $1, intermediary_code = $2, period_id = $3, updated_at = now()
		 WHERE id = $4`,
		intermediaryID, code, periodID, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set submission target %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("submission not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FindCurrentSubmission(ctx context.Context, intermediaryID, periodID, excludeID string) (*model.Submission, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE intermediary_id = $1 AND period_id = $2 AND id != $3
		   AND is_current_version AND status != $4
		 LIMIT 1`,
		intermediaryID, periodID, excludeID, string(model.StatusDeleted),
	)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "postgres: find current submission")
	}
	return sub, nil
}

// Supersede retires the old submission in favor of the new one: status
// SUPERSEDED, current flag cleared, records deactivated, version chain
// updated. The transition is conditional on the old submission still being
// current, so a second call is a no-op.
func (s *PostgresStore) Supersede(ctx context.Context, oldID, newID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: supersede: begin tx")
	}
	defer tx.Rollback(ctx)

	var oldVersion int
	err = tx.QueryRow(ctx, `SELECT version FROM submissions WHERE id = $1`, oldID).Scan(&oldVersion)
	if err != nil {
		return eris.Wrapf(err, "postgres: supersede: load %s", oldID)
	}

	tag, err := tx.Exec(ctx,
		`UPDATE submissions
		 SET status = $1, is_current_version = false, superseded_by_id = $2, superseded_at = now(), updated_at = now()
		 WHERE id = $3 AND status != $1 AND is_current_version`,
		string(model.StatusSuperseded), newID, oldID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: supersede %s", oldID)
	}
	if tag.RowsAffected() == 0 {
		// Already superseded by an earlier call; nothing left to do.
		return nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE pay_records SET is_active = false WHERE submission_id = $1`, oldID,
	); err != nil {
		return eris.Wrapf(err, "postgres: deactivate records of %s", oldID)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE submissions SET supersedes_id = $1, version = $2, updated_at = now() WHERE id = $3`,
		oldID, oldVersion+1, newID,
	); err != nil {
		return eris.Wrapf(err, "postgres: link supersede chain to %s", newID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: supersede: commit")
}

// PromoteCurrent flips the current flag via compare-and-swap. The partial
// unique index on (intermediary_id, period_id) backs this up: two racing
// submissions cannot both become current.
func (s *PostgresStore) PromoteCurrent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET is_current_version = true, updated_at = now()
		 WHERE id = $1 AND is_current_version = false AND status = $2`,
		id, string(model.StatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: promote current %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("submission %s lost the current-version race or is not processing", id)
	}
	return nil
}

func (s *PostgresStore) MarkError(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions
		 SET status = $1, total_records = 0, valid_records = 0, error_records = 0, processed_at = now(), updated_at = now()
		 WHERE id = $2`,
		string(model.StatusError), id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark error %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("submission not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id, stage, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions SET status = $1, failure_stage = $2, failure_reason = $3, updated_at = now()
		 WHERE id = $4`,
		string(model.StatusFailed), stage, reason, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark failed %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("submission not found: %s", id)
	}
	return nil
}

func (s *PostgresStore) FinalizeSubmission(ctx context.Context, id string, status model.SubmissionStatus, total, valid, errRecords int) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE submissions
		 SET status = $1, total_records = $2, valid_records = $3, error_records = $4, processed_at = now(), updated_at = now()
		 WHERE id = $5`,
		string(status), total, valid, errRecords, id,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize submission %s", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("submission not found: %s", id)
	}
	return nil
}

var payRecordColumns = []string{
	"id", "submission_id", "row_number", "contractor_id", "association_id", "employee_id",
	"forename", "surname", "unit_days", "day_rate", "amount", "vat_amount", "gross_amount",
	"total_hours", "record_type", "notes", "is_active",
}

// ImportPayRecords replaces the submission's records in one transaction:
// delete keyed by submission id, then COPY in row order. Re-running the
// import stage therefore cannot duplicate rows.
func (s *PostgresStore) ImportPayRecords(ctx context.Context, submissionID string, records []model.PayRecord) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: import: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM pay_records WHERE submission_id = $1`, submissionID,
	); err != nil {
		return 0, eris.Wrapf(err, "postgres: import: clear records of %s", submissionID)
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		rows = append(rows, []any{
			id, submissionID, r.RowNumber, r.ContractorID, r.AssociationID, r.EmployeeID,
			r.Forename, r.Surname, r.UnitDays, r.DayRate, r.Amount, r.VATAmount, r.GrossAmount,
			r.TotalHours, string(r.RecordType), r.Notes, r.IsActive,
		})
	}

	n, err := db.CopyRows(ctx, tx, "pay_records", payRecordColumns, rows)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: import: commit")
	}
	return int(n), nil
}

func (s *PostgresStore) ListPayRecords(ctx context.Context, submissionID string) ([]model.PayRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, submission_id, row_number, contractor_id, association_id, employee_id,
		        forename, surname, unit_days, day_rate, amount, vat_amount, gross_amount,
		        total_hours, record_type, notes, is_active
		 FROM pay_records WHERE submission_id = $1 ORDER BY row_number`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pay records")
	}
	defer rows.Close()

	var recs []model.PayRecord
	for rows.Next() {
		var r model.PayRecord
		var notes *string
		if err := rows.Scan(&r.ID, &r.SubmissionID, &r.RowNumber, &r.ContractorID, &r.AssociationID,
			&r.EmployeeID, &r.Forename, &r.Surname, &r.UnitDays, &r.DayRate, &r.Amount,
			&r.VATAmount, &r.GrossAmount, &r.TotalHours, &r.RecordType, &notes, &r.IsActive); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pay record")
		}
		if notes != nil {
			r.Notes = *notes
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list pay records iterate")
}

func (s *PostgresStore) SaveFindings(ctx context.Context, submissionID string, findings []model.Finding) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: findings: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM validation_findings WHERE submission_id = $1`, submissionID,
	); err != nil {
		return eris.Wrapf(err, "postgres: findings: clear %s", submissionID)
	}

	rows := make([][]any, 0, len(findings))
	now := time.Now().UTC()
	for _, f := range findings {
		id := f.ID
		if id == "" {
			id = uuid.New().String()
		}
		createdAt := f.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		rows = append(rows, []any{
			id, submissionID, string(f.Severity), string(f.Kind), f.RowNumber,
			f.Message, f.SuggestedFix, f.AutoResolved, createdAt,
		})
	}

	cols := []string{"id", "submission_id", "severity", "kind", "row_number", "message", "suggested_fix", "auto_resolved", "created_at"}
	if _, err := db.CopyRows(ctx, tx, "validation_findings", cols, rows); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: findings: commit")
}

func (s *PostgresStore) ListFindings(ctx context.Context, submissionID string) ([]model.Finding, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, submission_id, severity, kind, row_number, message, suggested_fix, auto_resolved, created_at
		 FROM validation_findings WHERE submission_id = $1 ORDER BY row_number, severity`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list findings")
	}
	defer rows.Close()

	var findings []model.Finding
	for rows.Next() {
		var f model.Finding
		var fix *string
		if err := rows.Scan(&f.ID, &f.SubmissionID, &f.Severity, &f.Kind, &f.RowNumber,
			&f.Message, &fix, &f.AutoResolved, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan finding")
		}
		if fix != nil {
			f.SuggestedFix = *fix
		}
		findings = append(findings, f)
	}
	return findings, eris.Wrap(rows.Err(), "postgres: list findings iterate")
}

func (s *PostgresStore) ListIntermediaries(ctx context.Context) ([]model.Intermediary, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, code, name FROM intermediaries ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list intermediaries")
	}
	defer rows.Close()

	var out []model.Intermediary
	for rows.Next() {
		var i model.Intermediary
		if err := rows.Scan(&i.ID, &i.Code, &i.Name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan intermediary")
		}
		out = append(out, i)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list intermediaries iterate")
}

func (s *PostgresStore) ListPayPeriods(ctx context.Context) ([]model.PayPeriod, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, period_number, year, work_start_date, work_end_date, submission_deadline
		 FROM pay_periods ORDER BY work_start_date`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pay periods")
	}
	defer rows.Close()

	var out []model.PayPeriod
	for rows.Next() {
		var p model.PayPeriod
		if err := rows.Scan(&p.ID, &p.PeriodNumber, &p.Year, &p.WorkStartDate, &p.WorkEndDate, &p.SubmissionDeadline); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pay period")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pay periods iterate")
}

func (s *PostgresStore) LoadReferenceSet(ctx context.Context) (*model.ReferenceSet, error) {
	refs := &model.ReferenceSet{
		Associations: make(map[string][]model.Association),
		Blocklist:    make(map[string]bool),
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, first_name, last_name, normalized_name, standard_rate FROM contractors ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load contractors")
	}
	for rows.Next() {
		var c model.Contractor
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.NormalizedName, &c.StandardRate); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan contractor")
		}
		refs.Contractors = append(refs.Contractors, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load contractors iterate")
	}

	rows, err = s.pool.Query(ctx,
		`SELECT id, contractor_id, intermediary_id, employee_id, valid_from, valid_to FROM associations`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load associations")
	}
	for rows.Next() {
		var a model.Association
		if err := rows.Scan(&a.ID, &a.ContractorID, &a.IntermediaryID, &a.EmployeeID, &a.ValidFrom, &a.ValidTo); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan association")
		}
		refs.Associations[a.ContractorID] = append(refs.Associations[a.ContractorID], a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: load associations iterate")
	}

	rows, err = s.pool.Query(ctx, `SELECT normalized_name FROM permanent_staff`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load permanent staff")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "postgres: scan permanent staff")
		}
		refs.Blocklist[name] = true
	}
	rows.Close()
	return refs, eris.Wrap(rows.Err(), "postgres: load permanent staff iterate")
}

func (s *PostgresStore) LoadParameters(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name, value FROM system_parameters`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: load parameters")
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, eris.Wrap(err, "postgres: scan parameter")
		}
		params[name] = value
	}
	return params, eris.Wrap(rows.Err(), "postgres: load parameters iterate")
}

func (s *PostgresStore) StandardRateBefore(ctx context.Context, contractorID string, before time.Time) (float64, bool, error) {
	var rate float64
	err := s.pool.QueryRow(ctx,
		`SELECT pr.day_rate
		 FROM pay_records pr
		 JOIN submissions s ON s.id = pr.submission_id
		 JOIN pay_periods p ON p.id = s.period_id
		 WHERE pr.contractor_id = $1 AND pr.record_type = $2 AND pr.is_active
		   AND s.is_current_version AND p.work_start_date < $3
		 ORDER BY p.work_start_date DESC
		 LIMIT 1`,
		contractorID, string(model.RecordStandard), before,
	).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, eris.Wrap(err, "postgres: standard rate lookup")
	}
	return rate, true, nil
}

func (s *PostgresStore) SeedReference(ctx context.Context, seed *SeedData) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: seed: begin tx")
	}
	defer tx.Rollback(ctx)

	for _, i := range seed.Intermediaries {
		if i.ID == "" {
			i.ID = uuid.New().String()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO intermediaries (id, code, name) VALUES ($1, $2, $3)
			 ON CONFLICT (code) DO UPDATE SET name = $3`,
			i.ID, i.Code, i.Name,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed intermediary %s", i.Code)
		}
	}

	for _, p := range seed.PayPeriods {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO pay_periods (id, period_number, year, work_start_date, work_end_date, submission_deadline)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET work_start_date = $4, work_end_date = $5, submission_deadline = $6`,
			p.ID, p.PeriodNumber, p.Year, p.WorkStartDate, p.WorkEndDate, p.SubmissionDeadline,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed period %d/%d", p.PeriodNumber, p.Year)
		}
	}

	for _, c := range seed.Contractors {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.NormalizedName == "" {
			c.NormalizedName = resolve.NormalizeFullName(c.FirstName, c.LastName)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO contractors (id, first_name, last_name, normalized_name, standard_rate)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (id) DO UPDATE SET first_name = $2, last_name = $3, normalized_name = $4, standard_rate = $5`,
			c.ID, c.FirstName, c.LastName, c.NormalizedName, c.StandardRate,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed contractor %s %s", c.FirstName, c.LastName)
		}
	}

	for _, a := range seed.Associations {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO associations (id, contractor_id, intermediary_id, employee_id, valid_from, valid_to)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (id) DO UPDATE SET employee_id = $4, valid_from = $5, valid_to = $6`,
			a.ID, a.ContractorID, a.IntermediaryID, a.EmployeeID, a.ValidFrom, a.ValidTo,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed association %s", a.ID)
		}
	}

	for _, name := range seed.PermanentStaff {
		if _, err := tx.Exec(ctx,
			`INSERT INTO permanent_staff (normalized_name) VALUES ($1) ON CONFLICT DO NOTHING`,
			resolve.NormalizeName(name),
		); err != nil {
			return eris.Wrapf(err, "postgres: seed permanent staff %q", name)
		}
	}

	for name, value := range seed.Parameters {
		if _, err := tx.Exec(ctx,
			`INSERT INTO system_parameters (name, value) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET value = $2`,
			name, value,
		); err != nil {
			return eris.Wrapf(err, "postgres: seed parameter %s", name)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: seed: commit")
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*model.Submission, error) {
	var sub model.Submission
	var intermediaryID, code, periodID, failureStage, failureReason *string
	err := row.Scan(&sub.ID, &intermediaryID, &code, &periodID, &sub.Filename, &sub.Status,
		&sub.IsCurrentVersion, &sub.Version, &sub.SupersedesID, &sub.SupersededByID,
		&sub.TotalRecords, &sub.ValidRecords, &sub.ErrorRecords, &failureStage, &failureReason,
		&sub.UploadedAt, &sub.ProcessedAt, &sub.SupersededAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if intermediaryID != nil {
		sub.IntermediaryID = *intermediaryID
	}
	if code != nil {
		sub.IntermediaryCode = *code
	}
	if periodID != nil {
		sub.PeriodID = *periodID
	}
	if failureStage != nil {
		sub.FailureStage = *failureStage
	}
	if failureReason != nil {
		sub.FailureReason = *failureReason
	}
	return &sub, nil
}
