package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/formicag/contractor-pay-tracker-sub000/internal/model"
	"github.com/formicag/contractor-pay-tracker-sub000/internal/resolve"
)

// SQLiteStore implements Store over a local SQLite file. It exists for
// development and single-machine deployments; the pipeline code is identical
// against either backend.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates if necessary) a SQLite database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	sdb, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: open %s", path)
	}
	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY churn under concurrent stages.
	sdb.SetMaxOpenConns(1)
	if _, err := sdb.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		sdb.Close()
		return nil, eris.Wrap(err, "sqlite: set pragmas")
	}
	return &SQLiteStore{db: sdb}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS submissions (
	id                 TEXT PRIMARY KEY,
	intermediary_id    TEXT,
	intermediary_code  TEXT,
	period_id          TEXT,
	filename           TEXT NOT NULL,
	status             TEXT NOT NULL DEFAULT 'UPLOADED',
	is_current_version INTEGER NOT NULL DEFAULT 0,
	version            INTEGER NOT NULL DEFAULT 1,
	supersedes_id      TEXT,
	superseded_by_id   TEXT,
	total_records      INTEGER NOT NULL DEFAULT 0,
	valid_records      INTEGER NOT NULL DEFAULT 0,
	error_records      INTEGER NOT NULL DEFAULT 0,
	failure_stage      TEXT,
	failure_reason     TEXT,
	uploaded_at        TIMESTAMP NOT NULL,
	processed_at       TIMESTAMP,
	superseded_at      TIMESTAMP,
	updated_at         TIMESTAMP NOT NULL
);

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
	unit_days      REAL NOT NULL DEFAULT 0,
	day_rate       REAL NOT NULL DEFAULT 0,
	amount         REAL NOT NULL DEFAULT 0,
	vat_amount     REAL NOT NULL DEFAULT 0,
	gross_amount   REAL NOT NULL DEFAULT 0,
	total_hours    REAL NOT NULL DEFAULT 0,
	record_type    TEXT NOT NULL DEFAULT 'STANDARD',
	notes          TEXT,
	is_active      INTEGER NOT NULL DEFAULT 1
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
	auto_resolved INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL
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
	work_start_date     TIMESTAMP NOT NULL,
	work_end_date       TIMESTAMP NOT NULL,
	submission_deadline TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS contractors (
	id              TEXT PRIMARY KEY,
	first_name      TEXT NOT NULL,
	last_name       TEXT NOT NULL,
	normalized_name TEXT NOT NULL,
	standard_rate   REAL NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_contractors_normalized ON contractors(normalized_name);

CREATE TABLE IF NOT EXISTS associations (
	id              TEXT PRIMARY KEY,
	contractor_id   TEXT NOT NULL REFERENCES contractors(id),
	intermediary_id TEXT NOT NULL REFERENCES intermediaries(id),
	employee_id     TEXT NOT NULL,
	valid_from      TIMESTAMP NOT NULL,
	valid_to        TIMESTAMP
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSubmission(ctx context.Context, sub *model.Submission) error {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, intermediary_id, intermediary_code, period_id, filename, status, version, uploaded_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, nullable(sub.IntermediaryID), nullable(sub.IntermediaryCode), nullable(sub.PeriodID),
		sub.Filename, string(sub.Status), sub.Version, sub.UploadedAt, sub.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert submission")
}

func (s *SQLiteStore) GetSubmission(ctx context.Context, id string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get submission %s", id)
	}
	return sub, nil
}

func (s *SQLiteStore) BeginProcessing(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, updated_at = ? WHERE id = ? AND status IN (?, ?)`,
		string(model.StatusProcessing), time.Now().UTC(), id,
		string(model.StatusUploaded), string(model.StatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: begin processing %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("submission %s is not in a processable state", id)
	}
	return nil
}

func (s *SQLiteStore) SetSubmissionTarget(ctx context.Context, id, intermediaryID, code, periodID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET intermediary_id = ?, intermediary_code = ?, period_id = ?, updated_at = ? WHERE id = ?`,
		intermediaryID, code, periodID, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set submission target %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("submission not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) FindCurrentSubmission(ctx context.Context, intermediaryID, periodID, excludeID string) (*model.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE intermediary_id = ? AND period_id = ? AND id != ?
		   AND is_current_version AND status != ?
		 LIMIT 1`,
		intermediaryID, periodID, excludeID, string(model.StatusDeleted),
	)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrap(err, "sqlite: find current submission")
	}
	return sub, nil
}

func (s *SQLiteStore) Supersede(ctx context.Context, oldID, newID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: supersede: begin tx")
	}
	defer tx.Rollback()

	var oldVersion int
	if err := tx.QueryRowContext(ctx,
		`SELECT version FROM submissions WHERE id = ?`, oldID,
	).Scan(&oldVersion); err != nil {
		return eris.Wrapf(err, "sqlite: supersede: load %s", oldID)
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`UPDATE submissions
		 SET status = ?, is_current_version = 0, superseded_by_id = ?, superseded_at = ?, updated_at = ?
		 WHERE id = ? AND status != ? AND is_current_version`,
		string(model.StatusSuperseded), newID, now, now, oldID, string(model.StatusSuperseded),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: supersede %s", oldID)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE pay_records SET is_active = 0 WHERE submission_id = ?`, oldID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: deactivate records of %s", oldID)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE submissions SET supersedes_id = ?, version = ?, updated_at = ? WHERE id = ?`,
		oldID, oldVersion+1, now, newID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: link supersede chain to %s", newID)
	}

	return eris.Wrap(tx.Commit(), "sqlite: supersede: commit")
}

func (s *SQLiteStore) PromoteCurrent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET is_current_version = 1, updated_at = ?
		 WHERE id = ? AND is_current_version = 0 AND status = ?`,
		time.Now().UTC(), id, string(model.StatusProcessing),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: promote current %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("submission %s lost the current-version race or is not processing", id)
	}
	return nil
}

func (s *SQLiteStore) MarkError(ctx context.Context, id string) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		 SET status = ?, total_records = 0, valid_records = 0, error_records = 0, processed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(model.StatusError), now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark error %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("submission not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) MarkFailed(ctx context.Context, id, stage, reason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions SET status = ?, failure_stage = ?, failure_reason = ?, updated_at = ? WHERE id = ?`,
		string(model.StatusFailed), stage, reason, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark failed %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("submission not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) FinalizeSubmission(ctx context.Context, id string, status model.SubmissionStatus, total, valid, errRecords int) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE submissions
		 SET status = ?, total_records = ?, valid_records = ?, error_records = ?, processed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(status), total, valid, errRecords, now, now, id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize submission %s", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return eris.Errorf("submission not found: %s", id)
	}
	return nil
}

func (s *SQLiteStore) ImportPayRecords(ctx context.Context, submissionID string, records []model.PayRecord) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM pay_records WHERE submission_id = ?`, submissionID,
	); err != nil {
		return 0, eris.Wrapf(err, "sqlite: import: clear records of %s", submissionID)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO pay_records (id, submission_id, row_number, contractor_id, association_id, employee_id,
		                          forename, surname, unit_days, day_rate, amount, vat_amount, gross_amount,
		                          total_hours, record_type, notes, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import: prepare insert")
	}
	defer stmt.Close()

	for _, r := range records {
		id := r.ID
		if id == "" {
			id = uuid.New().String()
		}
		if _, err := stmt.ExecContext(ctx,
			id, submissionID, r.RowNumber, r.ContractorID, r.AssociationID, r.EmployeeID,
			r.Forename, r.Surname, r.UnitDays, r.DayRate, r.Amount, r.VATAmount, r.GrossAmount,
			r.TotalHours, string(r.RecordType), r.Notes, r.IsActive,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: import: insert row %d", r.RowNumber)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import: commit")
	}
	return len(records), nil
}

func (s *SQLiteStore) ListPayRecords(ctx context.Context, submissionID string) ([]model.PayRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submission_id, row_number, contractor_id, association_id, employee_id,
		        forename, surname, unit_days, day_rate, amount, vat_amount, gross_amount,
		        total_hours, record_type, notes, is_active
		 FROM pay_records WHERE submission_id = ? ORDER BY row_number`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pay records")
	}
	defer rows.Close()

	var recs []model.PayRecord
	for rows.Next() {
		var r model.PayRecord
		var notes sql.NullString
		if err := rows.Scan(&r.ID, &r.SubmissionID, &r.RowNumber, &r.ContractorID, &r.AssociationID,
			&r.EmployeeID, &r.Forename, &r.Surname, &r.UnitDays, &r.DayRate, &r.Amount,
			&r.VATAmount, &r.GrossAmount, &r.TotalHours, &r.RecordType, &notes, &r.IsActive); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pay record")
		}
		r.Notes = notes.String
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list pay records iterate")
}

func (s *SQLiteStore) SaveFindings(ctx context.Context, submissionID string, findings []model.Finding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: findings: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM validation_findings WHERE submission_id = ?`, submissionID,
	); err != nil {
		return eris.Wrapf(err, "sqlite: findings: clear %s", submissionID)
	}

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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO validation_findings (id, submission_id, severity, kind, row_number, message, suggested_fix, auto_resolved, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, submissionID, string(f.Severity), string(f.Kind), f.RowNumber,
			f.Message, f.SuggestedFix, f.AutoResolved, createdAt,
		); err != nil {
			return eris.Wrapf(err, "sqlite: findings: insert row %d", f.RowNumber)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: findings: commit")
}

func (s *SQLiteStore) ListFindings(ctx context.Context, submissionID string) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, submission_id, severity, kind, row_number, message, suggested_fix, auto_resolved, created_at
		 FROM validation_findings WHERE submission_id = ? ORDER BY row_number, severity`,
		submissionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list findings")
	}
	defer rows.Close()

	var findings []model.Finding
	for rows.Next() {
		var f model.Finding
		var fix sql.NullString
		if err := rows.Scan(&f.ID, &f.SubmissionID, &f.Severity, &f.Kind, &f.RowNumber,
			&f.Message, &fix, &f.AutoResolved, &f.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan finding")
		}
		f.SuggestedFix = fix.String
		findings = append(findings, f)
	}
	return findings, eris.Wrap(rows.Err(), "sqlite: list findings iterate")
}

func (s *SQLiteStore) ListIntermediaries(ctx context.Context) ([]model.Intermediary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, code, name FROM intermediaries ORDER BY code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list intermediaries")
	}
	defer rows.Close()

	var out []model.Intermediary
	for rows.Next() {
		var i model.Intermediary
		if err := rows.Scan(&i.ID, &i.Code, &i.Name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan intermediary")
		}
		out = append(out, i)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list intermediaries iterate")
}

func (s *SQLiteStore) ListPayPeriods(ctx context.Context) ([]model.PayPeriod, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, period_number, year, work_start_date, work_end_date, submission_deadline
		 FROM pay_periods ORDER BY work_start_date`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pay periods")
	}
	defer rows.Close()

	var out []model.PayPeriod
	for rows.Next() {
		var p model.PayPeriod
		if err := rows.Scan(&p.ID, &p.PeriodNumber, &p.Year, &p.WorkStartDate, &p.WorkEndDate, &p.SubmissionDeadline); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pay period")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list pay periods iterate")
}

func (s *SQLiteStore) LoadReferenceSet(ctx context.Context) (*model.ReferenceSet, error) {
	refs := &model.ReferenceSet{
		Associations: make(map[string][]model.Association),
		Blocklist:    make(map[string]bool),
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, normalized_name, standard_rate FROM contractors ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load contractors")
	}
	for rows.Next() {
		var c model.Contractor
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.NormalizedName, &c.StandardRate); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan contractor")
		}
		refs.Contractors = append(refs.Contractors, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load contractors iterate")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT id, contractor_id, intermediary_id, employee_id, valid_from, valid_to FROM associations`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load associations")
	}
	for rows.Next() {
		var a model.Association
		if err := rows.Scan(&a.ID, &a.ContractorID, &a.IntermediaryID, &a.EmployeeID, &a.ValidFrom, &a.ValidTo); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan association")
		}
		refs.Associations[a.ContractorID] = append(refs.Associations[a.ContractorID], a)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load associations iterate")
	}

	rows, err = s.db.QueryContext(ctx, `SELECT normalized_name FROM permanent_staff`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load permanent staff")
	}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, eris.Wrap(err, "sqlite: scan permanent staff")
		}
		refs.Blocklist[name] = true
	}
	rows.Close()
	return refs, eris.Wrap(rows.Err(), "sqlite: load permanent staff iterate")
}

func (s *SQLiteStore) LoadParameters(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, value FROM system_parameters`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load parameters")
	}
	defer rows.Close()

	params := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan parameter")
		}
		params[name] = value
	}
	return params, eris.Wrap(rows.Err(), "sqlite: load parameters iterate")
}

func (s *SQLiteStore) StandardRateBefore(ctx context.Context, contractorID string, before time.Time) (float64, bool, error) {
	var rate float64
	err := s.db.QueryRowContext(ctx,
		`SELECT pr.day_rate
		 FROM pay_records pr
		 JOIN submissions s ON s.id = pr.submission_id
		 JOIN pay_periods p ON p.id = s.period_id
		 WHERE pr.contractor_id = ? AND pr.record_type = ? AND pr.is_active
		   AND s.is_current_version AND p.work_start_date < ?
		 ORDER BY p.work_start_date DESC
		 LIMIT 1`,
		contractorID, string(model.RecordStandard), before,
	).Scan(&rate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, eris.Wrap(err, "sqlite: standard rate lookup")
	}
	return rate, true, nil
}

func (s *SQLiteStore) SeedReference(ctx context.Context, seed *SeedData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: seed: begin tx")
	}
	defer tx.Rollback()

	for _, i := range seed.Intermediaries {
		if i.ID == "" {
			i.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO intermediaries (id, code, name) VALUES (?, ?, ?)
			 ON CONFLICT (code) DO UPDATE SET name = excluded.name`,
			i.ID, i.Code, i.Name,
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed intermediary %s", i.Code)
		}
	}

	for _, p := range seed.PayPeriods {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO pay_periods (id, period_number, year, work_start_date, work_end_date, submission_deadline)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET work_start_date = excluded.work_start_date,
			                                work_end_date = excluded.work_end_date,
			                                submission_deadline = excluded.submission_deadline`,
			p.ID, p.PeriodNumber, p.Year, p.WorkStartDate, p.WorkEndDate, p.SubmissionDeadline,
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed period %d/%d", p.PeriodNumber, p.Year)
		}
	}

	for _, c := range seed.Contractors {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.NormalizedName == "" {
			c.NormalizedName = resolve.NormalizeFullName(c.FirstName, c.LastName)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contractors (id, first_name, last_name, normalized_name, standard_rate)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET first_name = excluded.first_name,
			                                last_name = excluded.last_name,
			                                normalized_name = excluded.normalized_name,
			                                standard_rate = excluded.standard_rate`,
			c.ID, c.FirstName, c.LastName, c.NormalizedName, c.StandardRate,
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed contractor %s %s", c.FirstName, c.LastName)
		}
	}

	for _, a := range seed.Associations {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO associations (id, contractor_id, intermediary_id, employee_id, valid_from, valid_to)
			 VALUES (?, ?, ?, ?, ?, ?)
			 ON CONFLICT (id) DO UPDATE SET employee_id = excluded.employee_id,
			                                valid_from = excluded.valid_from,
			                                valid_to = excluded.valid_to`,
			a.ID, a.ContractorID, a.IntermediaryID, a.EmployeeID, a.ValidFrom, a.ValidTo,
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed association %s", a.ID)
		}
	}

	for _, name := range seed.PermanentStaff {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO permanent_staff (normalized_name) VALUES (?) ON CONFLICT DO NOTHING`,
			resolve.NormalizeName(name),
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed permanent staff %q", name)
		}
	}

	for name, value := range seed.Parameters {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO system_parameters (name, value) VALUES (?, ?)
			 ON CONFLICT (name) DO UPDATE SET value = excluded.value`,
			name, value,
		); err != nil {
			return eris.Wrapf(err, "sqlite: seed parameter %s", name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: seed: commit")
}
