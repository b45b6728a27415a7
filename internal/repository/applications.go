package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dan9191/loan-service/internal/models"
	"github.com/lib/pq"
)

const applicationColumns = `id, reference, user_id, declared_income, loan_amount, tenure_months, purpose,
	consent_bank_statement, consent_recharge, consent_electricity, consent_education,
	status, risk_band, risk_category, composite_score, ml_probability, final_sci, approved_amount,
	message, score_details, created_at, submitted_at, processed_at, approved_at, rejected_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanApplication(row rowScanner) (*models.Application, error) {
	app := &models.Application{}
	var (
		riskBand, riskCategory                     sql.NullString
		composite, probability, finalSCI, approved sql.NullFloat64
		details                                    []byte
		submitted, processed, approvedAt, rejected sql.NullTime
	)
	err := row.Scan(
		&app.ID, &app.Reference, &app.UserID, &app.DeclaredIncome, &app.LoanAmount, &app.TenureMonths, &app.Purpose,
		&app.Consents.BankStatement, &app.Consents.Recharge, &app.Consents.Electricity, &app.Consents.Education,
		&app.Status, &riskBand, &riskCategory, &composite, &probability, &finalSCI, &approved,
		&app.Message, &details, &app.CreatedAt, &submitted, &processed, &approvedAt, &rejected, &app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	app.RiskBand = stringPtr(riskBand)
	app.RiskCategory = stringPtr(riskCategory)
	app.CompositeScore = floatPtr(composite)
	app.MLProbability = floatPtr(probability)
	app.FinalIndex = floatPtr(finalSCI)
	app.ApprovedAmount = floatPtr(approved)
	if len(details) > 0 {
		app.ScoreDetails = details
	}
	app.SubmittedAt = timePtr(submitted)
	app.ProcessedAt = timePtr(processed)
	app.ApprovedAt = timePtr(approvedAt)
	app.RejectedAt = timePtr(rejected)
	return app, nil
}

// CreateApplication inserts the application, its signal records and the
// submission audit entry in one transaction.
func (r *Repository) CreateApplication(ctx context.Context, app *models.Application, signals *models.SignalSet, audit *models.AuditLog) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertApplication(ctx, tx, app); err != nil {
			return err
		}
		if err := insertSignals(ctx, tx, app.ID, signals); err != nil {
			return err
		}
		audit.EntityType = models.EntityApplication
		audit.EntityID = app.Reference
		return insertAudit(ctx, tx, audit)
	})
}

func insertApplication(ctx context.Context, tx *sql.Tx, app *models.Application) error {
	query := `
		INSERT INTO loan.applications (
			reference, user_id, declared_income, loan_amount, tenure_months, purpose,
			consent_bank_statement, consent_recharge, consent_electricity, consent_education,
			status, message, submitted_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		RETURNING id, created_at, updated_at`
	err := tx.QueryRowContext(ctx, query,
		app.Reference, app.UserID, app.DeclaredIncome, app.LoanAmount, app.TenureMonths, app.Purpose,
		app.Consents.BankStatement, app.Consents.Recharge, app.Consents.Electricity, app.Consents.Education,
		string(app.Status), app.Message, nullTime(app.SubmittedAt),
	).Scan(&app.ID, &app.CreatedAt, &app.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return models.ErrReferenceTaken
		}
		return fmt.Errorf("failed to create application: %w", err)
	}
	return nil
}

// GetApplication retrieves an application by its reference
func (r *Repository) GetApplication(ctx context.Context, reference string) (*models.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM loan.applications WHERE reference = $1`
	app, err := scanApplication(r.db.QueryRowContext(ctx, query, reference))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find application: %w", err)
	}
	return app, nil
}

// SaveDecision writes the scoring fields and status of app together with
// its audit entry. Neither is visible if either fails.
func (r *Repository) SaveDecision(ctx context.Context, app *models.Application, audit *models.AuditLog) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			UPDATE loan.applications SET
				status = $2, risk_band = $3, risk_category = $4, composite_score = $5,
				ml_probability = $6, final_sci = $7, approved_amount = $8, message = $9,
				score_details = $10, processed_at = $11, approved_at = $12, rejected_at = $13,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = $1
			RETURNING updated_at`
		var details interface{}
		if len(app.ScoreDetails) > 0 {
			details = []byte(app.ScoreDetails)
		}
		err := tx.QueryRowContext(ctx, query,
			app.ID, string(app.Status), nullString(app.RiskBand), nullString(app.RiskCategory),
			nullFloat(app.CompositeScore), nullFloat(app.MLProbability), nullFloat(app.FinalIndex),
			nullFloat(app.ApprovedAmount), app.Message, details,
			nullTime(app.ProcessedAt), nullTime(app.ApprovedAt), nullTime(app.RejectedAt),
		).Scan(&app.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to update application: %w", err)
		}
		audit.EntityType = models.EntityApplication
		audit.EntityID = app.Reference
		return insertAudit(ctx, tx, audit)
	})
}

// SelectForRescore returns applications matching filter, oldest-updated first
func (r *Repository) SelectForRescore(ctx context.Context, filter models.RescoreFilter) ([]*models.Application, error) {
	var (
		conds []string
		args  []interface{}
	)
	if len(filter.References) > 0 {
		args = append(args, pq.Array(filter.References))
		conds = append(conds, fmt.Sprintf("reference = ANY($%d)", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, pq.Array(statuses))
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.StaleOnly {
		args = append(args, filter.StaleBefore)
		conds = append(conds, fmt.Sprintf("(processed_at IS NULL OR processed_at < $%d)", len(args)))
	}

	query := `SELECT ` + applicationColumns + ` FROM loan.applications`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(` ORDER BY updated_at ASC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate applications: %w", err)
	}
	return apps, nil
}

// IngestPartnerData stores a partner batch in one transaction: the
// application (created when create is set), every signal record, the
// consent flags for non-empty batches and one audit entry.
func (r *Repository) IngestPartnerData(ctx context.Context, app *models.Application, create bool, signals *models.SignalSet, audit *models.AuditLog) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if create {
			if err := insertApplication(ctx, tx, app); err != nil {
				return err
			}
		} else {
			query := `
				UPDATE loan.applications SET
					consent_bank_statement = consent_bank_statement OR $2,
					consent_recharge = consent_recharge OR $3,
					consent_electricity = consent_electricity OR $4,
					consent_education = consent_education OR $5,
					updated_at = CURRENT_TIMESTAMP
				WHERE id = $1
				RETURNING consent_bank_statement, consent_recharge, consent_electricity, consent_education, updated_at`
			err := tx.QueryRowContext(ctx, query, app.ID,
				app.Consents.BankStatement, app.Consents.Recharge, app.Consents.Electricity, app.Consents.Education,
			).Scan(&app.Consents.BankStatement, &app.Consents.Recharge, &app.Consents.Electricity, &app.Consents.Education, &app.UpdatedAt)
			if errors.Is(err, sql.ErrNoRows) {
				return models.ErrNotFound
			}
			if err != nil {
				return fmt.Errorf("failed to update consents: %w", err)
			}
		}
		if err := insertSignals(ctx, tx, app.ID, signals); err != nil {
			return err
		}
		audit.EntityType = models.EntityApplication
		audit.EntityID = app.Reference
		return insertAudit(ctx, tx, audit)
	})
}
