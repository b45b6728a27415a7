package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Dan9191/loan-service/internal/models"
)

// insertSignals appends every record of signals to its table inside tx
func insertSignals(ctx context.Context, tx *sql.Tx, applicationID int64, signals *models.SignalSet) error {
	if signals == nil {
		return nil
	}
	for _, s := range signals.BankStatements {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan.bank_statements (application_id, statement_date, credit, debit, balance)
			VALUES ($1, $2, $3, $4, $5)`,
			applicationID, s.Date, s.Credit, s.Debit, s.Balance)
		if err != nil {
			return fmt.Errorf("failed to insert bank statement: %w", err)
		}
	}
	for _, s := range signals.Recharges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan.recharge_data (application_id, recharge_date, amount)
			VALUES ($1, $2, $3)`,
			applicationID, s.Date, s.Amount)
		if err != nil {
			return fmt.Errorf("failed to insert recharge record: %w", err)
		}
	}
	for _, s := range signals.Electricity {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan.electricity_bills (application_id, bill_date, amount, is_late)
			VALUES ($1, $2, $3, $4)`,
			applicationID, s.BillDate, s.Amount, s.IsLate)
		if err != nil {
			return fmt.Errorf("failed to insert electricity bill: %w", err)
		}
	}
	for _, s := range signals.Education {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan.education_fees (application_id, payment_date, amount, is_late)
			VALUES ($1, $2, $3, $4)`,
			applicationID, s.PaymentDate, s.Amount, s.IsLate)
		if err != nil {
			return fmt.Errorf("failed to insert education fee: %w", err)
		}
	}
	for _, s := range signals.Repayments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan.repayment_history (application_id, loan_ref, due_date, paid_date, amount_due, amount_paid, paid, is_late, days_late)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			applicationID, s.LoanRef, s.DueDate, nullTime(s.PaidDate), s.AmountDue, s.AmountPaid, s.Paid, s.IsLate, s.DaysLate)
		if err != nil {
			return fmt.Errorf("failed to insert repayment record: %w", err)
		}
	}
	return nil
}

// LoadSignals reads every signal record of an application
func (r *Repository) LoadSignals(ctx context.Context, applicationID int64) (*models.SignalSet, error) {
	set := &models.SignalSet{}

	err := r.each(ctx, `
		SELECT id, statement_date, credit, debit, balance
		FROM loan.bank_statements WHERE application_id = $1 ORDER BY statement_date`,
		applicationID, func(rows *sql.Rows) error {
			s := models.BankStatement{ApplicationID: applicationID}
			if err := rows.Scan(&s.ID, &s.Date, &s.Credit, &s.Debit, &s.Balance); err != nil {
				return err
			}
			set.BankStatements = append(set.BankStatements, s)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load bank statements: %w", err)
	}

	err = r.each(ctx, `
		SELECT id, recharge_date, amount
		FROM loan.recharge_data WHERE application_id = $1 ORDER BY recharge_date`,
		applicationID, func(rows *sql.Rows) error {
			s := models.RechargeRecord{ApplicationID: applicationID}
			if err := rows.Scan(&s.ID, &s.Date, &s.Amount); err != nil {
				return err
			}
			set.Recharges = append(set.Recharges, s)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load recharge data: %w", err)
	}

	err = r.each(ctx, `
		SELECT id, bill_date, amount, is_late
		FROM loan.electricity_bills WHERE application_id = $1 ORDER BY bill_date`,
		applicationID, func(rows *sql.Rows) error {
			s := models.ElectricityBill{ApplicationID: applicationID}
			if err := rows.Scan(&s.ID, &s.BillDate, &s.Amount, &s.IsLate); err != nil {
				return err
			}
			set.Electricity = append(set.Electricity, s)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load electricity bills: %w", err)
	}

	err = r.each(ctx, `
		SELECT id, payment_date, amount, is_late
		FROM loan.education_fees WHERE application_id = $1 ORDER BY payment_date`,
		applicationID, func(rows *sql.Rows) error {
			s := models.EducationFee{ApplicationID: applicationID}
			if err := rows.Scan(&s.ID, &s.PaymentDate, &s.Amount, &s.IsLate); err != nil {
				return err
			}
			set.Education = append(set.Education, s)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load education fees: %w", err)
	}

	err = r.each(ctx, `
		SELECT id, loan_ref, due_date, paid_date, amount_due, amount_paid, paid, is_late, days_late
		FROM loan.repayment_history WHERE application_id = $1 ORDER BY due_date`,
		applicationID, func(rows *sql.Rows) error {
			s := models.RepaymentRecord{ApplicationID: applicationID}
			var paidDate sql.NullTime
			if err := rows.Scan(&s.ID, &s.LoanRef, &s.DueDate, &paidDate, &s.AmountDue, &s.AmountPaid, &s.Paid, &s.IsLate, &s.DaysLate); err != nil {
				return err
			}
			s.PaidDate = timePtr(paidDate)
			set.Repayments = append(set.Repayments, s)
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to load repayment history: %w", err)
	}

	return set, nil
}

func (r *Repository) each(ctx context.Context, query string, applicationID int64, scan func(rows *sql.Rows) error) error {
	rows, err := r.db.QueryContext(ctx, query, applicationID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
