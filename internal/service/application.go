package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dan9191/loan-service/internal/metrics"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/Dan9191/loan-service/internal/utils"
	"github.com/sirupsen/logrus"
)

// SubmitRequest is a new loan application from an authenticated applicant
type SubmitRequest struct {
	DeclaredIncome float64          `json:"declaredIncome"`
	LoanAmount     float64          `json:"loanAmount"`
	TenureMonths   int              `json:"tenureMonths"`
	Purpose        string           `json:"purpose"`
	Consents       models.Consents  `json:"consents"`
	Signals        models.SignalSet `json:"signals"`
}

func (r *SubmitRequest) validate() error {
	verr := &models.ValidationError{}
	if r.DeclaredIncome < 0 {
		verr.Add("declaredIncome", "must not be negative")
	}
	if r.LoanAmount <= 0 {
		verr.Add("loanAmount", "must be positive")
	}
	if r.TenureMonths < 1 || r.TenureMonths > 360 {
		verr.Add("tenureMonths", "must be between 1 and 360")
	}
	if strings.TrimSpace(r.Purpose) == "" {
		verr.Add("purpose", "is required")
	}
	validateSignals(verr, "signals", &r.Signals)
	return verr.OrNil()
}

// Submit accepts a loan application and scores it. A scorer failure never
// fails the submission: the application is parked in MANUAL_REVIEW instead.
func (s *Service) Submit(ctx context.Context, userID int64, req SubmitRequest) (*models.Application, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	user, err := s.store.FindUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applicant: %w", err)
	}

	barrier := s.barrier.Get(ctx)
	highIncome := req.DeclaredIncome >= barrier
	consents := req.Consents
	signals := req.Signals
	if highIncome {
		consents = consents.WithoutAlternativeProxies()
		signals.DropAlternativeProxies()
	}
	dropUnconsented(&signals, consents)

	now := s.now()
	app := &models.Application{
		UserID:         userID,
		DeclaredIncome: req.DeclaredIncome,
		LoanAmount:     req.LoanAmount,
		TenureMonths:   req.TenureMonths,
		Purpose:        strings.TrimSpace(req.Purpose),
		Consents:       consents,
		Status:         models.StatusProcessing,
		SubmittedAt:    &now,
	}
	audit := &models.AuditLog{
		ActorID: &userID,
		Action:  models.ActionApplicationSubmitted,
		Details: auditDetails(map[string]interface{}{
			"counts":         signals.Counts(),
			"high_income":    highIncome,
			"income_barrier": barrier,
		}),
	}
	err = s.createWithReference(app, func() error {
		return s.store.CreateApplication(ctx, app, &signals, audit)
	})
	if err != nil {
		return nil, err
	}

	log := s.log.WithFields(logrus.Fields{"application": app.Reference, "user": userID})
	log.Info("Application submitted")

	s.decide(ctx, user, app, &signals, barrier, &userID, "submission")
	return app, nil
}

// createWithReference assigns app a fresh reference and runs create. A
// collision on the reference draws one more before giving up.
func (s *Service) createWithReference(app *models.Application, create func() error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		if app.Reference, err = utils.GenerateReference("LN", 8); err != nil {
			return err
		}
		if err = create(); !errors.Is(err, models.ErrReferenceTaken) {
			return err
		}
		s.log.Warnf("Application reference %s already taken, drawing another", app.Reference)
	}
	return fmt.Errorf("failed to allocate application reference: %w", err)
}

// decide scores app and commits the decision. Scorer failures fall back to
// MANUAL_REVIEW; a failed commit leaves the application unprocessed so the
// stale rescore picks it up.
func (s *Service) decide(ctx context.Context, user *models.User, app *models.Application, signals *models.SignalSet, barrier float64, actor *int64, source string) {
	log := s.log.WithFields(logrus.Fields{"application": app.Reference, "source": source})

	decision, err := s.evaluate(ctx, user, app, signals, barrier)
	scored := err == nil
	if err != nil {
		log.Warnf("Scoring unavailable, queuing for manual review: %v", err)
		decision = FallbackDecision()
	}

	updated := *app
	decision.Apply(&updated, s.now())
	audit := &models.AuditLog{
		ActorID: actor,
		Action:  models.ActionApplicationScored,
		Details: auditDetails(map[string]interface{}{
			"source":          source,
			"scored":          scored,
			"status":          updated.Status,
			"final_sci":       updated.FinalIndex,
			"loan_to_income":  decision.LoanToIncome,
			"high_confidence": decision.HighConfidence,
		}),
	}
	if err := s.store.SaveDecision(ctx, &updated, audit); err != nil {
		log.Errorf("Failed to commit decision: %v", err)
		return
	}
	*app = updated

	metrics.Decisions.WithLabelValues(string(app.Status), source).Inc()
	log.WithField("status", app.Status).Info("Decision committed")
	s.notify(user, app)
}

// GetApplication returns an application visible to the caller
func (s *Service) GetApplication(ctx context.Context, reference string, callerID int64, role string) (*models.Application, error) {
	app, err := s.store.GetApplication(ctx, reference)
	if err != nil {
		return nil, err
	}
	if role != models.RoleAdmin && role != models.RoleOfficer && app.UserID != callerID {
		return nil, models.ErrForbidden
	}
	return app, nil
}

// dropUnconsented discards records of signal types without consent
func dropUnconsented(signals *models.SignalSet, consents models.Consents) {
	if !consents.BankStatement {
		signals.BankStatements = nil
	}
	if !consents.Recharge {
		signals.Recharges = nil
	}
	if !consents.Electricity {
		signals.Electricity = nil
	}
	if !consents.Education {
		signals.Education = nil
	}
}

func validateSignals(verr *models.ValidationError, prefix string, set *models.SignalSet) {
	for i, r := range set.BankStatements {
		if r.Date.IsZero() {
			verr.Add(fmt.Sprintf("%s.bankStatements[%d].date", prefix, i), "is required")
		}
		if r.Credit < 0 || r.Debit < 0 {
			verr.Add(fmt.Sprintf("%s.bankStatements[%d]", prefix, i), "credit and debit must not be negative")
		}
	}
	for i, r := range set.Recharges {
		if r.Date.IsZero() {
			verr.Add(fmt.Sprintf("%s.recharges[%d].date", prefix, i), "is required")
		}
		if r.Amount < 0 {
			verr.Add(fmt.Sprintf("%s.recharges[%d].amount", prefix, i), "must not be negative")
		}
	}
	for i, r := range set.Electricity {
		if r.BillDate.IsZero() {
			verr.Add(fmt.Sprintf("%s.electricityBills[%d].billDate", prefix, i), "is required")
		}
		if r.Amount < 0 {
			verr.Add(fmt.Sprintf("%s.electricityBills[%d].amount", prefix, i), "must not be negative")
		}
	}
	for i, r := range set.Education {
		if r.PaymentDate.IsZero() {
			verr.Add(fmt.Sprintf("%s.educationFees[%d].paymentDate", prefix, i), "is required")
		}
		if r.Amount < 0 {
			verr.Add(fmt.Sprintf("%s.educationFees[%d].amount", prefix, i), "must not be negative")
		}
	}
	for i, r := range set.Repayments {
		if r.DueDate.IsZero() {
			verr.Add(fmt.Sprintf("%s.repaymentHistory[%d].dueDate", prefix, i), "is required")
		}
		if r.AmountDue < 0 || r.AmountPaid < 0 {
			verr.Add(fmt.Sprintf("%s.repaymentHistory[%d]", prefix, i), "amounts must not be negative")
		}
		if r.DaysLate < 0 {
			verr.Add(fmt.Sprintf("%s.repaymentHistory[%d].daysLate", prefix, i), "must not be negative")
		}
	}
}
