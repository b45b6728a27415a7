package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dan9191/loan-service/internal/metrics"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func validateIngest(req *models.PartnerIngestRequest) error {
	verr := &models.ValidationError{}
	if strings.TrimSpace(req.PartnerID) == "" {
		verr.Add("partnerId", "is required")
	}
	if req.ApplicationID == "" {
		if req.BeneficiaryUserID <= 0 {
			verr.Add("beneficiaryUserId", "is required when applicationId is absent")
		}
		if req.LoanContext == nil {
			verr.Add("loanContext", "is required when applicationId is absent")
		} else {
			if req.LoanContext.DeclaredIncome < 0 {
				verr.Add("loanContext.declaredIncome", "must not be negative")
			}
			if req.LoanContext.LoanAmount <= 0 {
				verr.Add("loanContext.loanAmount", "must be positive")
			}
			if req.LoanContext.TenureMonths < 1 || req.LoanContext.TenureMonths > 360 {
				verr.Add("loanContext.tenureMonths", "must be between 1 and 360")
			}
		}
	}
	total := 0
	for _, n := range req.Signals.Counts() {
		total += n
	}
	if total == 0 {
		verr.Add("signals", "at least one record is required")
	}
	validateSignals(verr, "signals", &req.Signals)
	return verr.OrNil()
}

// IngestPartnerData persists a partner batch and rescores the target
// application. All signal batches are stored in one transaction.
func (s *Service) IngestPartnerData(ctx context.Context, req models.PartnerIngestRequest) (*models.PartnerIngestResult, error) {
	if err := validateIngest(&req); err != nil {
		return nil, err
	}

	var (
		app    *models.Application
		user   *models.User
		create bool
		err    error
	)
	if req.ApplicationID != "" {
		app, err = s.store.GetApplication(ctx, req.ApplicationID)
		if err != nil {
			return nil, err
		}
		user, err = s.store.FindUserByID(ctx, app.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load applicant: %w", err)
		}
	} else {
		user, err = s.store.FindUserByID(ctx, req.BeneficiaryUserID)
		if errors.Is(err, models.ErrNotFound) {
			verr := &models.ValidationError{}
			verr.Add("beneficiaryUserId", "unknown user")
			return nil, verr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load beneficiary: %w", err)
		}
		now := s.now()
		app = &models.Application{
			UserID:         user.ID,
			DeclaredIncome: req.LoanContext.DeclaredIncome,
			LoanAmount:     req.LoanContext.LoanAmount,
			TenureMonths:   req.LoanContext.TenureMonths,
			Purpose:        strings.TrimSpace(req.LoanContext.Purpose),
			Status:         models.StatusPending,
			SubmittedAt:    &now,
		}
		create = true
	}

	counts := req.Signals.Counts()
	app.Consents = models.Consents{
		BankStatement: app.Consents.BankStatement || len(req.Signals.BankStatements) > 0,
		Recharge:      app.Consents.Recharge || len(req.Signals.Recharges) > 0,
		Electricity:   app.Consents.Electricity || len(req.Signals.Electricity) > 0,
		Education:     app.Consents.Education || len(req.Signals.Education) > 0,
	}

	ingestID := uuid.NewString()
	audit := &models.AuditLog{
		Action: models.ActionPartnerIngested,
		Details: auditDetails(map[string]interface{}{
			"ingest_id": ingestID,
			"partner":   req.PartnerID,
			"created":   create,
			"counts":    counts,
		}),
	}
	persist := func() error {
		return s.store.IngestPartnerData(ctx, app, create, &req.Signals, audit)
	}
	if create {
		err = s.createWithReference(app, persist)
	} else {
		err = persist()
	}
	if err != nil {
		return nil, err
	}
	for signal, n := range counts {
		if n > 0 {
			metrics.PartnerRecords.WithLabelValues(req.PartnerID, signal).Add(float64(n))
		}
	}

	s.log.WithFields(logrus.Fields{
		"application": app.Reference,
		"partner":     req.PartnerID,
		"ingest_id":   ingestID,
		"created":     create,
	}).Info("Partner data ingested")

	signals, err := s.store.LoadSignals(ctx, app.ID)
	if err != nil {
		s.log.WithField("application", app.Reference).Errorf("Failed to reload signals after ingest: %v", err)
	} else {
		s.decide(ctx, user, app, signals, s.barrier.Get(ctx), nil, "partner")
	}

	return &models.PartnerIngestResult{
		IngestID:    ingestID,
		Application: app,
		Counts:      counts,
		Created:     create,
	}, nil
}
