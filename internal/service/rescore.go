package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/loan-service/internal/metrics"
	"github.com/Dan9191/loan-service/internal/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Trigger identifies who started a rescore batch
type Trigger string

const (
	TriggerInteractive Trigger = "interactive"
	TriggerScheduled   Trigger = "scheduled"
)

const (
	DefaultInteractiveLimit = 25
	DefaultScheduledLimit   = 50
	MaxRescoreLimit         = 100
	StaleAfter              = 24 * time.Hour
)

func (s *Service) rescoreFilter(req models.RescoreRequest, trigger Trigger) (models.RescoreFilter, error) {
	verr := &models.ValidationError{}
	limit := req.Limit
	switch {
	case limit == 0 && trigger == TriggerScheduled:
		limit = DefaultScheduledLimit
	case limit == 0:
		limit = DefaultInteractiveLimit
	case limit < 1 || limit > MaxRescoreLimit:
		verr.Add("limit", fmt.Sprintf("must be between 1 and %d", MaxRescoreLimit))
	}
	for i, st := range req.Statuses {
		if !st.Valid() {
			verr.Add(fmt.Sprintf("statuses[%d]", i), fmt.Sprintf("unknown status %q", st))
		}
	}
	if len(req.ApplicationIDs) > MaxRescoreLimit {
		verr.Add("applicationIds", fmt.Sprintf("at most %d ids", MaxRescoreLimit))
	}
	if err := verr.OrNil(); err != nil {
		return models.RescoreFilter{}, err
	}
	return models.RescoreFilter{
		References:  req.ApplicationIDs,
		Statuses:    req.Statuses,
		StaleOnly:   req.StaleOnly,
		StaleBefore: s.now().Add(-StaleAfter),
		Limit:       limit,
	}, nil
}

// Rescore re-runs scoring for a bounded batch of applications, oldest-updated
// first. Each item is independent: a failure is recorded and the batch goes on.
// Items not started before the batch deadline are reported as failures.
func (s *Service) Rescore(ctx context.Context, req models.RescoreRequest, actor *int64, trigger Trigger) (*models.RescoreSummary, error) {
	filter, err := s.rescoreFilter(req, trigger)
	if err != nil {
		return nil, err
	}
	apps, err := s.store.SelectForRescore(ctx, filter)
	if err != nil {
		return nil, err
	}

	batchID := uuid.NewString()
	log := s.log.WithFields(logrus.Fields{"batch": batchID, "trigger": trigger})
	log.Infof("Rescoring %d applications", len(apps))

	if s.config.RescoreBatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RescoreBatchTimeout)
		defer cancel()
	}
	barrier := s.barrier.Get(ctx)

	errs := make([]error, len(apps))
	var g errgroup.Group
	g.SetLimit(s.config.RescoreWorkers)
	for i, app := range apps {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = fmt.Errorf("batch deadline reached before rescoring: %w", err)
				return nil
			}
			errs[i] = s.rescoreOne(ctx, app, barrier, actor, batchID, trigger)
			return nil
		})
	}
	_ = g.Wait()

	summary := &models.RescoreSummary{
		BatchID:   batchID,
		Processed: len(apps),
		Successes: []models.RescoreSuccess{},
		Failures:  []models.RescoreFailure{},
	}
	for i, app := range apps {
		if errs[i] != nil {
			metrics.RescoreItems.WithLabelValues("failure").Inc()
			summary.Failures = append(summary.Failures, models.RescoreFailure{
				ApplicationID: app.Reference,
				Error:         errs[i].Error(),
			})
			continue
		}
		metrics.RescoreItems.WithLabelValues("success").Inc()
		summary.Successes = append(summary.Successes, models.RescoreSuccess{
			ApplicationID: app.Reference,
			Status:        app.Status,
			FinalIndex:    app.FinalIndex,
		})
	}

	log.Infof("Rescore batch finished: %d succeeded, %d failed", len(summary.Successes), len(summary.Failures))
	return summary, nil
}

// rescoreOne scores and commits one application. app is updated in place
// only when the commit succeeds.
func (s *Service) rescoreOne(ctx context.Context, app *models.Application, barrier float64, actor *int64, batchID string, trigger Trigger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rescore panicked: %v", r)
		}
	}()

	user, err := s.store.FindUserByID(ctx, app.UserID)
	if err != nil {
		return fmt.Errorf("failed to load applicant: %w", err)
	}
	signals, err := s.store.LoadSignals(ctx, app.ID)
	if err != nil {
		return err
	}
	decision, err := s.evaluate(ctx, user, app, signals, barrier)
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	previous := app.Status
	updated := *app
	decision.Apply(&updated, s.now())
	audit := &models.AuditLog{
		ActorID: actor,
		Action:  models.ActionApplicationRescored,
		Details: auditDetails(map[string]interface{}{
			"batch_id":        batchID,
			"trigger":         trigger,
			"previous_status": previous,
			"status":          updated.Status,
			"final_sci":       updated.FinalIndex,
			"loan_to_income":  decision.LoanToIncome,
			"high_confidence": decision.HighConfidence,
		}),
	}
	if err := s.store.SaveDecision(ctx, &updated, audit); err != nil {
		return err
	}
	*app = updated

	metrics.Decisions.WithLabelValues(string(app.Status), "rescore").Inc()
	if previous != app.Status {
		s.notify(user, app)
	}
	return nil
}
