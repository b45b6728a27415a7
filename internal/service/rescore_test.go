package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Dan9191/loan-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedRescoreBatch(store *fakeStore, n int) []string {
	applicant(store)
	refs := make([]string, n)
	for i := 0; i < n; i++ {
		refs[i] = fmt.Sprintf("LN-2026-0000000%d", i+1)
		store.addApplication(&models.Application{
			Reference:      refs[i],
			UserID:         100,
			DeclaredIncome: 4000,
			LoanAmount:     1000,
			TenureMonths:   6,
			Purpose:        "stock",
			Consents:       models.Consents{BankStatement: true},
			Status:         models.StatusManualReview,
			UpdatedAt:      fixedNow.Add(-time.Duration(n-i) * time.Hour),
		}, &models.SignalSet{
			BankStatements: []models.BankStatement{{Date: day(2026, 2, 1), Credit: 800, Balance: 100}},
		})
	}
	return refs
}

func TestRescore_ItemFailureDoesNotAbortBatch(t *testing.T) {
	store := newFakeStore()
	refs := seedRescoreBatch(store, 3)
	scorer := &stubScorer{fn: func(req *models.ScoreRequest) (*models.ScoreResult, error) {
		if req.ApplicationID == refs[1] {
			return nil, errors.New("scoring service responded 502")
		}
		return &models.ScoreResult{Status: "approved", FinalSCI: 75, RiskBand: "Low"}, nil
	}}
	svc := newTestService(t, store, scorer, nil)
	actor := int64(1)

	summary, err := svc.Rescore(context.Background(), models.RescoreRequest{ApplicationIDs: refs}, &actor, TriggerInteractive)

	require.NoError(t, err)
	assert.NotEmpty(t, summary.BatchID)
	assert.Equal(t, 3, summary.Processed)
	require.Len(t, summary.Successes, 2)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, refs[0], summary.Successes[0].ApplicationID)
	assert.Equal(t, refs[2], summary.Successes[1].ApplicationID)
	assert.Equal(t, models.StatusApproved, summary.Successes[0].Status)
	assert.Equal(t, 75.0, *summary.Successes[0].FinalIndex)
	assert.Equal(t, refs[1], summary.Failures[0].ApplicationID)
	assert.Contains(t, summary.Failures[0].Error, "502")

	assert.Equal(t, models.StatusApproved, store.application(refs[0]).Status)
	assert.Equal(t, models.StatusManualReview, store.application(refs[1]).Status)
	assert.Nil(t, store.application(refs[1]).ProcessedAt)
	assert.Equal(t, models.StatusApproved, store.application(refs[2]).Status)
	assert.Equal(t, []string{models.ActionApplicationRescored, models.ActionApplicationRescored}, store.auditActions())
}

func TestRescore_CommitFailureIsReported(t *testing.T) {
	store := newFakeStore()
	refs := seedRescoreBatch(store, 2)
	store.saveErr[refs[0]] = errors.New("deadlock detected")
	svc := newTestService(t, store, fixedScorer(models.ScoreResult{Status: "rejected", FinalSCI: 20}), nil)

	summary, err := svc.Rescore(context.Background(), models.RescoreRequest{}, nil, TriggerInteractive)

	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Equal(t, refs[0], summary.Failures[0].ApplicationID)
	require.Len(t, summary.Successes, 1)
	assert.Equal(t, models.StatusRejected, summary.Successes[0].Status)
}

func TestRescore_PanicIsIsolated(t *testing.T) {
	store := newFakeStore()
	refs := seedRescoreBatch(store, 2)
	scorer := &stubScorer{fn: func(req *models.ScoreRequest) (*models.ScoreResult, error) {
		if req.ApplicationID == refs[0] {
			panic("unexpected payload")
		}
		return &models.ScoreResult{Status: "review", FinalSCI: 50}, nil
	}}
	svc := newTestService(t, store, scorer, nil)

	summary, err := svc.Rescore(context.Background(), models.RescoreRequest{}, nil, TriggerScheduled)

	require.NoError(t, err)
	require.Len(t, summary.Failures, 1)
	assert.Contains(t, summary.Failures[0].Error, "panicked")
	assert.Len(t, summary.Successes, 1)
}

func TestRescore_IsIdempotentForUnchangedInputs(t *testing.T) {
	store := newFakeStore()
	refs := seedRescoreBatch(store, 1)
	svc := newTestService(t, store, fixedScorer(models.ScoreResult{Status: "review", MLProbability: 0.9, CompositeScore: 70, FinalSCI: 40, RiskBand: "Medium"}), nil)
	req := models.RescoreRequest{ApplicationIDs: refs}

	_, err := svc.Rescore(context.Background(), req, nil, TriggerInteractive)
	require.NoError(t, err)
	first := store.application(refs[0])

	_, err = svc.Rescore(context.Background(), req, nil, TriggerInteractive)
	require.NoError(t, err)
	second := store.application(refs[0])

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, *first.FinalIndex, *second.FinalIndex)
	assert.Equal(t, 80.0, *second.FinalIndex)
	assert.Equal(t, first.Message, second.Message)
	assert.Equal(t, first.ProcessedAt, second.ProcessedAt)
}

func TestRescore_OldestUpdatedFirstWithinLimit(t *testing.T) {
	store := newFakeStore()
	refs := seedRescoreBatch(store, 3)
	svc := newTestService(t, store, fixedScorer(models.ScoreResult{Status: "review", FinalSCI: 50}), nil)

	summary, err := svc.Rescore(context.Background(), models.RescoreRequest{Limit: 2}, nil, TriggerInteractive)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	require.Len(t, summary.Successes, 2)
	assert.Equal(t, refs[0], summary.Successes[0].ApplicationID)
	assert.Equal(t, refs[1], summary.Successes[1].ApplicationID)
}

func TestRescore_StaleOnly(t *testing.T) {
	store := newFakeStore()
	applicant(store)
	fresh := fixedNow.Add(-time.Hour)
	old := fixedNow.Add(-48 * time.Hour)
	store.addApplication(&models.Application{Reference: "LN-2026-00000010", UserID: 100, LoanAmount: 1, Status: models.StatusApproved, ProcessedAt: &fresh}, nil)
	store.addApplication(&models.Application{Reference: "LN-2026-00000011", UserID: 100, LoanAmount: 1, Status: models.StatusManualReview, ProcessedAt: &old}, nil)
	store.addApplication(&models.Application{Reference: "LN-2026-00000012", UserID: 100, LoanAmount: 1, Status: models.StatusProcessing}, nil)
	svc := newTestService(t, store, fixedScorer(models.ScoreResult{Status: "review", FinalSCI: 50}), nil)

	summary, err := svc.Rescore(context.Background(), models.RescoreRequest{StaleOnly: true}, nil, TriggerScheduled)

	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	for _, s := range summary.Successes {
		assert.NotEqual(t, "LN-2026-00000010", s.ApplicationID)
	}
}

func TestRescoreFilter(t *testing.T) {
	svc := newTestService(t, newFakeStore(), nil, nil)

	f, err := svc.rescoreFilter(models.RescoreRequest{}, TriggerInteractive)
	require.NoError(t, err)
	assert.Equal(t, DefaultInteractiveLimit, f.Limit)

	f, err = svc.rescoreFilter(models.RescoreRequest{}, TriggerScheduled)
	require.NoError(t, err)
	assert.Equal(t, DefaultScheduledLimit, f.Limit)
	assert.Equal(t, fixedNow.Add(-StaleAfter), f.StaleBefore)

	f, err = svc.rescoreFilter(models.RescoreRequest{Limit: MaxRescoreLimit}, TriggerInteractive)
	require.NoError(t, err)
	assert.Equal(t, MaxRescoreLimit, f.Limit)

	for _, limit := range []int{-1, MaxRescoreLimit + 1} {
		_, err = svc.rescoreFilter(models.RescoreRequest{Limit: limit}, TriggerInteractive)
		var verr *models.ValidationError
		assert.ErrorAs(t, err, &verr, "limit %d", limit)
	}

	_, err = svc.rescoreFilter(models.RescoreRequest{Statuses: []models.ApplicationStatus{"DONE"}}, TriggerInteractive)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "statuses[0]", verr.Fields[0].Field)
}

func TestRescore_NotifiesOnlyOnStatusChange(t *testing.T) {
	store := newFakeStore()
	refs := seedRescoreBatch(store, 2)
	notifier := &recordingNotifier{}
	scorer := &stubScorer{fn: func(req *models.ScoreRequest) (*models.ScoreResult, error) {
		if req.ApplicationID == refs[0] {
			return &models.ScoreResult{Status: "approved", FinalSCI: 70}, nil
		}
		return &models.ScoreResult{Status: "review", FinalSCI: 50}, nil
	}}
	svc := newTestService(t, store, scorer, notifier)

	_, err := svc.Rescore(context.Background(), models.RescoreRequest{}, nil, TriggerInteractive)

	require.NoError(t, err)
	assert.Equal(t, []string{"ann@example.com:APPROVED"}, notifier.sent)
}

func TestRescore_ReadsBarrierOncePerBatch(t *testing.T) {
	store := newFakeStore()
	refs := seedRescoreBatch(store, 4)
	svc := newTestService(t, store, failingScorer(errScorerDown), nil)
	barrier := &countingBarrier{value: 15000}
	svc.barrier = barrier

	summary, err := svc.Rescore(context.Background(), models.RescoreRequest{ApplicationIDs: refs}, nil, TriggerInteractive)

	require.NoError(t, err)
	assert.Equal(t, 4, summary.Processed)
	assert.Equal(t, 1, barrier.reads)
}

func TestRescore_BatchDeadlineBoundsHangingScorer(t *testing.T) {
	store := newFakeStore()
	refs := seedRescoreBatch(store, 6)
	scorer := &blockingScorer{}
	svc := newTestService(t, store, scorer, nil)
	svc.config.RescoreBatchTimeout = 100 * time.Millisecond

	start := time.Now()
	summary, err := svc.Rescore(context.Background(), models.RescoreRequest{ApplicationIDs: refs}, nil, TriggerInteractive)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Less(t, elapsed, time.Second)
	assert.Equal(t, 6, summary.Processed)
	assert.Empty(t, summary.Successes)
	assert.Len(t, summary.Failures, 6)
	assert.LessOrEqual(t, scorer.calls, 6)
	for _, ref := range refs {
		assert.Equal(t, models.StatusManualReview, store.application(ref).Status)
	}
	assert.Empty(t, store.auditActions())
}
