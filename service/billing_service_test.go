// service/billing_service_test.go
package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	tmock "github.com/stretchr/testify/mock"

	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/ledger"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/service"
	"github.com/flowgate/api/test/mock"
)

func TestMain(m *testing.M) {
	logger.InitLogger("../logging")
	viper.Set("billing.lockTTL", "30s")
	m.Run()
}

func newBillingFixture() (*service.BillingService, *mock.MockLedgerClient, *mock.MockCostCache, *mock.MockUserLocker) {
	ledgerClient := &mock.MockLedgerClient{}
	costCache := &mock.MockCostCache{}
	locker := &mock.MockUserLocker{}
	return service.NewBillingService(ledgerClient, costCache, locker), ledgerClient, costCache, locker
}

func TestReserve_Success(t *testing.T) {
	billing, ledgerClient, costCache, locker := newBillingFixture()
	ctx := context.Background()

	locker.On("Acquire", ctx, "u1", tmock.Anything).Return(true, nil)
	locker.On("Release", ctx, "u1").Return(nil)
	costCache.On("GetChatflowCost", ctx, "flow-1").Return(0.0, false, nil)
	ledgerClient.On("GetCost", ctx, "flow-1").Return(5.0, nil)
	costCache.On("SetChatflowCost", ctx, "flow-1", 5.0).Return(nil)
	ledgerClient.On("GetBalance", ctx, "u1").Return(10.0, nil)
	ledgerClient.On("Deduct", ctx, "u1", 5.0).Return(nil)

	reservation, err := billing.Reserve(ctx, "u1", "flow-1")

	assert.NoError(t, err)
	assert.Equal(t, 5.0, reservation.Amount)
	locker.AssertCalled(t, "Release", ctx, "u1")
}

func TestReserve_CostCacheHitSkipsLedgerLookup(t *testing.T) {
	billing, ledgerClient, costCache, locker := newBillingFixture()
	ctx := context.Background()

	locker.On("Acquire", ctx, "u1", tmock.Anything).Return(true, nil)
	locker.On("Release", ctx, "u1").Return(nil)
	costCache.On("GetChatflowCost", ctx, "flow-1").Return(2.0, true, nil)
	ledgerClient.On("GetBalance", ctx, "u1").Return(10.0, nil)
	ledgerClient.On("Deduct", ctx, "u1", 2.0).Return(nil)

	reservation, err := billing.Reserve(ctx, "u1", "flow-1")

	assert.NoError(t, err)
	assert.Equal(t, 2.0, reservation.Amount)
	ledgerClient.AssertNotCalled(t, "GetCost", ctx, "flow-1")
}

func TestReserve_InsufficientCredits(t *testing.T) {
	billing, ledgerClient, costCache, locker := newBillingFixture()
	ctx := context.Background()

	locker.On("Acquire", ctx, "u1", tmock.Anything).Return(true, nil)
	locker.On("Release", ctx, "u1").Return(nil)
	costCache.On("GetChatflowCost", ctx, "flow-1").Return(5.0, true, nil)
	ledgerClient.On("GetBalance", ctx, "u1").Return(3.0, nil)
	ledgerClient.On("LogTransaction", ctx, tmock.Anything).Return(nil)

	_, err := billing.Reserve(ctx, "u1", "flow-1")

	assert.ErrorIs(t, err, echo_errors.ErrInsufficientCredits)
	ledgerClient.AssertNotCalled(t, "Deduct", ctx, "u1", 5.0)
	ledgerClient.AssertCalled(t, "LogTransaction", ctx, tmock.MatchedBy(func(tx ledger.Transaction) bool {
		return !tx.Success && tx.Amount == 5.0 && tx.UserID == "u1" && tx.ChatflowID == "flow-1"
	}))
	locker.AssertCalled(t, "Release", ctx, "u1")
}

func TestReserve_LockContention(t *testing.T) {
	billing, ledgerClient, _, locker := newBillingFixture()
	ctx := context.Background()

	locker.On("Acquire", ctx, "u1", tmock.Anything).Return(false, nil)

	_, err := billing.Reserve(ctx, "u1", "flow-1")

	assert.ErrorIs(t, err, echo_errors.ErrReservationConflict)
	ledgerClient.AssertNotCalled(t, "GetBalance", ctx, "u1")
	locker.AssertNotCalled(t, "Release", ctx, "u1")
}

func TestReserve_DeductionFailure(t *testing.T) {
	billing, ledgerClient, costCache, locker := newBillingFixture()
	ctx := context.Background()

	locker.On("Acquire", ctx, "u1", tmock.Anything).Return(true, nil)
	locker.On("Release", ctx, "u1").Return(nil)
	costCache.On("GetChatflowCost", ctx, "flow-1").Return(5.0, true, nil)
	ledgerClient.On("GetBalance", ctx, "u1").Return(10.0, nil)
	ledgerClient.On("Deduct", ctx, "u1", 5.0).Return(errors.New("ledger down"))
	ledgerClient.On("LogTransaction", ctx, tmock.Anything).Return(nil)

	_, err := billing.Reserve(ctx, "u1", "flow-1")

	assert.ErrorIs(t, err, echo_errors.ErrDeductionFailed)
	ledgerClient.AssertCalled(t, "LogTransaction", ctx, tmock.MatchedBy(func(tx ledger.Transaction) bool {
		return !tx.Success && tx.Amount == 5.0
	}))
}

func TestReserve_FreeChatflowSkipsLedger(t *testing.T) {
	billing, ledgerClient, costCache, locker := newBillingFixture()
	ctx := context.Background()

	locker.On("Acquire", ctx, "u1", tmock.Anything).Return(true, nil)
	locker.On("Release", ctx, "u1").Return(nil)
	costCache.On("GetChatflowCost", ctx, "flow-free").Return(0.0, true, nil)

	reservation, err := billing.Reserve(ctx, "u1", "flow-free")

	assert.NoError(t, err)
	assert.Equal(t, 0.0, reservation.Amount)
	ledgerClient.AssertNotCalled(t, "GetBalance", ctx, "u1")
	ledgerClient.AssertNotCalled(t, "Deduct", ctx, "u1", 0.0)
}

func TestFinalize_LogsExactlyOnce(t *testing.T) {
	billing, ledgerClient, _, _ := newBillingFixture()
	ctx := context.Background()

	ledgerClient.On("LogTransaction", ctx, tmock.Anything).Return(nil)

	reservation := &service.Reservation{UserID: "u1", ChatflowID: "flow-1", Amount: 5}
	billing.Finalize(ctx, reservation, true)
	billing.Finalize(ctx, reservation, false)

	ledgerClient.AssertNumberOfCalls(t, "LogTransaction", 1)
}

func TestFinalize_NilReservationIsNoop(t *testing.T) {
	billing, ledgerClient, _, _ := newBillingFixture()

	billing.Finalize(context.Background(), nil, false)

	ledgerClient.AssertNotCalled(t, "LogTransaction", tmock.Anything, tmock.Anything)
}
