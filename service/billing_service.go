// service/billing_service.go
package service

import (
	"context"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	echo_errors "github.com/flowgate/api/errors"
	"github.com/flowgate/api/ledger"
	logger "github.com/flowgate/api/logging"
)

type IBillingService interface {
	Reserve(ctx context.Context, userID, chatflowID string) (*Reservation, error)
	Finalize(ctx context.Context, reservation *Reservation, success bool)
}

// Reservation is one charged turn awaiting its outcome. The deduction has
// already happened by the time a Reservation exists; Finalize only records
// how the turn went. Credits are never refunded.
type Reservation struct {
	UserID     string
	ChatflowID string
	Amount     float64
	ReservedAt time.Time
	finalized  bool
}

// BillingService fronts the accounting ledger for the relay. The ledger's API
// is check-then-deduct with no compare-and-swap, so the service serializes the
// pair under a short per-user redis lock to keep two concurrent turns from
// both passing the balance check.
type BillingService struct {
	ledgerClient ledger.Client
	costCache    CostCache
	userLocker   UserLocker
}

var _ IBillingService = &BillingService{}

func NewBillingService(ledgerClient ledger.Client, costCache CostCache, userLocker UserLocker) *BillingService {
	return &BillingService{
		ledgerClient: ledgerClient,
		costCache:    costCache,
		userLocker:   userLocker,
	}
}

// Reserve charges the user for one turn of the chatflow: cost lookup, balance
// check, and deduction, all under the per-user lock. The lock is released as
// soon as the deduction settles; it does not cover the stream itself.
func (s *BillingService) Reserve(ctx context.Context, userID, chatflowID string) (*Reservation, error) {
	start := time.Now()
	lockTTL := viper.GetDuration("billing.lockTTL")

	acquired, err := s.userLocker.Acquire(ctx, userID, lockTTL)
	if err != nil {
		logger.Error("Failed to acquire billing lock", zap.Error(err), zap.String("userID", userID))
		return nil, err
	}
	if !acquired {
		logger.Warn("Concurrent reservation rejected", zap.String("userID", userID))
		return nil, echo_errors.ErrReservationConflict
	}
	defer func() {
		if err := s.userLocker.Release(ctx, userID); err != nil {
			logger.Warn("Failed to release billing lock", zap.Error(err), zap.String("userID", userID))
		}
	}()

	cost, err := s.lookupCost(ctx, chatflowID)
	if err != nil {
		return nil, err
	}

	// A zero-cost chatflow skips the ledger entirely.
	if cost <= 0 {
		logger.Debug("Chatflow is free, skipping deduction", zap.String("chatflowID", chatflowID))
		return &Reservation{
			UserID:     userID,
			ChatflowID: chatflowID,
			Amount:     0,
			ReservedAt: time.Now(),
		}, nil
	}

	balance, err := s.ledgerClient.GetBalance(ctx, userID)
	if err != nil {
		logger.Error("Failed to fetch balance", zap.Error(err), zap.String("userID", userID))
		return nil, err
	}
	if balance < cost {
		logger.Info("Insufficient credits",
			zap.String("userID", userID),
			zap.Float64("balance", balance),
			zap.Float64("cost", cost))
		s.logRefusedTurn(ctx, userID, chatflowID, cost)
		return nil, echo_errors.ErrInsufficientCredits
	}

	if err := s.ledgerClient.Deduct(ctx, userID, cost); err != nil {
		logger.Error("Deduction failed",
			zap.Error(err),
			zap.String("userID", userID),
			zap.Float64("cost", cost))
		s.logRefusedTurn(ctx, userID, chatflowID, cost)
		return nil, echo_errors.ErrDeductionFailed
	}

	logger.Info("Credits reserved",
		zap.String("userID", userID),
		zap.String("chatflowID", chatflowID),
		zap.Float64("amount", cost),
		zap.Duration("duration", time.Since(start)))
	return &Reservation{
		UserID:     userID,
		ChatflowID: chatflowID,
		Amount:     cost,
		ReservedAt: time.Now(),
	}, nil
}

// lookupCost reads the per-turn cost through the redis cache. A cache failure
// degrades to a ledger call, never to a turn failure.
func (s *BillingService) lookupCost(ctx context.Context, chatflowID string) (float64, error) {
	cost, hit, err := s.costCache.GetChatflowCost(ctx, chatflowID)
	if err != nil {
		logger.Warn("Cost cache lookup failed", zap.Error(err), zap.String("chatflowID", chatflowID))
	} else if hit {
		return cost, nil
	}

	cost, err = s.ledgerClient.GetCost(ctx, chatflowID)
	if err != nil {
		return 0, err
	}
	if cacheErr := s.costCache.SetChatflowCost(ctx, chatflowID, cost); cacheErr != nil {
		logger.Warn("Failed to cache chatflow cost", zap.Error(cacheErr), zap.String("chatflowID", chatflowID))
	}
	return cost, nil
}

// logRefusedTurn records a turn the reservation itself refused. Turns that
// never reach the engine still leave a failed transaction in the ledger
// history.
func (s *BillingService) logRefusedTurn(ctx context.Context, userID, chatflowID string, cost float64) {
	tx := ledger.Transaction{
		UserID:     userID,
		ChatflowID: chatflowID,
		Amount:     cost,
		Success:    false,
		Timestamp:  time.Now(),
	}
	if err := s.ledgerClient.LogTransaction(ctx, tx); err != nil {
		logger.Error("Failed to log refused reservation",
			zap.Error(err),
			zap.String("userID", userID),
			zap.String("chatflowID", chatflowID))
	}
}

// Finalize records the turn with the ledger, exactly once per reservation.
// A failed turn is logged with success=false and the charge stands; the
// ledger's history is the audit trail for disputed turns.
func (s *BillingService) Finalize(ctx context.Context, reservation *Reservation, success bool) {
	if reservation == nil || reservation.finalized {
		return
	}
	reservation.finalized = true

	tx := ledger.Transaction{
		UserID:     reservation.UserID,
		ChatflowID: reservation.ChatflowID,
		Amount:     reservation.Amount,
		Success:    success,
		Timestamp:  time.Now(),
	}
	if err := s.ledgerClient.LogTransaction(ctx, tx); err != nil {
		logger.Error("Failed to log ledger transaction",
			zap.Error(err),
			zap.String("userID", reservation.UserID),
			zap.Bool("success", success))
		return
	}
	logger.Info("Ledger transaction logged",
		zap.String("userID", reservation.UserID),
		zap.String("chatflowID", reservation.ChatflowID),
		zap.Float64("amount", reservation.Amount),
		zap.Bool("success", success))
}
