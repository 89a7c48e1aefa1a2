// service/relay_service.go
package service

import (
	"context"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate/api/engine"
	echo_errors "github.com/flowgate/api/errors"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
	"github.com/flowgate/api/util"
)

// TurnRequest is one question against one chatflow. SessionID is empty for a
// new conversation.
type TurnRequest struct {
	UserID     string
	ChatflowID string
	Question   string
	SessionID  string
}

// TurnResult summarizes a finished turn. Committed reports whether the turn's
// message pair made it into the session store.
type TurnResult struct {
	SessionID string
	Events    []model.StreamEvent
	Charged   float64
	Committed bool
}

type IRelayService interface {
	StreamTurn(ctx context.Context, req TurnRequest, send func(model.StreamEvent) error) (*TurnResult, error)
}

// RelayService runs one metered, access-checked streaming turn end to end:
// authorization, credit reservation, live relay of engine frames, then
// persistence and ledger finalization.
//
// Errors before the first frame is sent are returned to the caller. Once
// streaming has begun the response status is already on the wire, so every
// later failure is delivered as a terminal error frame instead.
type RelayService struct {
	accessStore    AccessStore
	billingService IBillingService
	sessionService ISessionService
	engineClient   engine.Client
	validationUtil *util.ValidationUtil
}

var _ IRelayService = &RelayService{}

func NewRelayService(accessStore AccessStore,
	billingService IBillingService,
	sessionService ISessionService,
	engineClient engine.Client,
	validationUtil *util.ValidationUtil) *RelayService {

	return &RelayService{
		accessStore:    accessStore,
		billingService: billingService,
		sessionService: sessionService,
		engineClient:   engineClient,
		validationUtil: validationUtil,
	}
}

// StreamTurn executes one turn, calling send for every frame destined for the
// caller. The access check runs before any ledger call; an unauthorized user
// never touches billing.
func (s *RelayService) StreamTurn(ctx context.Context, req TurnRequest, send func(model.StreamEvent) error) (*TurnResult, error) {
	start := time.Now()

	if err := s.validationUtil.ValidateChatflowID(req.ChatflowID); err != nil {
		return nil, echo_errors.ErrInvalidChatData
	}
	if err := s.validationUtil.ValidateQuestion(req.Question); err != nil {
		return nil, echo_errors.ErrInvalidChatData
	}

	active, err := s.accessStore.HasActiveAccess(ctx, req.UserID, req.ChatflowID)
	if err != nil {
		return nil, err
	}
	if !active {
		logger.Warn("Stream rejected, no active access",
			zap.String("userID", req.UserID),
			zap.String("chatflowID", req.ChatflowID))
		return nil, echo_errors.ErrAccessDenied
	}

	sessionID := s.sessionService.ResolveSessionID(req.UserID, req.ChatflowID, req.SessionID)

	reservation, err := s.billingService.Reserve(ctx, req.UserID, req.ChatflowID)
	if err != nil {
		return nil, err
	}

	stream, err := s.engineClient.OpenStream(ctx, req.ChatflowID, req.Question, engine.SessionContext{
		SessionID: sessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		logger.Error("Failed to open engine stream",
			zap.Error(err),
			zap.String("chatflowID", req.ChatflowID))
		s.billingService.Finalize(context.WithoutCancel(ctx), reservation, false)
		return nil, echo_errors.ErrUpstreamFailure
	}
	defer stream.Close()

	// First frame: tell the caller which session this turn belongs to, so a
	// client starting a fresh conversation can continue it.
	var streamErr error
	if err := send(model.StreamEvent{Kind: model.EventSession, SessionID: sessionID}); err != nil {
		streamErr = err
	}

	var collected []model.StreamEvent
	for streamErr == nil {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			streamErr = err
			break
		}

		switch ev.Kind {
		case model.EventSession:
			// The relay owns session announcement; engine copies are dropped.
			continue
		case model.EventEnd:
			// The relay emits its own terminal frame after persistence.
			continue
		}

		collected = append(collected, ev)
		if err := send(ev); err != nil {
			streamErr = err
			break
		}
	}

	if malformed := stream.Malformed(); malformed > 0 {
		logger.Warn("Engine emitted malformed frames",
			zap.Int("malformedCount", malformed),
			zap.String("chatflowID", req.ChatflowID))
	}

	// Persistence and finalization must survive a dropped client connection.
	tailCtx := context.WithoutCancel(ctx)

	if len(collected) == 0 {
		// Nothing came back: no message pair is stored and the turn is
		// recorded as failed. The charge stands.
		if streamErr != nil {
			logger.Error("Engine stream failed before any output",
				zap.Error(streamErr),
				zap.String("chatflowID", req.ChatflowID))
		} else {
			logger.Error("Engine stream ended with no output",
				zap.String("chatflowID", req.ChatflowID))
		}
		_ = send(model.StreamEvent{Kind: model.EventError, Data: echo_errors.ErrEmptyStream.Error()})
		_ = send(model.StreamEvent{Kind: model.EventEnd})
		s.billingService.Finalize(tailCtx, reservation, false)
		return &TurnResult{
			SessionID: sessionID,
			Charged:   reservation.Amount,
		}, nil
	}

	merged := model.MergeEvents(collected)
	if streamErr != nil {
		logger.Error("Engine stream failed mid-turn, keeping partial answer",
			zap.Error(streamErr),
			zap.String("sessionID", sessionID),
			zap.Int("eventsDelivered", len(collected)))
		errorFrame := model.StreamEvent{Kind: model.EventError, Data: echo_errors.ErrUpstreamFailure.Error()}
		merged = append(merged, errorFrame)
		_ = send(errorFrame)
	}

	committed := true
	if err := s.sessionService.CommitTurn(tailCtx, model.ChatSession{
		SessionID:  sessionID,
		UserID:     req.UserID,
		ChatflowID: req.ChatflowID,
	}, req.Question, merged); err != nil {
		// The answer already streamed, so the turn still counts as delivered.
		logger.Error("Failed to commit chat turn after successful stream",
			zap.Error(err),
			zap.String("sessionID", sessionID))
		committed = false
	}

	s.billingService.Finalize(tailCtx, reservation, streamErr == nil)
	_ = send(model.StreamEvent{Kind: model.EventEnd})

	logger.Info("Turn finished",
		zap.String("sessionID", sessionID),
		zap.String("chatflowID", req.ChatflowID),
		zap.Int("events", len(merged)),
		zap.Bool("committed", committed),
		zap.Duration("duration", time.Since(start)))

	return &TurnResult{
		SessionID: sessionID,
		Events:    merged,
		Charged:   reservation.Amount,
		Committed: committed,
	}, nil
}
