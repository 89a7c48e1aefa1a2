// service/session_service.go
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"go.uber.org/zap"

	echo_errors "github.com/flowgate/api/errors"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
)

const topicMaxLength = 80

type ISessionService interface {
	ResolveSessionID(userID, chatflowID, supplied string) string
	CommitTurn(ctx context.Context, turn model.ChatSession, question string, events []model.StreamEvent) error
	GetHistory(ctx context.Context, userID, sessionID string) ([]model.DecodedMessage, error)
	ListSessions(ctx context.Context, userID string) ([]model.ChatSession, error)
}

// SessionService owns conversation persistence. A session only comes into
// existence when a turn produces output; a failed first turn leaves nothing
// behind.
type SessionService struct {
	chatStore ChatStore
}

var _ ISessionService = &SessionService{}

func NewSessionService(chatStore ChatStore) *SessionService {
	return &SessionService{chatStore: chatStore}
}

// ResolveSessionID returns the caller-supplied id when continuing an existing
// conversation, otherwise derives a fresh opaque id. The derived id is hashed
// so it leaks neither the user id nor the chatflow id.
func (s *SessionService) ResolveSessionID(userID, chatflowID, supplied string) string {
	if supplied != "" {
		return supplied
	}
	seed := fmt.Sprintf("%s|%s|%d", userID, chatflowID, time.Now().UnixMilli())
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

// CommitTurn stores a question and its answer as one atomic pair. The answer
// is the serialized ordered event sequence, so history replays exactly what
// streamed. The session's topic is seeded from the first question.
func (s *SessionService) CommitTurn(ctx context.Context, turn model.ChatSession, question string, events []model.StreamEvent) error {
	if turn.SessionID == "" || question == "" {
		return echo_errors.ErrInvalidChatData
	}
	if len(events) == 0 {
		return echo_errors.ErrEmptyStream
	}

	if turn.Topic == "" {
		turn.Topic = deriveTopic(question)
	}

	answerContent, err := model.EncodeEvents(events)
	if err != nil {
		logger.Error("Failed to encode answer events",
			zap.Error(err),
			zap.String("sessionID", turn.SessionID))
		return echo_errors.ErrInternalServer
	}

	return s.chatStore.CommitTurn(ctx, turn, question, answerContent)
}

// GetHistory returns a session's messages in order, with assistant content
// decoded back into its event sequence. Callers only ever see their own
// sessions; someone else's session id gets the same answer as a wrong guess.
func (s *SessionService) GetHistory(ctx context.Context, userID, sessionID string) ([]model.DecodedMessage, error) {
	session, err := s.chatStore.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.UserID != userID {
		logger.Warn("History requested for session owned by another user",
			zap.String("sessionID", sessionID),
			zap.String("requestingUserID", userID))
		return nil, echo_errors.ErrSessionForbidden
	}

	messages, err := s.chatStore.GetMessages(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	decoded := make([]model.DecodedMessage, 0, len(messages))
	for _, message := range messages {
		entry := model.DecodedMessage{
			Role:      message.Role,
			CreatedAt: message.CreatedAt,
		}
		if message.Role == model.RoleAssistant {
			events, err := model.DecodeEvents(message.Content)
			if err != nil {
				// Content predating the framed format is served as-is.
				logger.Warn("Stored assistant content is not an event sequence",
					zap.String("sessionID", sessionID))
				entry.Content = message.Content
			} else {
				entry.Events = events
			}
		} else {
			entry.Content = message.Content
		}
		decoded = append(decoded, entry)
	}
	return decoded, nil
}

// ListSessions returns the caller's sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context, userID string) ([]model.ChatSession, error) {
	return s.chatStore.ListSessionsForUser(ctx, userID)
}

func deriveTopic(question string) string {
	runes := []rune(question)
	if len(runes) <= topicMaxLength {
		return question
	}
	return string(runes[:topicMaxLength])
}
