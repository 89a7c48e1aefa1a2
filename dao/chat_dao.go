// dao/chat_dao.go
package dao

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	echo_errors "github.com/flowgate/api/errors"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
	helper_util "github.com/flowgate/api/util/helper"
)

type ChatDAO struct {
	Driver neo4j.Driver
}

func NewChatDAO(driver neo4j.Driver) *ChatDAO {
	dao := &ChatDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureConstraints(ctx); err != nil {
		logger.Fatal("Failed to ensure constraints for ChatSession", zap.Error(err))
	}
	return dao
}

func (dao *ChatDAO) EnsureConstraints(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on ChatSession session_id")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_chat_session IF NOT EXISTS
        FOR (s:ChatSession) REQUIRE s.session_id IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		return nil, err
	})

	if err != nil {
		logger.Error("Failed to ensure unique constraint on ChatSession", zap.Error(err))
		return err
	}

	return nil
}

// CommitTurn writes the user message, the assistant message, and the session
// node (iff new) in one write transaction. The relay only calls this after at
// least one upstream event arrived, so a question is never stored without its
// answer.
func (dao *ChatDAO) CommitTurn(ctx context.Context, turn model.ChatSession, question, answerContent string) error {
	start := time.Now()
	logger.Info("Committing chat turn",
		zap.String("sessionID", turn.SessionID),
		zap.String("userID", turn.UserID))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (s:ChatSession {session_id: $sessionID})
        ON CREATE SET s.user_id = $userID, s.chatflow_id = $chatflowID,
                      s.topic = $topic, s.created_at = $now
        CREATE (s)-[:HAS_MESSAGE]->(:ChatMessage {
            session_id: $sessionID, user_id: $userID, role: 'user',
            content: $question, created_at: $now
        })
        CREATE (s)-[:HAS_MESSAGE]->(:ChatMessage {
            session_id: $sessionID, user_id: $userID, role: 'assistant',
            content: $answer, created_at: $answerAt
        })
        `
		now := time.Now()
		params := map[string]interface{}{
			"sessionID":  turn.SessionID,
			"userID":     turn.UserID,
			"chatflowID": turn.ChatflowID,
			"topic":      turn.Topic,
			"question":   question,
			"answer":     answerContent,
			"now":        now.Format(time.RFC3339Nano),
			"answerAt":   now.Add(time.Millisecond).Format(time.RFC3339Nano),
		}

		_, err := transaction.Run(query, params)
		if err != nil {
			return nil, echo_errors.ErrDatabaseOperation
		}
		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to commit chat turn",
			zap.Error(err),
			zap.String("sessionID", turn.SessionID),
			zap.Duration("duration", duration))
		return err
	}

	logger.Info("Chat turn committed",
		zap.String("sessionID", turn.SessionID),
		zap.Duration("duration", duration))
	return nil
}

func (dao *ChatDAO) GetSession(ctx context.Context, sessionID string) (*model.ChatSession, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (s:ChatSession {session_id: $sessionID})
    RETURN s
    `
	result, err := session.Run(query, map[string]interface{}{"sessionID": sessionID})
	if err != nil {
		logger.Error("Failed to execute get session query", zap.Error(err), zap.String("sessionID", sessionID))
		return nil, echo_errors.ErrDatabaseOperation
	}

	if result.Next() {
		return mapNodeToChatSession(result.Record().Values[0].(neo4j.Node))
	}
	return nil, echo_errors.ErrSessionNotFound
}

func (dao *ChatDAO) ListSessionsForUser(ctx context.Context, userID string) ([]model.ChatSession, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (s:ChatSession {user_id: $userID})
    RETURN s
    ORDER BY s.created_at DESC
    `
	result, err := session.Run(query, map[string]interface{}{"userID": userID})
	if err != nil {
		logger.Error("Failed to execute list sessions query", zap.Error(err), zap.String("userID", userID))
		return nil, echo_errors.ErrDatabaseOperation
	}

	var sessions []model.ChatSession
	for result.Next() {
		chatSession, err := mapNodeToChatSession(result.Record().Values[0].(neo4j.Node))
		if err != nil {
			return nil, echo_errors.ErrInternalServer
		}
		sessions = append(sessions, *chatSession)
	}

	return sessions, nil
}

func (dao *ChatDAO) GetMessages(ctx context.Context, sessionID string) ([]model.ChatMessage, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (:ChatSession {session_id: $sessionID})-[:HAS_MESSAGE]->(m:ChatMessage)
    RETURN m
    ORDER BY m.created_at
    `
	result, err := session.Run(query, map[string]interface{}{"sessionID": sessionID})
	if err != nil {
		logger.Error("Failed to execute get messages query", zap.Error(err), zap.String("sessionID", sessionID))
		return nil, echo_errors.ErrDatabaseOperation
	}

	var messages []model.ChatMessage
	for result.Next() {
		message, err := mapNodeToChatMessage(result.Record().Values[0].(neo4j.Node))
		if err != nil {
			return nil, echo_errors.ErrInternalServer
		}
		messages = append(messages, *message)
	}

	return messages, nil
}

// Helper function to map Neo4j Node to ChatSession struct
func mapNodeToChatSession(node neo4j.Node) (*model.ChatSession, error) {
	props := node.Props
	chatSession := &model.ChatSession{}

	chatSession.SessionID = props["session_id"].(string)
	chatSession.UserID = props["user_id"].(string)
	chatSession.ChatflowID = props["chatflow_id"].(string)
	if topic, ok := props["topic"].(string); ok {
		chatSession.Topic = topic
	}

	createdAt, err := helper_util.ParseTime(props["created_at"].(string))
	if err != nil {
		return nil, err
	}
	chatSession.CreatedAt = createdAt

	return chatSession, nil
}

// Helper function to map Neo4j Node to ChatMessage struct
func mapNodeToChatMessage(node neo4j.Node) (*model.ChatMessage, error) {
	props := node.Props
	message := &model.ChatMessage{}

	message.SessionID = props["session_id"].(string)
	message.UserID = props["user_id"].(string)
	message.Role = props["role"].(string)
	message.Content = props["content"].(string)

	createdAt, err := helper_util.ParseTime(props["created_at"].(string))
	if err != nil {
		return nil, err
	}
	message.CreatedAt = createdAt

	return message, nil
}
