// dao/user_dao.go
package dao

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	echo_errors "github.com/flowgate/api/errors"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
	helper_util "github.com/flowgate/api/util/helper"
)

type UserShadowDAO struct {
	Driver neo4j.Driver
}

func NewUserShadowDAO(driver neo4j.Driver) *UserShadowDAO {
	dao := &UserShadowDAO{Driver: driver}
	ctx := context.Background()
	if err := dao.EnsureConstraints(ctx); err != nil {
		logger.Fatal("Failed to ensure constraints for UserShadow", zap.Error(err))
	}
	return dao
}

func (dao *UserShadowDAO) EnsureConstraints(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on UserShadow email")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_shadow_email IF NOT EXISTS
        FOR (u:UserShadow) REQUIRE u.email IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		return nil, err
	})

	if err != nil {
		logger.Error("Failed to ensure unique constraint on UserShadow", zap.Error(err))
		return err
	}

	return nil
}

// Upsert lazily imports a profile keyed by email. The shadow is a cache, not
// a source of truth: a repeated import refreshes the stored id and username
// with whatever the identity provider currently says.
func (dao *UserShadowDAO) Upsert(ctx context.Context, shadow model.UserShadow) (*model.UserShadow, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	if shadow.ID == "" {
		shadow.ID = uuid.New().String()
	}

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (u:UserShadow {email: $email})
        ON CREATE SET u.created_at = $now
        SET u.id = $id, u.username = $username
        RETURN u
        `
		params := map[string]interface{}{
			"email":    shadow.Email,
			"id":       shadow.ID,
			"username": shadow.Username,
			"now":      time.Now().Format(time.RFC3339),
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			return nil, echo_errors.ErrDatabaseOperation
		}

		if result.Next() {
			return result.Record().Values[0], nil
		}
		return nil, echo_errors.ErrInternalServer
	})
	if err != nil {
		logger.Error("Failed to upsert user shadow",
			zap.Error(err),
			zap.String("email", shadow.Email))
		return nil, err
	}

	upserted, err := mapNodeToUserShadow(result.(neo4j.Node))
	if err != nil {
		return nil, echo_errors.ErrInternalServer
	}

	logger.Info("User shadow upserted",
		zap.String("shadowID", upserted.ID),
		zap.String("email", upserted.Email))
	return upserted, nil
}

func (dao *UserShadowDAO) FindByEmail(ctx context.Context, email string) (*model.UserShadow, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (u:UserShadow {email: $email})
    RETURN u
    `
	result, err := session.Run(query, map[string]interface{}{"email": email})
	if err != nil {
		logger.Error("Failed to execute find shadow query", zap.Error(err), zap.String("email", email))
		return nil, echo_errors.ErrDatabaseOperation
	}

	if result.Next() {
		return mapNodeToUserShadow(result.Record().Values[0].(neo4j.Node))
	}
	return nil, echo_errors.ErrUserShadowNotFound
}

func (dao *UserShadowDAO) FindByID(ctx context.Context, id string) (*model.UserShadow, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (u:UserShadow {id: $id})
    RETURN u
    `
	result, err := session.Run(query, map[string]interface{}{"id": id})
	if err != nil {
		logger.Error("Failed to execute find shadow query", zap.Error(err), zap.String("shadowID", id))
		return nil, echo_errors.ErrDatabaseOperation
	}

	if result.Next() {
		return mapNodeToUserShadow(result.Record().Values[0].(neo4j.Node))
	}
	return nil, echo_errors.ErrUserShadowNotFound
}

// Helper function to map Neo4j Node to UserShadow struct
func mapNodeToUserShadow(node neo4j.Node) (*model.UserShadow, error) {
	props := node.Props
	shadow := &model.UserShadow{}

	shadow.ID = props["id"].(string)
	shadow.Email = props["email"].(string)
	if username, ok := props["username"].(string); ok {
		shadow.Username = username
	}

	createdAt, err := helper_util.ParseTime(props["created_at"].(string))
	if err != nil {
		return nil, err
	}
	shadow.CreatedAt = createdAt

	return shadow, nil
}
