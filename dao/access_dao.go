// dao/access_dao.go
package dao

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/flowgate/api/audit"
	echo_errors "github.com/flowgate/api/errors"
	logger "github.com/flowgate/api/logging"
	"github.com/flowgate/api/model"
	helper_util "github.com/flowgate/api/util/helper"
)

type AccessDAO struct {
	Driver       neo4j.Driver
	AuditService audit.Service
}

func NewAccessDAO(driver neo4j.Driver, auditService audit.Service) *AccessDAO {
	dao := &AccessDAO{Driver: driver, AuditService: auditService}
	ctx := context.Background()
	if err := dao.EnsureConstraints(ctx); err != nil {
		logger.Fatal("Failed to ensure constraints for AccessRecord", zap.Error(err))
	}
	return dao
}

// EnsureConstraints guarantees one AccessRecord node per (user, chatflow).
// The composite uniqueness constraint is what makes Grant's single-statement
// upsert safe under concurrent writers.
func (dao *AccessDAO) EnsureConstraints(ctx context.Context) error {
	logger.Info("Ensuring unique constraint on AccessRecord (user_id, chatflow_id)")
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        CREATE CONSTRAINT unique_access_record IF NOT EXISTS
        FOR (r:AccessRecord) REQUIRE (r.user_id, r.chatflow_id) IS UNIQUE
        `
		_, err := transaction.Run(query, nil)
		return nil, err
	})

	if err != nil {
		logger.Error("Failed to ensure unique constraint on AccessRecord", zap.Error(err))
		return err
	}

	return nil
}

// Grant performs the three-way idempotent upsert as a single MERGE statement:
// no record -> create active, inactive record -> reactivate, active record ->
// no-op. The outcome is computed inside the same statement, so concurrent
// grants converge on one record instead of racing a read-then-write pair.
func (dao *AccessDAO) Grant(ctx context.Context, userID, chatflowID string) (*model.GrantResult, error) {
	start := time.Now()
	logger.Info("Granting chatflow access",
		zap.String("userID", userID),
		zap.String("chatflowID", chatflowID))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	result, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MERGE (r:AccessRecord {user_id: $userID, chatflow_id: $chatflowID})
        ON CREATE SET r.id = $id, r.assigned_at = $now, r.is_active = true, r._created = true
        WITH r, CASE
            WHEN r._created THEN 'granted'
            WHEN r.is_active THEN 'already_granted'
            ELSE 'reactivated'
        END AS outcome
        SET r.is_active = true
        REMOVE r._created
        RETURN outcome, r.id AS id
        `
		params := map[string]interface{}{
			"userID":     userID,
			"chatflowID": chatflowID,
			"id":         uuid.New().String(),
			"now":        time.Now().Format(time.RFC3339),
		}

		result, err := transaction.Run(query, params)
		if err != nil {
			return nil, echo_errors.ErrDatabaseOperation
		}

		if result.Next() {
			values := result.Record().Values
			return &model.GrantResult{
				Outcome:    model.GrantOutcome(values[0].(string)),
				RecordID:   values[1].(string),
				UserID:     userID,
				ChatflowID: chatflowID,
			}, nil
		}

		return nil, echo_errors.ErrInternalServer
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to grant chatflow access",
			zap.Error(err),
			zap.String("userID", userID),
			zap.String("chatflowID", chatflowID),
			zap.Duration("duration", duration))
		return nil, err
	}

	grant := result.(*model.GrantResult)
	logger.Info("Chatflow access granted",
		zap.String("outcome", string(grant.Outcome)),
		zap.String("recordID", grant.RecordID),
		zap.Duration("duration", duration))

	// Audit trail
	details, _ := json.Marshal(map[string]string{"outcome": string(grant.Outcome)})
	auditLog := audit.AuditLog{
		Timestamp:     time.Now(),
		ActorID:       helper_util.ActorFromContext(ctx),
		Action:        audit.ActionGrantAccess,
		ChatflowID:    chatflowID,
		TargetUserID:  userID,
		ChangeDetails: details,
	}
	if err := dao.AuditService.LogAction(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return grant, nil
}

// Revoke soft-deletes the record. Revoking a missing or already-inactive
// record is success: cleanup scripts must be repeatable.
func (dao *AccessDAO) Revoke(ctx context.Context, userID, chatflowID string) error {
	start := time.Now()
	logger.Info("Revoking chatflow access",
		zap.String("userID", userID),
		zap.String("chatflowID", chatflowID))
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:AccessRecord {user_id: $userID, chatflow_id: $chatflowID})
        SET r.is_active = false
        `
		_, err := transaction.Run(query, map[string]interface{}{
			"userID":     userID,
			"chatflowID": chatflowID,
		})
		if err != nil {
			return nil, echo_errors.ErrDatabaseOperation
		}
		return nil, nil
	})

	duration := time.Since(start)
	if err != nil {
		logger.Error("Failed to revoke chatflow access",
			zap.Error(err),
			zap.String("userID", userID),
			zap.String("chatflowID", chatflowID),
			zap.Duration("duration", duration))
		return err
	}

	logger.Info("Chatflow access revoked",
		zap.String("userID", userID),
		zap.String("chatflowID", chatflowID),
		zap.Duration("duration", duration))

	// Audit trail
	auditLog := audit.AuditLog{
		Timestamp:    time.Now(),
		ActorID:      helper_util.ActorFromContext(ctx),
		Action:       audit.ActionRevokeAccess,
		ChatflowID:   chatflowID,
		TargetUserID: userID,
	}
	if err := dao.AuditService.LogAction(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

// HasActiveAccess is the relay's authorization check.
func (dao *AccessDAO) HasActiveAccess(ctx context.Context, userID, chatflowID string) (bool, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (r:AccessRecord {user_id: $userID, chatflow_id: $chatflowID})
    WHERE r.is_active = true
    RETURN count(r) > 0 AS active
    `
	result, err := session.Run(query, map[string]interface{}{
		"userID":     userID,
		"chatflowID": chatflowID,
	})
	if err != nil {
		logger.Error("Failed to execute access check query",
			zap.Error(err),
			zap.String("userID", userID),
			zap.String("chatflowID", chatflowID))
		return false, echo_errors.ErrDatabaseOperation
	}

	if result.Next() {
		return result.Record().Values[0].(bool), nil
	}
	return false, nil
}

// ListForChatflow returns all records for a chatflow joined with the cached
// shadow profile, when one exists. The join is OPTIONAL because nothing
// enforces that a shadow was ever imported for a record's user id.
func (dao *AccessDAO) ListForChatflow(ctx context.Context, chatflowID string) ([]model.AccessEntry, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	query := `
    MATCH (r:AccessRecord {chatflow_id: $chatflowID})
    OPTIONAL MATCH (u:UserShadow {id: r.user_id})
    RETURN r, u
    ORDER BY r.assigned_at DESC
    `
	result, err := session.Run(query, map[string]interface{}{"chatflowID": chatflowID})
	if err != nil {
		logger.Error("Failed to execute list access query",
			zap.Error(err),
			zap.String("chatflowID", chatflowID))
		return nil, echo_errors.ErrDatabaseOperation
	}

	var entries []model.AccessEntry
	for result.Next() {
		values := result.Record().Values
		record, err := mapNodeToAccessRecord(values[0].(neo4j.Node))
		if err != nil {
			return nil, echo_errors.ErrInternalServer
		}
		entry := model.AccessEntry{Record: *record}
		if values[1] != nil {
			shadow, err := mapNodeToUserShadow(values[1].(neo4j.Node))
			if err != nil {
				return nil, echo_errors.ErrInternalServer
			}
			entry.Shadow = shadow
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// ListRecords streams every record, optionally scoped to a set of chatflows.
// Reconciliation audits active and inactive records alike.
func (dao *AccessDAO) ListRecords(ctx context.Context, chatflowIDs []string) ([]model.AccessRecord, error) {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close()

	if chatflowIDs == nil {
		chatflowIDs = []string{}
	}
	query := `
    MATCH (r:AccessRecord)
    WHERE size($chatflowIDs) = 0 OR r.chatflow_id IN $chatflowIDs
    RETURN r
    ORDER BY r.chatflow_id, r.assigned_at
    `
	result, err := session.Run(query, map[string]interface{}{"chatflowIDs": chatflowIDs})
	if err != nil {
		logger.Error("Failed to execute list records query", zap.Error(err))
		return nil, echo_errors.ErrDatabaseOperation
	}

	var records []model.AccessRecord
	for result.Next() {
		record, err := mapNodeToAccessRecord(result.Record().Values[0].(neo4j.Node))
		if err != nil {
			return nil, echo_errors.ErrInternalServer
		}
		records = append(records, *record)
	}

	return records, nil
}

// Deactivate soft-disables one record by id, the default cleanup repair.
func (dao *AccessDAO) Deactivate(ctx context.Context, recordID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:AccessRecord {id: $recordID})
        SET r.is_active = false
        `
		_, err := transaction.Run(query, map[string]interface{}{"recordID": recordID})
		if err != nil {
			return nil, echo_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to deactivate access record", zap.Error(err), zap.String("recordID", recordID))
	}
	return err
}

// Delete physically removes one record by id. Only reconciliation cleanup
// takes this path; administrative revoke is always a soft delete.
func (dao *AccessDAO) Delete(ctx context.Context, recordID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:AccessRecord {id: $recordID})
        DETACH DELETE r
        `
		_, err := transaction.Run(query, map[string]interface{}{"recordID": recordID})
		if err != nil {
			return nil, echo_errors.ErrDatabaseOperation
		}
		return nil, nil
	})
	if err != nil {
		logger.Error("Failed to delete access record", zap.Error(err), zap.String("recordID", recordID))
	}
	return err
}

// ReassignUserID rewrites the record's user id in place after a successful
// email re-resolution. Fails if the fresh id already holds a record for the
// same chatflow, which the constraint reports as a conflict.
func (dao *AccessDAO) ReassignUserID(ctx context.Context, recordID, newUserID string) error {
	session := dao.Driver.NewSession(neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close()

	_, err := session.WriteTransaction(func(transaction neo4j.Transaction) (interface{}, error) {
		query := `
        MATCH (r:AccessRecord {id: $recordID})
        SET r.user_id = $newUserID, r.is_active = true
        RETURN r.id
        `
		result, err := transaction.Run(query, map[string]interface{}{
			"recordID":  recordID,
			"newUserID": newUserID,
		})
		if err != nil {
			return nil, echo_errors.ErrDatabaseOperation
		}
		if result.Next() {
			return nil, nil
		}
		return nil, echo_errors.ErrAccessRecordNotFound
	})
	if err != nil {
		logger.Error("Failed to reassign access record user id",
			zap.Error(err),
			zap.String("recordID", recordID),
			zap.String("newUserID", newUserID))
		return err
	}

	// Audit trail
	auditLog := audit.AuditLog{
		Timestamp:    time.Now(),
		ActorID:      helper_util.ActorFromContext(ctx),
		Action:       audit.ActionReassignUserID,
		TargetUserID: newUserID,
	}
	if err := dao.AuditService.LogAction(ctx, auditLog); err != nil {
		logger.Error("Failed to create audit log", zap.Error(err))
	}

	return nil
}

// Helper function to map Neo4j Node to AccessRecord struct
func mapNodeToAccessRecord(node neo4j.Node) (*model.AccessRecord, error) {
	props := node.Props
	record := &model.AccessRecord{}

	record.ID = props["id"].(string)
	record.UserID = props["user_id"].(string)
	record.ChatflowID = props["chatflow_id"].(string)
	record.IsActive = props["is_active"].(bool)

	assignedAt, err := helper_util.ParseTime(props["assigned_at"].(string))
	if err != nil {
		return nil, err
	}
	record.AssignedAt = assignedAt

	return record, nil
}
