/*
 * Copyright (c) 2025, WSO2 LLC. (http://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package store

import (
	"fmt"
	"time"

	"github.com/wso2/profile-reconciliation-service/internal/proposal/model"
	"github.com/wso2/profile-reconciliation-service/internal/system/database/provider"
	errors2 "github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	"github.com/wso2/profile-reconciliation-service/internal/system/utils"
)

// ProposalStoreInterface is the persistent proposal queue. UpdateProposalStatus
// is the conditional-transition primitive: it only moves rows still in
// PENDING and reports how many rows it moved, so concurrent reviewers race
// safely.
type ProposalStoreInterface interface {
	InsertProposal(proposal model.ProfileUpdateProposal) error
	GetProposal(proposalId string) (*model.ProfileUpdateProposal, error)
	GetPendingProposals(filter model.PendingFilter) ([]model.ProfileUpdateProposal, error)
	UpdateProposalStatus(proposalId string, to model.ProposalStatus, review model.ReviewContext) (int64, error)
	ExpireStaleProposals(now time.Time) (int64, error)
	GetProposalStats() (*model.ReviewStats, error)
}

// PostgresProposalStore is the postgres-backed proposal store.
type PostgresProposalStore struct{}

func NewProposalStore() ProposalStoreInterface {

	return &PostgresProposalStore{}
}

// InsertProposal appends a new proposal row.
func (s *PostgresProposalStore) InsertProposal(proposal model.ProfileUpdateProposal) error {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for adding proposal for subject: %s",
			proposal.SubjectId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.ADD_PROPOSAL.Code,
			Message:     errors2.ADD_PROPOSAL.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	serialized, err := proposal.ProposedValue.Serialize()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to serialize proposed value for subject: %s", proposal.SubjectId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.MARSHAL_JSON.Code,
			Message:     errors2.MARSHAL_JSON.Message,
			Description: errorMsg,
		}, err)
	}

	tx, err := dbClient.BeginTx()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to begin transaction for adding proposal for subject: %s",
			proposal.SubjectId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.ADD_PROPOSAL.Code,
			Message:     errors2.ADD_PROPOSAL.Message,
			Description: errorMsg,
		}, err)
	}

	query := `INSERT INTO profile_update_proposals
		(proposal_id, subject_id, source_id, update_type, target_table, target_field, current_value,
		 proposed_value, value_kind, reasoning, confidence, status, priority, auto_apply_after, created_at, expires_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`

	_, err = tx.Exec(query,
		proposal.ProposalId, proposal.SubjectId, proposal.SourceId, string(proposal.UpdateType),
		proposal.TargetLocator.Table, proposal.TargetLocator.Field, proposal.CurrentValue,
		serialized, string(proposal.ProposedValue.Kind), proposal.Reasoning, proposal.Confidence,
		string(proposal.Status), proposal.Priority, nullableTime(proposal.AutoApplyAfter),
		proposal.CreatedAt, nullableTime(proposal.ExpiresAt))
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			errorMsg := fmt.Sprintf("Failed to rollback transaction for adding proposal %s for subject: %s",
				proposal.ProposalId, proposal.SubjectId)
			logger.Debug(errorMsg, log.Error(rbErr))
			return errors2.NewServerError(errors2.ErrorMessage{
				Code:        errors2.ADD_PROPOSAL.Code,
				Message:     errors2.ADD_PROPOSAL.Message,
				Description: errorMsg,
			}, rbErr)
		}
		errorMsg := fmt.Sprintf("Failed on inserting proposal %s for subject: %s",
			proposal.ProposalId, proposal.SubjectId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.ADD_PROPOSAL.Code,
			Message:     errors2.ADD_PROPOSAL.Message,
			Description: errorMsg,
		}, err)
	}

	if err := tx.Commit(); err != nil {
		errorMsg := fmt.Sprintf("Failed to commit transaction for adding proposal %s for subject: %s",
			proposal.ProposalId, proposal.SubjectId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.ADD_PROPOSAL.Code,
			Message:     errors2.ADD_PROPOSAL.Message,
			Description: errorMsg,
		}, err)
	}
	return nil
}

// GetProposal fetches one proposal by id. Returns nil when absent.
func (s *PostgresProposalStore) GetProposal(proposalId string) (*model.ProfileUpdateProposal, error) {

	proposals, err := queryProposals("SELECT * FROM profile_update_proposals WHERE proposal_id = $1", proposalId)
	if err != nil {
		return nil, err
	}
	if len(proposals) == 0 {
		return nil, nil
	}
	return &proposals[0], nil
}

// GetPendingProposals lists PENDING proposals narrowed by the filter. Sorting
// is whitelisted to keep the ORDER BY clause out of caller hands.
func (s *PostgresProposalStore) GetPendingProposals(filter model.PendingFilter) (
	[]model.ProfileUpdateProposal, error) {

	query := "SELECT * FROM profile_update_proposals WHERE status = $1"
	args := []interface{}{string(model.StatusPending)}

	if filter.SubjectId != "" {
		args = append(args, filter.SubjectId)
		query += fmt.Sprintf(" AND subject_id = $%d", len(args))
	}
	if filter.SourceId != "" {
		args = append(args, filter.SourceId)
		query += fmt.Sprintf(" AND source_id = $%d", len(args))
	}

	switch filter.SortBy {
	case "confidence":
		query += " ORDER BY confidence DESC, created_at ASC"
	case "subject":
		query += " ORDER BY subject_id ASC, created_at ASC"
	default:
		query += " ORDER BY created_at ASC"
	}

	return queryProposals(query, args...)
}

// UpdateProposalStatus conditionally transitions a proposal out of PENDING
// and records the review decision. Zero affected rows means another caller
// won the transition; the caller must treat that as a no-op.
func (s *PostgresProposalStore) UpdateProposalStatus(proposalId string, to model.ProposalStatus,
	review model.ReviewContext) (int64, error) {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for updating status of proposal: %s", proposalId)
		logger.Debug(errorMsg, log.Error(err))
		return 0, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.UPDATE_PROPOSAL_STATUS.Code,
			Message:     errors2.UPDATE_PROPOSAL_STATUS.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	var modifiedValue interface{}
	var modifiedKind interface{}
	if review.ModifiedValue != nil {
		serialized, serr := review.ModifiedValue.Serialize()
		if serr != nil {
			errorMsg := fmt.Sprintf("Failed to serialize modified value for proposal: %s", proposalId)
			logger.Debug(errorMsg, log.Error(serr))
			return 0, errors2.NewServerError(errors2.ErrorMessage{
				Code:        errors2.MARSHAL_JSON.Code,
				Message:     errors2.MARSHAL_JSON.Message,
				Description: errorMsg,
			}, serr)
		}
		modifiedValue = serialized
		modifiedKind = string(review.ModifiedValue.Kind)
	}

	query := `UPDATE profile_update_proposals
		SET status = $2, reviewed_by = $3, reviewed_at = $4, review_notes = $5, review_rating = $6,
		    proposed_value = COALESCE($7, proposed_value), value_kind = COALESCE($8, value_kind)
		WHERE proposal_id = $1 AND status = $9`

	rowsAffected, err := dbClient.ExecuteNonQuery(query,
		proposalId, string(to), review.ReviewedBy, time.Now().UTC(), review.Notes, review.Rating,
		modifiedValue, modifiedKind, string(model.StatusPending))
	if err != nil {
		errorMsg := fmt.Sprintf("Failed on updating status of proposal: %s to %s", proposalId, to)
		logger.Debug(errorMsg, log.Error(err))
		return 0, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.UPDATE_PROPOSAL_STATUS.Code,
			Message:     errors2.UPDATE_PROPOSAL_STATUS.Message,
			Description: errorMsg,
		}, err)
	}
	return rowsAffected, nil
}

// ExpireStaleProposals bulk-transitions PENDING rows past their expiry to
// EXPIRED in one conditional statement, so it cannot race concurrent
// approvals into a double transition.
func (s *PostgresProposalStore) ExpireStaleProposals(now time.Time) (int64, error) {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := "Failed to get db client for expiring stale proposals"
		logger.Debug(errorMsg, log.Error(err))
		return 0, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.EXPIRE_PROPOSALS.Code,
			Message:     errors2.EXPIRE_PROPOSALS.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	query := `UPDATE profile_update_proposals SET status = $1
		WHERE status = $2 AND expires_at IS NOT NULL AND expires_at < $3`

	rowsAffected, err := dbClient.ExecuteNonQuery(query,
		string(model.StatusExpired), string(model.StatusPending), now)
	if err != nil {
		errorMsg := "Failed on expiring stale proposals"
		logger.Debug(errorMsg, log.Error(err))
		return 0, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.EXPIRE_PROPOSALS.Code,
			Message:     errors2.EXPIRE_PROPOSALS.Message,
			Description: errorMsg,
		}, err)
	}
	return rowsAffected, nil
}

// GetProposalStats aggregates proposal counts and review quality signals.
func (s *PostgresProposalStore) GetProposalStats() (*model.ReviewStats, error) {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := "Failed to get db client for fetching proposal stats"
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PROPOSAL_STATS.Code,
			Message:     errors2.PROPOSAL_STATS.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	stats := &model.ReviewStats{
		CountsByStatus:   map[string]int{},
		CountsByType:     map[string]int{},
		CountsByPriority: map[string]int{},
	}

	rows, err := dbClient.ExecuteQuery(
		`SELECT status, update_type, priority, COUNT(*) AS cnt FROM profile_update_proposals
		 GROUP BY status, update_type, priority`)
	if err != nil {
		errorMsg := "Failed on aggregating proposal counts"
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PROPOSAL_STATS.Code,
			Message:     errors2.PROPOSAL_STATS.Message,
			Description: errorMsg,
		}, err)
	}
	for _, row := range rows {
		count := utils.RowInt(row["cnt"])
		stats.CountsByStatus[utils.RowString(row["status"])] += count
		stats.CountsByType[utils.RowString(row["update_type"])] += count
		stats.CountsByPriority[fmt.Sprintf("%d", utils.RowInt(row["priority"]))] += count
	}

	avgRows, err := dbClient.ExecuteQuery(
		`SELECT AVG(confidence) AS avg_confidence,
		        AVG(NULLIF(review_rating, 0)) AS avg_review_rating
		 FROM profile_update_proposals`)
	if err != nil {
		errorMsg := "Failed on aggregating proposal averages"
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PROPOSAL_STATS.Code,
			Message:     errors2.PROPOSAL_STATS.Message,
			Description: errorMsg,
		}, err)
	}
	if len(avgRows) > 0 {
		stats.AvgConfidence = utils.RowFloat(avgRows[0]["avg_confidence"])
		stats.AvgReviewRating = utils.RowFloat(avgRows[0]["avg_review_rating"])
	}
	return stats, nil
}

func queryProposals(query string, args ...interface{}) ([]model.ProfileUpdateProposal, error) {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := "Failed to get db client for fetching proposals"
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.FETCH_PROPOSALS.Code,
			Message:     errors2.FETCH_PROPOSALS.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	results, err := dbClient.ExecuteQuery(query, args...)
	if err != nil {
		errorMsg := "Failed on fetching proposals"
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.FETCH_PROPOSALS.Code,
			Message:     errors2.FETCH_PROPOSALS.Message,
			Description: errorMsg,
		}, err)
	}

	proposals := make([]model.ProfileUpdateProposal, 0, len(results))
	for _, row := range results {
		proposals = append(proposals, rowToProposal(row))
	}
	return proposals, nil
}

func rowToProposal(row map[string]interface{}) model.ProfileUpdateProposal {

	kind := model.ValueKind(utils.RowString(row["value_kind"]))
	return model.ProfileUpdateProposal{
		ProposalId: utils.RowString(row["proposal_id"]),
		SubjectId:  utils.RowString(row["subject_id"]),
		SourceId:   utils.RowString(row["source_id"]),
		UpdateType: model.UpdateType(utils.RowString(row["update_type"])),
		TargetLocator: model.TargetLocator{
			Table: utils.RowString(row["target_table"]),
			Field: utils.RowString(row["target_field"]),
		},
		CurrentValue:   utils.RowString(row["current_value"]),
		ProposedValue:  model.DeserializeFieldValue(utils.RowString(row["proposed_value"]), kind),
		Reasoning:      utils.RowString(row["reasoning"]),
		Confidence:     utils.RowFloat(row["confidence"]),
		Status:         model.ProposalStatus(utils.RowString(row["status"])),
		Priority:       utils.RowInt(row["priority"]),
		ReviewedBy:     utils.RowString(row["reviewed_by"]),
		ReviewedAt:     utils.RowTime(row["reviewed_at"]),
		ReviewNotes:    utils.RowString(row["review_notes"]),
		ReviewRating:   utils.RowInt(row["review_rating"]),
		AutoApplyAfter: utils.RowTime(row["auto_apply_after"]),
		CreatedAt:      utils.RowTime(row["created_at"]),
		ExpiresAt:      utils.RowTime(row["expires_at"]),
	}
}

func nullableTime(t time.Time) interface{} {

	if t.IsZero() {
		return nil
	}
	return t
}
