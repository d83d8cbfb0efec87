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

	"github.com/wso2/profile-reconciliation-service/internal/profile/model"
	"github.com/wso2/profile-reconciliation-service/internal/system/database/provider"
	errors2 "github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	"github.com/wso2/profile-reconciliation-service/internal/system/utils"
)

// ProfileStoreInterface is the authoritative profile value store.
type ProfileStoreInterface interface {
	GetCurrentValue(subjectId, targetTable, targetField string) (string, bool, error)
	SetValue(subjectId, targetTable, targetField, value string) error
	AppendAuditEntry(entry model.AuditEntry) error
	GetAuditEntries(subjectId string) ([]model.AuditEntry, error)
}

// PostgresProfileStore is the postgres-backed profile store.
type PostgresProfileStore struct{}

func NewProfileStore() ProfileStoreInterface {

	return &PostgresProfileStore{}
}

// GetCurrentValue reads the stored value for a subject field. The second
// return value reports whether the field has a value at all.
func (s *PostgresProfileStore) GetCurrentValue(subjectId, targetTable, targetField string) (string, bool, error) {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for fetching profile value for subject: %s", subjectId)
		logger.Debug(errorMsg, log.Error(err))
		return "", false, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.FETCH_PROFILE_VALUE.Code,
			Message:     errors2.FETCH_PROFILE_VALUE.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	query := `SELECT value FROM subject_profile_values
		WHERE subject_id = $1 AND target_table = $2 AND target_field = $3`
	results, err := dbClient.ExecuteQuery(query, subjectId, targetTable, targetField)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed on fetching profile value %s.%s for subject: %s",
			targetTable, targetField, subjectId)
		logger.Debug(errorMsg, log.Error(err))
		return "", false, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.FETCH_PROFILE_VALUE.Code,
			Message:     errors2.FETCH_PROFILE_VALUE.Message,
			Description: errorMsg,
		}, err)
	}
	if len(results) == 0 {
		return "", false, nil
	}
	return utils.RowString(results[0]["value"]), true, nil
}

// SetValue writes one field value, inserting or replacing as needed. Writing
// the same value twice leaves the row identical apart from the last-modified
// timestamp, which keeps the apply path idempotent.
func (s *PostgresProfileStore) SetValue(subjectId, targetTable, targetField, value string) error {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for writing profile value for subject: %s", subjectId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.APPLY_PROFILE_VALUE.Code,
			Message:     errors2.APPLY_PROFILE_VALUE.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	query := `INSERT INTO subject_profile_values (subject_id, target_table, target_field, value, last_modified)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (subject_id, target_table, target_field)
		DO UPDATE SET value = EXCLUDED.value, last_modified = EXCLUDED.last_modified`

	_, err = dbClient.ExecuteNonQuery(query, subjectId, targetTable, targetField, value, time.Now().UTC())
	if err != nil {
		errorMsg := fmt.Sprintf("Failed on writing profile value %s.%s for subject: %s",
			targetTable, targetField, subjectId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.APPLY_PROFILE_VALUE.Code,
			Message:     errors2.APPLY_PROFILE_VALUE.Message,
			Description: errorMsg,
		}, err)
	}
	return nil
}

// AppendAuditEntry appends an immutable provenance record.
func (s *PostgresProfileStore) AppendAuditEntry(entry model.AuditEntry) error {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for appending audit entry for proposal: %s",
			entry.ProposalId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.AUDIT_APPEND.Code,
			Message:     errors2.AUDIT_APPEND.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	query := `INSERT INTO profile_update_audit
		(entry_id, proposal_id, subject_id, target_table, target_field, previous_value, new_value, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	_, err = dbClient.ExecuteNonQuery(query,
		entry.EntryId, entry.ProposalId, entry.SubjectId, entry.TargetTable, entry.TargetField,
		entry.PreviousValue, entry.NewValue, entry.ChangedBy, entry.ChangedAt)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed on appending audit entry for proposal: %s", entry.ProposalId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.AUDIT_APPEND.Code,
			Message:     errors2.AUDIT_APPEND.Message,
			Description: errorMsg,
		}, err)
	}
	return nil
}

// GetAuditEntries lists the provenance records of a subject, newest first.
func (s *PostgresProfileStore) GetAuditEntries(subjectId string) ([]model.AuditEntry, error) {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for fetching audit entries for subject: %s", subjectId)
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.AUDIT_APPEND.Code,
			Message:     errors2.AUDIT_APPEND.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	query := `SELECT * FROM profile_update_audit WHERE subject_id = $1 ORDER BY changed_at DESC`
	results, err := dbClient.ExecuteQuery(query, subjectId)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed on fetching audit entries for subject: %s", subjectId)
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.AUDIT_APPEND.Code,
			Message:     errors2.AUDIT_APPEND.Message,
			Description: errorMsg,
		}, err)
	}

	entries := make([]model.AuditEntry, 0, len(results))
	for _, row := range results {
		entries = append(entries, model.AuditEntry{
			EntryId:       utils.RowString(row["entry_id"]),
			ProposalId:    utils.RowString(row["proposal_id"]),
			SubjectId:     utils.RowString(row["subject_id"]),
			TargetTable:   utils.RowString(row["target_table"]),
			TargetField:   utils.RowString(row["target_field"]),
			PreviousValue: utils.RowString(row["previous_value"]),
			NewValue:      utils.RowString(row["new_value"]),
			ChangedBy:     utils.RowString(row["changed_by"]),
			ChangedAt:     utils.RowTime(row["changed_at"]),
		})
	}
	return entries, nil
}
