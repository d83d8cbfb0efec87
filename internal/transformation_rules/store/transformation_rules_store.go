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
	"encoding/json"
	"fmt"

	"github.com/wso2/profile-reconciliation-service/internal/system/database/provider"
	errors2 "github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	"github.com/wso2/profile-reconciliation-service/internal/system/utils"
	"github.com/wso2/profile-reconciliation-service/internal/transformation_rules/model"
)

// TransformationRuleStoreInterface defines persistence for transformation
// rules.
type TransformationRuleStoreInterface interface {
	AddRule(rule model.TransformationRule) error
	GetRule(ruleId string) (*model.TransformationRule, error)
	GetRules() ([]model.TransformationRule, error)
	GetRulesByQuestion(questionId string) ([]model.TransformationRule, error)
	UpdateRule(rule model.TransformationRule) error
	DeleteRule(ruleId string) error
}

// PostgresTransformationRuleStore is the postgres-backed rule store.
type PostgresTransformationRuleStore struct{}

func NewTransformationRuleStore() TransformationRuleStoreInterface {

	return &PostgresTransformationRuleStore{}
}

// AddRule inserts a new transformation rule.
func (s *PostgresTransformationRuleStore) AddRule(rule model.TransformationRule) error {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for adding transformation rule for question: %s",
			rule.QuestionId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.ADD_TRANSFORMATION_RULE.Code,
			Message:     errors2.ADD_TRANSFORMATION_RULE.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	configJSON, err := marshalStrategyConfig(rule.StrategyConfig)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to serialize strategy config for question: %s", rule.QuestionId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.MARSHAL_JSON.Code,
			Message:     errors2.MARSHAL_JSON.Message,
			Description: errorMsg,
		}, err)
	}

	query := `INSERT INTO transformation_rules
		(rule_id, question_id, target_table, target_field, strategy, strategy_config, requires_approval, priority, conflict_policy, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	_, err = dbClient.ExecuteNonQuery(query,
		rule.RuleId, rule.QuestionId, rule.TargetTable, rule.TargetField, rule.Strategy, configJSON,
		rule.RequiresApproval, rule.Priority, rule.ConflictPolicy, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed on inserting transformation rule for question: %s", rule.QuestionId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.ADD_TRANSFORMATION_RULE.Code,
			Message:     errors2.ADD_TRANSFORMATION_RULE.Message,
			Description: errorMsg,
		}, err)
	}
	return nil
}

// GetRule fetches one rule by id. Returns nil when the rule does not exist.
func (s *PostgresTransformationRuleStore) GetRule(ruleId string) (*model.TransformationRule, error) {

	rows, err := queryRules("SELECT * FROM transformation_rules WHERE rule_id = $1", ruleId)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// GetRules fetches all rules ordered by priority.
func (s *PostgresTransformationRuleStore) GetRules() ([]model.TransformationRule, error) {

	return queryRules("SELECT * FROM transformation_rules ORDER BY priority DESC, created_at ASC")
}

// GetRulesByQuestion fetches the rules configured for a question, highest
// priority first.
func (s *PostgresTransformationRuleStore) GetRulesByQuestion(questionId string) ([]model.TransformationRule, error) {

	return queryRules(
		"SELECT * FROM transformation_rules WHERE question_id = $1 ORDER BY priority DESC, created_at ASC",
		questionId)
}

// UpdateRule replaces the mutable fields of an existing rule.
func (s *PostgresTransformationRuleStore) UpdateRule(rule model.TransformationRule) error {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for updating transformation rule: %s", rule.RuleId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.UPDATE_TRANSFORMATION_RULE.Code,
			Message:     errors2.UPDATE_TRANSFORMATION_RULE.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	configJSON, err := marshalStrategyConfig(rule.StrategyConfig)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to serialize strategy config for rule: %s", rule.RuleId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.MARSHAL_JSON.Code,
			Message:     errors2.MARSHAL_JSON.Message,
			Description: errorMsg,
		}, err)
	}

	query := `UPDATE transformation_rules SET question_id=$2, target_table=$3, target_field=$4, strategy=$5,
		strategy_config=$6, requires_approval=$7, priority=$8, conflict_policy=$9, updated_at=$10
		WHERE rule_id=$1`

	rowsAffected, err := dbClient.ExecuteNonQuery(query,
		rule.RuleId, rule.QuestionId, rule.TargetTable, rule.TargetField, rule.Strategy, configJSON,
		rule.RequiresApproval, rule.Priority, rule.ConflictPolicy, rule.UpdatedAt)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed on updating transformation rule: %s", rule.RuleId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.UPDATE_TRANSFORMATION_RULE.Code,
			Message:     errors2.UPDATE_TRANSFORMATION_RULE.Message,
			Description: errorMsg,
		}, err)
	}
	if rowsAffected == 0 {
		return errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.TRANSFORMATION_RULE_NOT_FOUND.Code,
			Message:     errors2.TRANSFORMATION_RULE_NOT_FOUND.Message,
			Description: fmt.Sprintf("No transformation rule found with id: %s", rule.RuleId),
		}, 404)
	}
	return nil
}

// DeleteRule removes a rule by id.
func (s *PostgresTransformationRuleStore) DeleteRule(ruleId string) error {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := fmt.Sprintf("Failed to get db client for deleting transformation rule: %s", ruleId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.DELETE_TRANSFORMATION_RULE.Code,
			Message:     errors2.DELETE_TRANSFORMATION_RULE.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	_, err = dbClient.ExecuteNonQuery("DELETE FROM transformation_rules WHERE rule_id = $1", ruleId)
	if err != nil {
		errorMsg := fmt.Sprintf("Failed on deleting transformation rule: %s", ruleId)
		logger.Debug(errorMsg, log.Error(err))
		return errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.DELETE_TRANSFORMATION_RULE.Code,
			Message:     errors2.DELETE_TRANSFORMATION_RULE.Message,
			Description: errorMsg,
		}, err)
	}
	return nil
}

func queryRules(query string, args ...interface{}) ([]model.TransformationRule, error) {

	dbClient, err := provider.NewDBProvider().GetDBClient()
	logger := log.GetLogger()
	if err != nil {
		errorMsg := "Failed to get db client for fetching transformation rules"
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.FETCH_TRANSFORMATION_RULES.Code,
			Message:     errors2.FETCH_TRANSFORMATION_RULES.Message,
			Description: errorMsg,
		}, err)
	}
	defer dbClient.Close()

	results, err := dbClient.ExecuteQuery(query, args...)
	if err != nil {
		errorMsg := "Failed on fetching transformation rules"
		logger.Debug(errorMsg, log.Error(err))
		return nil, errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.FETCH_TRANSFORMATION_RULES.Code,
			Message:     errors2.FETCH_TRANSFORMATION_RULES.Message,
			Description: errorMsg,
		}, err)
	}

	rules := make([]model.TransformationRule, 0, len(results))
	for _, row := range results {
		rules = append(rules, rowToRule(row))
	}
	return rules, nil
}

func rowToRule(row map[string]interface{}) model.TransformationRule {

	rule := model.TransformationRule{
		RuleId:           utils.RowString(row["rule_id"]),
		QuestionId:       utils.RowString(row["question_id"]),
		TargetTable:      utils.RowString(row["target_table"]),
		TargetField:      utils.RowString(row["target_field"]),
		Strategy:         utils.RowString(row["strategy"]),
		RequiresApproval: utils.RowBool(row["requires_approval"]),
		Priority:         utils.RowInt(row["priority"]),
		ConflictPolicy:   utils.RowString(row["conflict_policy"]),
		CreatedAt:        utils.RowTime(row["created_at"]),
		UpdatedAt:        utils.RowTime(row["updated_at"]),
	}

	if raw := utils.RowString(row["strategy_config"]); raw != "" {
		var cfg map[string]interface{}
		if err := json.Unmarshal([]byte(raw), &cfg); err == nil {
			rule.StrategyConfig = cfg
		}
	}
	return rule
}

func marshalStrategyConfig(cfg map[string]interface{}) (string, error) {

	if cfg == nil {
		return "{}", nil
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
