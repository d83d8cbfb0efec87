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

package service

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wso2/profile-reconciliation-service/internal/system/cache"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	errors2 "github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	"github.com/wso2/profile-reconciliation-service/internal/transformation_rules/model"
	"github.com/wso2/profile-reconciliation-service/internal/transformation_rules/store"
)

// TransformationRuleServiceInterface manages transformation rule
// configuration.
type TransformationRuleServiceInterface interface {
	AddTransformationRule(rule model.TransformationRule) (*model.TransformationRule, error)
	GetTransformationRule(ruleId string) (*model.TransformationRule, error)
	GetTransformationRules() ([]model.TransformationRule, error)
	GetTransformationRulesByQuestion(questionId string) ([]model.TransformationRule, error)
	UpdateTransformationRule(ruleId string, rule model.TransformationRule) (*model.TransformationRule, error)
	DeleteTransformationRule(ruleId string) error
}

// TransformationRuleService is the default implementation of
// TransformationRuleServiceInterface.
type TransformationRuleService struct {
	store     store.TransformationRuleStoreInterface
	ruleCache *cache.Cache
}

// GetTransformationRuleService creates a rule service backed by the postgres
// store.
func GetTransformationRuleService() TransformationRuleServiceInterface {

	return NewTransformationRuleService(store.NewTransformationRuleStore())
}

// NewTransformationRuleService creates a rule service with the given store.
func NewTransformationRuleService(ruleStore store.TransformationRuleStoreInterface) TransformationRuleServiceInterface {

	return &TransformationRuleService{
		store:     ruleStore,
		ruleCache: cache.NewCache(5 * time.Minute),
	}
}

// AddTransformationRule validates and persists a new rule.
func (s *TransformationRuleService) AddTransformationRule(rule model.TransformationRule) (
	*model.TransformationRule, error) {

	if err := validateRule(&rule); err != nil {
		return nil, err
	}

	rule.RuleId = uuid.New().String()
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.store.AddRule(rule); err != nil {
		return nil, err
	}
	s.ruleCache.Delete(questionCacheKey(rule.QuestionId))

	logger := log.GetLogger()
	logger.Info("Transformation rule added.", log.String("ruleId", rule.RuleId),
		log.String("questionId", rule.QuestionId), log.String("strategy", rule.Strategy))
	logger.Audit(log.AuditEvent{
		ActionID:      log.ActionAddTransformationRule,
		InitiatorType: log.InitiatorTypeAdmin,
		TargetType:    log.TargetTypeTransformationRule,
		TargetID:      rule.RuleId,
	})
	return &rule, nil
}

// GetTransformationRule fetches one rule by id.
func (s *TransformationRuleService) GetTransformationRule(ruleId string) (*model.TransformationRule, error) {

	rule, err := s.store.GetRule(ruleId)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		return nil, ruleNotFoundError(ruleId)
	}
	return rule, nil
}

// GetTransformationRules lists all configured rules.
func (s *TransformationRuleService) GetTransformationRules() ([]model.TransformationRule, error) {

	return s.store.GetRules()
}

// GetTransformationRulesByQuestion fetches the rules for a question, served
// from cache when possible. Submissions resolve rules through this path.
func (s *TransformationRuleService) GetTransformationRulesByQuestion(questionId string) (
	[]model.TransformationRule, error) {

	cacheKey := questionCacheKey(questionId)
	if cached, found := s.ruleCache.Get(cacheKey); found {
		if rules, ok := cached.([]model.TransformationRule); ok {
			return rules, nil
		}
	}

	rules, err := s.store.GetRulesByQuestion(questionId)
	if err != nil {
		return nil, err
	}
	s.ruleCache.Set(cacheKey, rules)
	return rules, nil
}

// UpdateTransformationRule validates and replaces an existing rule.
func (s *TransformationRuleService) UpdateTransformationRule(ruleId string, rule model.TransformationRule) (
	*model.TransformationRule, error) {

	existing, err := s.store.GetRule(ruleId)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ruleNotFoundError(ruleId)
	}

	if err := validateRule(&rule); err != nil {
		return nil, err
	}

	rule.RuleId = ruleId
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now().UTC()

	if err := s.store.UpdateRule(rule); err != nil {
		return nil, err
	}
	s.ruleCache.Delete(questionCacheKey(existing.QuestionId))
	s.ruleCache.Delete(questionCacheKey(rule.QuestionId))

	logger := log.GetLogger()
	logger.Audit(log.AuditEvent{
		ActionID:      log.ActionUpdateTransformationRule,
		InitiatorType: log.InitiatorTypeAdmin,
		TargetType:    log.TargetTypeTransformationRule,
		TargetID:      ruleId,
	})
	return &rule, nil
}

// DeleteTransformationRule removes a rule by id.
func (s *TransformationRuleService) DeleteTransformationRule(ruleId string) error {

	existing, err := s.store.GetRule(ruleId)
	if err != nil {
		return err
	}
	if existing == nil {
		// Deleting an absent rule is a no-op.
		return nil
	}

	if err := s.store.DeleteRule(ruleId); err != nil {
		return err
	}
	s.ruleCache.Delete(questionCacheKey(existing.QuestionId))

	logger := log.GetLogger()
	logger.Audit(log.AuditEvent{
		ActionID:      log.ActionDeleteTransformationRule,
		InitiatorType: log.InitiatorTypeAdmin,
		TargetType:    log.TargetTypeTransformationRule,
		TargetID:      ruleId,
	})
	return nil
}

func validateRule(rule *model.TransformationRule) error {

	if rule.QuestionId == "" {
		return ruleValidationError("questionId is required.")
	}
	if rule.TargetTable == "" || rule.TargetField == "" {
		return ruleValidationError("targetTable and targetField are required.")
	}
	if _, ok := constants.KnownProfileTables[rule.TargetTable]; !ok {
		return ruleValidationError(fmt.Sprintf("Unknown target table: %s", rule.TargetTable))
	}
	if _, ok := constants.AllowedStrategies[rule.Strategy]; !ok {
		return ruleValidationError(fmt.Sprintf("Unknown strategy: %s", rule.Strategy))
	}
	if rule.ConflictPolicy == "" {
		rule.ConflictPolicy = constants.ConflictPolicyManualReview
	}
	if _, ok := constants.AllowedConflictPolicies[rule.ConflictPolicy]; !ok {
		return ruleValidationError(fmt.Sprintf("Unknown conflict resolution policy: %s", rule.ConflictPolicy))
	}
	return nil
}

func ruleValidationError(description string) error {

	return errors2.NewClientError(errors2.ErrorMessage{
		Code:        errors2.TRANSFORMATION_RULE_VALIDATION.Code,
		Message:     errors2.TRANSFORMATION_RULE_VALIDATION.Message,
		Description: description,
	}, http.StatusBadRequest)
}

func ruleNotFoundError(ruleId string) error {

	return errors2.NewClientError(errors2.ErrorMessage{
		Code:        errors2.TRANSFORMATION_RULE_NOT_FOUND.Code,
		Message:     errors2.TRANSFORMATION_RULE_NOT_FOUND.Message,
		Description: fmt.Sprintf("No transformation rule found with id: %s", ruleId),
	}, http.StatusNotFound)
}

func questionCacheKey(questionId string) string {
	return "rules:question:" + questionId
}
