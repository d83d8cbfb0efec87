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
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	profilemodel "github.com/wso2/profile-reconciliation-service/internal/profile/model"
	profilestore "github.com/wso2/profile-reconciliation-service/internal/profile/store"
	"github.com/wso2/profile-reconciliation-service/internal/proposal/model"
	"github.com/wso2/profile-reconciliation-service/internal/proposal/store"
	"github.com/wso2/profile-reconciliation-service/internal/system/client"
	"github.com/wso2/profile-reconciliation-service/internal/system/config"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	errors2 "github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	ruleservice "github.com/wso2/profile-reconciliation-service/internal/transformation_rules/service"
)

// ReconciliationServiceInterface orchestrates the proposal life cycle:
// submission, review transitions, application, and expiry.
type ReconciliationServiceInterface interface {
	Submit(ctx context.Context, submission model.RawSubmission) (*model.SubmissionResult, error)
	Approve(ids []string, review model.ReviewContext) (*model.ApprovalResult, error)
	Reject(proposalId string, review model.ReviewContext, reason string) error
	Modify(proposalId string, review model.ReviewContext, newValue model.FieldValue) error
	BulkApprove(subjectId string, opts model.BulkApproveOptions, review model.ReviewContext) (
		*model.ApprovalResult, error)
	ExpireStale() (int64, error)
	ListPending(filter model.PendingFilter) ([]model.ReviewBatch, error)
	GetStats() (*model.ReviewStats, error)
	GetAuditTrail(subjectId string) ([]profilemodel.AuditEntry, error)
}

// ReconciliationService is the default implementation of
// ReconciliationServiceInterface.
type ReconciliationService struct {
	proposals store.ProposalStoreInterface
	rules     ruleservice.TransformationRuleServiceInterface
	profiles  profilestore.ProfileStoreInterface
	registry  *TransformationRegistry
	validator *ValidationEngine
	executor  *ApplicationExecutor
}

// GetReconciliationService creates the service with its production wiring.
// The judge is only attached when enabled in configuration.
func GetReconciliationService() ReconciliationServiceInterface {

	var judge client.JudgementClientInterface
	if config.GetPRSRuntime().Config.Judge.Enabled {
		judge = client.NewGeminiJudgementClient()
	}
	profiles := profilestore.NewProfileStore()
	return NewReconciliationService(
		store.NewProposalStore(),
		ruleservice.GetTransformationRuleService(),
		profiles,
		NewTransformationRegistry(judge),
		NewValidationEngine(judge),
		NewApplicationExecutor(profiles),
	)
}

// NewReconciliationService creates a reconciliation service from explicit
// collaborators.
func NewReconciliationService(
	proposals store.ProposalStoreInterface,
	rules ruleservice.TransformationRuleServiceInterface,
	profiles profilestore.ProfileStoreInterface,
	registry *TransformationRegistry,
	validator *ValidationEngine,
	executor *ApplicationExecutor,
) ReconciliationServiceInterface {

	return &ReconciliationService{
		proposals: proposals,
		rules:     rules,
		profiles:  profiles,
		registry:  registry,
		validator: validator,
		executor:  executor,
	}
}

// Submit runs the applicable rules over each answer, validates the resulting
// drafts, and persists them. Rule failures, validation rejections, and persist
// failures are isolated: each skips only its own drafts and is reported in
// SkippedRules. Drafts whose rule waives approval are applied immediately and
// persisted as AUTO_APPLIED.
func (s *ReconciliationService) Submit(ctx context.Context, submission model.RawSubmission) (
	*model.SubmissionResult, error) {

	logger := log.GetLogger()
	if submission.SubjectId == "" || submission.SourceId == "" {
		return nil, errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.INVALID_SUBMISSION.Code,
			Message:     errors2.INVALID_SUBMISSION.Message,
			Description: "subjectId and sourceId are required.",
		}, http.StatusBadRequest)
	}

	updateType := updateTypeForSource(submission.SourceType)
	result := &model.SubmissionResult{}

	for questionId, rawAnswer := range submission.Answers {
		rules, err := s.rules.GetTransformationRulesByQuestion(questionId)
		if err != nil {
			logger.Warn("Failed to resolve rules for question; skipping.",
				log.String("questionId", questionId), log.Error(err))
			result.SkippedRules = append(result.SkippedRules, questionId)
			continue
		}

		for _, rule := range rules {
			drafts, err := s.registry.Transform(ctx, rule, rawAnswer, submission.SubjectId,
				submission.SourceId, updateType)
			if err != nil {
				// Only this rule's batch is lost; the submission proceeds.
				logger.Warn("Transformation failed for rule; skipping its drafts.",
					log.String("ruleId", rule.RuleId), log.Error(err))
				result.SkippedRules = append(result.SkippedRules, rule.RuleId)
				continue
			}

			for _, draft := range drafts {
				proposal, err := s.persistDraft(ctx, draft, submission.SourceType)
				if err != nil {
					// Only this rule's draft is lost; the submission proceeds.
					logger.Warn("Failed to persist draft; skipping its rule.",
						log.String("ruleId", rule.RuleId), log.Error(err))
					result.SkippedRules = append(result.SkippedRules, rule.RuleId)
					continue
				}
				if proposal == nil {
					// Validation vetoed the draft.
					result.SkippedRules = append(result.SkippedRules, rule.RuleId)
					continue
				}
				if proposal.Status == model.StatusAutoApplied {
					result.AutoApplied++
				}
				result.Proposals = append(result.Proposals, *proposal)
			}
		}
	}

	logger.Info("Submission processed.", log.String("subjectId", submission.SubjectId),
		log.String("sourceId", submission.SourceId), log.Int("proposals", len(result.Proposals)),
		log.Int("autoApplied", result.AutoApplied))
	logger.Audit(log.AuditEvent{
		ActionID:      log.ActionSubmitProposals,
		InitiatorID:   submission.SourceId,
		InitiatorType: log.InitiatorTypeSystem,
		TargetType:    log.TargetTypeProposal,
		TargetID:      submission.SubjectId,
	})
	return result, nil
}

// persistDraft folds the validation verdict into the draft and inserts it.
// A draft the validator rejects is dropped, reported as a nil proposal.
// Auto-apply candidates are inserted PENDING first, applied, then moved to
// AUTO_APPLIED through the conditional transition; a crash mid-way leaves an
// applied-but-PENDING row, which is safe to re-approve since apply is
// idempotent.
func (s *ReconciliationService) persistDraft(ctx context.Context, draft model.ProposalDraft,
	sourceType string) (*model.ProfileUpdateProposal, error) {

	logger := log.GetLogger()

	currentValue, _, err := s.profiles.GetCurrentValue(draft.SubjectId, draft.TargetLocator.Table,
		draft.TargetLocator.Field)
	if err != nil {
		logger.Warn("Could not read current value for validation; proceeding without snapshot.",
			log.String("subjectId", draft.SubjectId), log.Error(err))
		currentValue = ""
	}

	verdict := s.validator.Validate(ctx, draft, sourceType, currentValue)
	if !verdict.IsValid {
		// Validation is advisory on the submission as a whole: an implausible
		// draft is dropped, never the sibling drafts already persisted.
		logger.Warn("Draft failed validation; dropped.",
			log.String("subjectId", draft.SubjectId),
			log.String("target", draft.TargetLocator.String()),
			log.String("reason", verdict.Reasoning))
		return nil, nil
	}

	reasoning := draft.Reasoning
	if verdict.Reasoning != "" {
		if reasoning != "" {
			reasoning += " "
		}
		reasoning += verdict.Reasoning
	}

	retention := config.GetPRSRuntime().Config.Sweeper.RetentionDays
	if retention <= 0 {
		retention = constants.DefaultRetentionDays
	}
	now := time.Now().UTC()
	proposal := model.ProfileUpdateProposal{
		ProposalId:    uuid.New().String(),
		SubjectId:     draft.SubjectId,
		SourceId:      draft.SourceId,
		UpdateType:    draft.UpdateType,
		TargetLocator: draft.TargetLocator,
		CurrentValue:  currentValue,
		ProposedValue: draft.ProposedValue,
		Reasoning:     reasoning,
		Confidence:    combineConfidence(draft.Confidence, verdict.Confidence),
		Status:        model.StatusPending,
		Priority:      draft.Priority,
		Conflicts:     verdict.Conflicts,
		CreatedAt:     now,
		ExpiresAt:     now.AddDate(0, 0, retention),
	}

	if err := s.proposals.InsertProposal(proposal); err != nil {
		return nil, err
	}

	if !draft.RequiresApproval {
		if err := s.executor.Apply(proposal.SubjectId, proposal.TargetLocator, proposal.ProposedValue,
			proposal.ProposalId, "system"); err != nil {
			// Leave the proposal PENDING for manual review.
			logger.Warn("Auto-apply failed; proposal left pending.",
				log.String("proposalId", proposal.ProposalId), log.Error(err))
			return &proposal, nil
		}
		rowsAffected, err := s.proposals.UpdateProposalStatus(proposal.ProposalId, model.StatusAutoApplied,
			model.ReviewContext{ReviewedBy: "system"})
		if err != nil {
			logger.Warn("Failed to mark proposal auto-applied; value already written.",
				log.String("proposalId", proposal.ProposalId), log.Error(err))
			return &proposal, nil
		}
		if rowsAffected > 0 {
			proposal.Status = model.StatusAutoApplied
			log.GetLogger().Audit(log.AuditEvent{
				ActionID:      log.ActionAutoApply,
				InitiatorType: log.InitiatorTypeSystem,
				TargetType:    log.TargetTypeProposal,
				TargetID:      proposal.ProposalId,
			})
		}
	}
	return &proposal, nil
}

// Approve applies and transitions each PENDING proposal in sorted id order.
// A non-PENDING id is skipped, which makes batch retries safe. Proposals are
// processed independently: a failed apply reports that id and continues.
func (s *ReconciliationService) Approve(ids []string, review model.ReviewContext) (
	*model.ApprovalResult, error) {

	logger := log.GetLogger()
	if review.ReviewedBy == "" {
		return nil, errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.REVIEWER_REQUIRED.Code,
			Message:     errors2.REVIEWER_REQUIRED.Message,
			Description: errors2.REVIEWER_REQUIRED.Description,
		}, http.StatusBadRequest)
	}

	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	result := &model.ApprovalResult{}
	for _, id := range sorted {
		proposal, err := s.proposals.GetProposal(id)
		if err != nil {
			return nil, err
		}
		if proposal == nil || proposal.Status != model.StatusPending {
			result.SkippedIds = append(result.SkippedIds, id)
			continue
		}

		// Apply before flipping status: a crash between the two leaves an
		// applied-but-PENDING row, safe to re-approve.
		if err := s.executor.Apply(proposal.SubjectId, proposal.TargetLocator, proposal.ProposedValue,
			proposal.ProposalId, review.ReviewedBy); err != nil {
			logger.Error("Apply failed during approval; proposal remains pending.",
				log.String("proposalId", id), log.Error(err))
			result.FailedIds = append(result.FailedIds, id)
			continue
		}

		rowsAffected, err := s.proposals.UpdateProposalStatus(id, model.StatusApproved, review)
		if err != nil {
			result.FailedIds = append(result.FailedIds, id)
			continue
		}
		if rowsAffected == 0 {
			// A concurrent caller finished the transition first.
			result.SkippedIds = append(result.SkippedIds, id)
			continue
		}

		result.AppliedCount++
		result.UpdatedFields = append(result.UpdatedFields, proposal.TargetLocator.String())
		logger.Audit(log.AuditEvent{
			ActionID:      log.ActionApproveProposal,
			InitiatorID:   review.ReviewedBy,
			InitiatorType: log.InitiatorTypeReviewer,
			TargetType:    log.TargetTypeProposal,
			TargetID:      id,
		})
	}

	logger.Info("Approval batch processed.", log.Int("applied", result.AppliedCount),
		log.Int("skipped", len(result.SkippedIds)), log.Int("failed", len(result.FailedIds)))
	return result, nil
}

// Reject transitions one PENDING proposal to REJECTED without touching the
// profile store. The reason is mandatory.
func (s *ReconciliationService) Reject(proposalId string, review model.ReviewContext, reason string) error {

	if review.ReviewedBy == "" {
		return errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.REVIEWER_REQUIRED.Code,
			Message:     errors2.REVIEWER_REQUIRED.Message,
			Description: errors2.REVIEWER_REQUIRED.Description,
		}, http.StatusBadRequest)
	}
	if strings.TrimSpace(reason) == "" {
		return errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.REVIEW_REASON_REQUIRED.Code,
			Message:     errors2.REVIEW_REASON_REQUIRED.Message,
			Description: errors2.REVIEW_REASON_REQUIRED.Description,
		}, http.StatusBadRequest)
	}

	review.Notes = reason
	rowsAffected, err := s.proposals.UpdateProposalStatus(proposalId, model.StatusRejected, review)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return s.notPendingError(proposalId)
	}

	log.GetLogger().Audit(log.AuditEvent{
		ActionID:      log.ActionRejectProposal,
		InitiatorID:   review.ReviewedBy,
		InitiatorType: log.InitiatorTypeReviewer,
		TargetType:    log.TargetTypeProposal,
		TargetID:      proposalId,
	})
	return nil
}

// Modify applies the reviewer-edited value in place of the original proposal
// and transitions PENDING to MODIFIED, storing the edited value on the row.
func (s *ReconciliationService) Modify(proposalId string, review model.ReviewContext,
	newValue model.FieldValue) error {

	if review.ReviewedBy == "" {
		return errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.REVIEWER_REQUIRED.Code,
			Message:     errors2.REVIEWER_REQUIRED.Message,
			Description: errors2.REVIEWER_REQUIRED.Description,
		}, http.StatusBadRequest)
	}

	proposal, err := s.proposals.GetProposal(proposalId)
	if err != nil {
		return err
	}
	if proposal == nil {
		return errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.PROPOSAL_NOT_FOUND.Code,
			Message:     errors2.PROPOSAL_NOT_FOUND.Message,
			Description: fmt.Sprintf("No proposal found with id: %s", proposalId),
		}, http.StatusNotFound)
	}
	if proposal.Status != model.StatusPending {
		return s.notPendingError(proposalId)
	}

	if err := s.executor.Apply(proposal.SubjectId, proposal.TargetLocator, newValue, proposalId,
		review.ReviewedBy); err != nil {
		return err
	}

	review.ModifiedValue = &newValue
	rowsAffected, err := s.proposals.UpdateProposalStatus(proposalId, model.StatusModified, review)
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		// Lost the transition race after the apply; the write is idempotent
		// so nothing needs undoing.
		return s.notPendingError(proposalId)
	}

	log.GetLogger().Audit(log.AuditEvent{
		ActionID:      log.ActionModifyProposal,
		InitiatorID:   review.ReviewedBy,
		InitiatorType: log.InitiatorTypeReviewer,
		TargetType:    log.TargetTypeProposal,
		TargetID:      proposalId,
	})
	return nil
}

// BulkApprove resolves the subject's PENDING candidates, optionally scoped to
// one submission and minus excluded ids, then delegates to Approve.
func (s *ReconciliationService) BulkApprove(subjectId string, opts model.BulkApproveOptions,
	review model.ReviewContext) (*model.ApprovalResult, error) {

	if subjectId == "" {
		return nil, errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.BAD_REQUEST.Code,
			Message:     errors2.BAD_REQUEST.Message,
			Description: "subjectId is required for bulk approval.",
		}, http.StatusBadRequest)
	}

	pending, err := s.proposals.GetPendingProposals(model.PendingFilter{
		SubjectId: subjectId,
		SourceId:  opts.SourceId,
	})
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(opts.ExcludeIds))
	for _, id := range opts.ExcludeIds {
		excluded[id] = struct{}{}
	}

	ids := make([]string, 0, len(pending))
	for _, proposal := range pending {
		if _, skip := excluded[proposal.ProposalId]; skip {
			continue
		}
		ids = append(ids, proposal.ProposalId)
	}

	if opts.Notes != "" {
		review.Notes = opts.Notes
	}
	return s.Approve(ids, review)
}

// ExpireStale transitions all PENDING proposals past their expiry to EXPIRED
// and reports how many rows moved.
func (s *ReconciliationService) ExpireStale() (int64, error) {

	count, err := s.proposals.ExpireStaleProposals(time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if count > 0 {
		logger := log.GetLogger()
		logger.Info("Expired stale proposals.", log.Int64("count", count))
		logger.Audit(log.AuditEvent{
			ActionID:      log.ActionExpireProposals,
			InitiatorType: log.InitiatorTypeSystem,
			TargetType:    log.TargetTypeProposal,
		})
	}
	return count, nil
}

// ListPending groups PENDING proposals into review batches by subject and
// source, annotates each proposal's conflict against the stored profile
// value, and annotates mutual conflicts between pending proposals that
// target the same field.
func (s *ReconciliationService) ListPending(filter model.PendingFilter) ([]model.ReviewBatch, error) {

	pending, err := s.proposals.GetPendingProposals(filter)
	if err != nil {
		return nil, err
	}

	s.annotateStoredConflicts(pending)
	s.annotateMutualConflicts(pending)

	batchIndex := map[string]int{}
	batches := []model.ReviewBatch{}
	for _, proposal := range pending {
		key := proposal.SubjectId + "|" + proposal.SourceId
		idx, exists := batchIndex[key]
		if !exists {
			batches = append(batches, model.ReviewBatch{
				SubjectId: proposal.SubjectId,
				SourceId:  proposal.SourceId,
			})
			idx = len(batches) - 1
			batchIndex[key] = idx
		}
		batches[idx].Proposals = append(batches[idx].Proposals, proposal)
	}
	return batches, nil
}

// annotateStoredConflicts recomputes each pending proposal's conflict against
// the live profile value. Conflicts are not persisted with the proposal, and
// the stored value may have moved since submission.
func (s *ReconciliationService) annotateStoredConflicts(pending []model.ProfileUpdateProposal) {

	for i := range pending {
		currentValue, found, err := s.profiles.GetCurrentValue(pending[i].SubjectId,
			pending[i].TargetLocator.Table, pending[i].TargetLocator.Field)
		if err != nil || !found {
			currentValue = pending[i].CurrentValue
		}
		proposed, serr := pending[i].ProposedValue.Serialize()
		if serr != nil {
			continue
		}
		pending[i].Conflicts = append(pending[i].Conflicts,
			s.validator.DetectConflicts(pending[i].TargetLocator, proposed, currentValue)...)
	}
}

// annotateMutualConflicts marks every pair of pending proposals that target
// the same subject and field with a conflict referencing the other proposal.
func (s *ReconciliationService) annotateMutualConflicts(pending []model.ProfileUpdateProposal) {

	byTarget := map[string][]int{}
	for i, proposal := range pending {
		key := proposal.SubjectId + "|" + proposal.TargetLocator.String()
		byTarget[key] = append(byTarget[key], i)
	}

	for _, indexes := range byTarget {
		if len(indexes) < 2 {
			continue
		}
		for _, i := range indexes {
			mine, err := pending[i].ProposedValue.Serialize()
			if err != nil {
				continue
			}
			for _, j := range indexes {
				if i == j {
					continue
				}
				theirs, err := pending[j].ProposedValue.Serialize()
				if err != nil {
					continue
				}
				conflicts := s.validator.DetectConflicts(pending[i].TargetLocator, mine, theirs)
				if len(conflicts) == 0 {
					// Equal values still compete for the same field.
					conflicts = []model.DataConflict{{
						TargetLocator:        pending[i].TargetLocator,
						ExistingValue:        theirs,
						NewValue:             mine,
						Severity:             "low",
						ResolutionSuggestion: "Duplicate pending proposals for the same field.",
					}}
				}
				for k := range conflicts {
					conflicts[k].ConflictingProposalId = pending[j].ProposalId
				}
				pending[i].Conflicts = append(pending[i].Conflicts, conflicts...)
			}
		}
	}
}

// GetStats returns aggregate proposal counts and review quality signals.
func (s *ReconciliationService) GetStats() (*model.ReviewStats, error) {

	return s.proposals.GetProposalStats()
}

// GetAuditTrail returns the subject's applied-change provenance, newest first.
func (s *ReconciliationService) GetAuditTrail(subjectId string) ([]profilemodel.AuditEntry, error) {

	if subjectId == "" {
		return nil, errors2.NewClientError(errors2.ErrorMessage{
			Code:        errors2.BAD_REQUEST.Code,
			Message:     errors2.BAD_REQUEST.Message,
			Description: "subjectId is required for the audit trail.",
		}, http.StatusBadRequest)
	}
	return s.profiles.GetAuditEntries(subjectId)
}

func (s *ReconciliationService) notPendingError(proposalId string) error {

	return errors2.NewClientError(errors2.ErrorMessage{
		Code:        errors2.PROPOSAL_NOT_PENDING.Code,
		Message:     errors2.PROPOSAL_NOT_PENDING.Message,
		Description: fmt.Sprintf("Proposal %s is not pending review.", proposalId),
	}, http.StatusConflict)
}

func combineConfidence(transformConfidence, validationConfidence float64) float64 {

	if validationConfidence == 0 {
		return transformConfidence
	}
	if transformConfidence < validationConfidence {
		return transformConfidence
	}
	return validationConfidence
}

func updateTypeForSource(sourceType string) model.UpdateType {

	switch sourceType {
	case "self_report":
		return model.UpdateTypeSelfReported
	case "ai_extraction", "counseling_note":
		return model.UpdateTypeAISuggested
	default:
		return model.UpdateTypeManual
	}
}
