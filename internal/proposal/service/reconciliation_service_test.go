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
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	profilemodel "github.com/wso2/profile-reconciliation-service/internal/profile/model"
	"github.com/wso2/profile-reconciliation-service/internal/proposal/model"
	"github.com/wso2/profile-reconciliation-service/internal/system/config"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
	rulemodel "github.com/wso2/profile-reconciliation-service/internal/transformation_rules/model"
)

func TestMain(m *testing.M) {

	if err := log.Init("error"); err != nil {
		fmt.Println("failed to initialize logger:", err)
		os.Exit(1)
	}
	_ = config.InitializePRSRuntime(".", &config.Config{})
	os.Exit(m.Run())
}

// memProposalStore is an in-memory stand-in for the postgres proposal store.
// UpdateProposalStatus preserves the conditional-transition contract: only a
// PENDING row moves, and the row count reports whether it did.
type memProposalStore struct {
	order     []string
	proposals map[string]model.ProfileUpdateProposal
}

func newMemProposalStore() *memProposalStore {

	return &memProposalStore{proposals: map[string]model.ProfileUpdateProposal{}}
}

func (s *memProposalStore) InsertProposal(proposal model.ProfileUpdateProposal) error {

	// Conflicts have no column in the proposals table; they are recomputed
	// at review time, so the fake drops them like the postgres store does.
	proposal.Conflicts = nil
	s.order = append(s.order, proposal.ProposalId)
	s.proposals[proposal.ProposalId] = proposal
	return nil
}

func (s *memProposalStore) GetProposal(proposalId string) (*model.ProfileUpdateProposal, error) {

	proposal, ok := s.proposals[proposalId]
	if !ok {
		return nil, nil
	}
	return &proposal, nil
}

func (s *memProposalStore) GetPendingProposals(filter model.PendingFilter) (
	[]model.ProfileUpdateProposal, error) {

	var matched []model.ProfileUpdateProposal
	for _, id := range s.order {
		proposal := s.proposals[id]
		if proposal.Status != model.StatusPending {
			continue
		}
		if filter.SubjectId != "" && proposal.SubjectId != filter.SubjectId {
			continue
		}
		if filter.SourceId != "" && proposal.SourceId != filter.SourceId {
			continue
		}
		matched = append(matched, proposal)
	}
	return matched, nil
}

func (s *memProposalStore) UpdateProposalStatus(proposalId string, to model.ProposalStatus,
	review model.ReviewContext) (int64, error) {

	proposal, ok := s.proposals[proposalId]
	if !ok || proposal.Status != model.StatusPending {
		return 0, nil
	}
	proposal.Status = to
	proposal.ReviewedBy = review.ReviewedBy
	proposal.ReviewedAt = time.Now().UTC()
	proposal.ReviewNotes = review.Notes
	proposal.ReviewRating = review.Rating
	if review.ModifiedValue != nil {
		proposal.ProposedValue = *review.ModifiedValue
	}
	s.proposals[proposalId] = proposal
	return 1, nil
}

func (s *memProposalStore) ExpireStaleProposals(now time.Time) (int64, error) {

	var count int64
	for id, proposal := range s.proposals {
		if proposal.Status == model.StatusPending && !proposal.ExpiresAt.IsZero() &&
			proposal.ExpiresAt.Before(now) {
			proposal.Status = model.StatusExpired
			s.proposals[id] = proposal
			count++
		}
	}
	return count, nil
}

func (s *memProposalStore) GetProposalStats() (*model.ReviewStats, error) {

	stats := &model.ReviewStats{
		CountsByStatus:   map[string]int{},
		CountsByType:     map[string]int{},
		CountsByPriority: map[string]int{},
	}
	for _, proposal := range s.proposals {
		stats.CountsByStatus[string(proposal.Status)]++
		stats.CountsByType[string(proposal.UpdateType)]++
	}
	return stats, nil
}

// memProfileStore is an in-memory profile store with a recorded audit trail.
type memProfileStore struct {
	values map[string]string
	audit  []profilemodel.AuditEntry
}

func newMemProfileStore() *memProfileStore {

	return &memProfileStore{values: map[string]string{}}
}

func profileKey(subjectId, targetTable, targetField string) string {

	return subjectId + "|" + targetTable + "|" + targetField
}

func (s *memProfileStore) GetCurrentValue(subjectId, targetTable, targetField string) (string, bool, error) {

	value, found := s.values[profileKey(subjectId, targetTable, targetField)]
	return value, found, nil
}

func (s *memProfileStore) SetValue(subjectId, targetTable, targetField, value string) error {

	s.values[profileKey(subjectId, targetTable, targetField)] = value
	return nil
}

func (s *memProfileStore) AppendAuditEntry(entry profilemodel.AuditEntry) error {

	s.audit = append(s.audit, entry)
	return nil
}

func (s *memProfileStore) GetAuditEntries(subjectId string) ([]profilemodel.AuditEntry, error) {

	var matched []profilemodel.AuditEntry
	for _, entry := range s.audit {
		if entry.SubjectId == subjectId {
			matched = append(matched, entry)
		}
	}
	return matched, nil
}

// memRuleService serves canned rules keyed by question id.
type memRuleService struct {
	byQuestion map[string][]rulemodel.TransformationRule
}

func (s *memRuleService) AddTransformationRule(rule rulemodel.TransformationRule) (
	*rulemodel.TransformationRule, error) {
	return &rule, nil
}

func (s *memRuleService) GetTransformationRule(ruleId string) (*rulemodel.TransformationRule, error) {
	return nil, nil
}

func (s *memRuleService) GetTransformationRules() ([]rulemodel.TransformationRule, error) {
	return nil, nil
}

func (s *memRuleService) GetTransformationRulesByQuestion(questionId string) (
	[]rulemodel.TransformationRule, error) {

	return s.byQuestion[questionId], nil
}

func (s *memRuleService) UpdateTransformationRule(ruleId string, rule rulemodel.TransformationRule) (
	*rulemodel.TransformationRule, error) {
	return &rule, nil
}

func (s *memRuleService) DeleteTransformationRule(ruleId string) error {
	return nil
}

type fixture struct {
	service   ReconciliationServiceInterface
	proposals *memProposalStore
	profiles  *memProfileStore
	rules     *memRuleService
}

func newFixture(rules map[string][]rulemodel.TransformationRule) *fixture {

	proposals := newMemProposalStore()
	profiles := newMemProfileStore()
	ruleService := &memRuleService{byQuestion: rules}
	service := NewReconciliationService(
		proposals,
		ruleService,
		profiles,
		NewTransformationRegistry(nil),
		NewValidationEngine(nil),
		NewApplicationExecutor(profiles),
	)
	return &fixture{service: service, proposals: proposals, profiles: profiles, rules: ruleService}
}

func gradeRule() rulemodel.TransformationRule {

	return rulemodel.TransformationRule{
		RuleId:           "rule-grade",
		QuestionId:       "q_grade",
		TargetTable:      "academic_profile",
		TargetField:      "grade_level",
		Strategy:         constants.StrategyDirect,
		StrategyConfig:   map[string]interface{}{"valueType": constants.ValueTypeText},
		RequiresApproval: true,
		ConflictPolicy:   constants.ConflictPolicyManualReview,
	}
}

func submission(answers map[string]interface{}) model.RawSubmission {

	return model.RawSubmission{
		SubjectId:  "subj-1",
		SourceId:   "src-1",
		SourceType: "self_report",
		Answers:    answers,
	}
}

func TestSubmitCreatesPendingProposals(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})

	result, err := f.service.Submit(context.Background(), submission(
		map[string]interface{}{"q_grade": "10th grade"}))
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)

	proposal := result.Proposals[0]
	assert.Equal(t, model.StatusPending, proposal.Status)
	assert.Equal(t, model.UpdateTypeSelfReported, proposal.UpdateType)
	assert.Equal(t, "10th grade", proposal.ProposedValue.Text)
	// Transform confidence 1.0 floored by the degraded-validation score.
	assert.InDelta(t, 0.55, proposal.Confidence, 0.001)
	assert.False(t, proposal.ExpiresAt.IsZero())
	assert.Equal(t, 0, result.AutoApplied)

	// Nothing is written to the profile until a reviewer acts.
	_, found, err := f.profiles.GetCurrentValue("subj-1", "academic_profile", "grade_level")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSubmitAutoAppliesWhenRuleWaivesApproval(t *testing.T) {
	rule := gradeRule()
	rule.RequiresApproval = false
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {rule}})

	result, err := f.service.Submit(context.Background(), submission(
		map[string]interface{}{"q_grade": "11th grade"}))
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	assert.Equal(t, model.StatusAutoApplied, result.Proposals[0].Status)
	assert.Equal(t, 1, result.AutoApplied)

	value, found, err := f.profiles.GetCurrentValue("subj-1", "academic_profile", "grade_level")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "11th grade", value)

	entries, err := f.profiles.GetAuditEntries("subj-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "system", entries[0].ChangedBy)
}

func TestGetAuditTrail(t *testing.T) {
	rule := gradeRule()
	rule.RequiresApproval = false
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {rule}})

	_, err := f.service.Submit(context.Background(), submission(
		map[string]interface{}{"q_grade": "11th grade"}))
	require.NoError(t, err)

	entries, err := f.service.GetAuditTrail("subj-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "11th grade", entries[0].NewValue)

	_, err = f.service.GetAuditTrail("")
	assert.Error(t, err, "audit trail requires a subject")
}

func TestSubmitIsolatesBrokenRules(t *testing.T) {
	broken := gradeRule()
	broken.RuleId = "rule-broken"
	broken.QuestionId = "q_broken"
	broken.Strategy = "NO_SUCH_STRATEGY"

	f := newFixture(map[string][]rulemodel.TransformationRule{
		"q_grade":  {gradeRule()},
		"q_broken": {broken},
	})

	result, err := f.service.Submit(context.Background(), submission(map[string]interface{}{
		"q_grade":  "9th grade",
		"q_broken": "whatever",
	}))
	require.NoError(t, err, "one broken rule must not fail the submission")
	assert.Len(t, result.Proposals, 1)
	assert.Equal(t, []string{"rule-broken"}, result.SkippedRules)
}

func TestSubmitDropsInvalidDraftsWithoutAborting(t *testing.T) {
	numberRule := gradeRule()
	numberRule.RuleId = "rule-grade-number"
	numberRule.TargetField = "grade_numeric"
	numberRule.StrategyConfig = map[string]interface{}{"valueType": constants.ValueTypeNumber}

	f := newFixture(map[string][]rulemodel.TransformationRule{
		"q_grade": {gradeRule(), numberRule},
	})

	// "NaN" is valid text but a non-finite number, so only the number rule's
	// draft fails validation.
	result, err := f.service.Submit(context.Background(), submission(
		map[string]interface{}{"q_grade": "NaN"}))
	require.NoError(t, err, "an implausible draft must not fail the submission")
	require.Len(t, result.Proposals, 1)
	assert.Equal(t, "grade_level", result.Proposals[0].TargetLocator.Field)
	assert.Equal(t, []string{"rule-grade-number"}, result.SkippedRules)
}

func TestSubmitDefaultsRetentionWhenUnset(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})

	result, err := f.service.Submit(context.Background(), submission(
		map[string]interface{}{"q_grade": "10th grade"}))
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)

	expected := time.Now().UTC().AddDate(0, 0, constants.DefaultRetentionDays)
	assert.WithinDuration(t, expected, result.Proposals[0].ExpiresAt, time.Minute)
}

func TestSubmitRequiresSubjectAndSource(t *testing.T) {
	f := newFixture(nil)

	_, err := f.service.Submit(context.Background(), model.RawSubmission{SourceId: "src-1"})
	assert.Error(t, err)

	_, err = f.service.Submit(context.Background(), model.RawSubmission{SubjectId: "subj-1"})
	assert.Error(t, err)
}

func TestSubmitMultipleFieldsFanOut(t *testing.T) {
	rule := rulemodel.TransformationRule{
		RuleId:      "rule-multi",
		QuestionId:  "q_goals",
		TargetTable: "goals_profile",
		Strategy:    constants.StrategyMultipleFields,
		StrategyConfig: map[string]interface{}{
			"mappings": []interface{}{
				map[string]interface{}{"targetField": "short_term_goal"},
				map[string]interface{}{
					"targetTable": "social_emotional_profile",
					"targetField": "self_description",
					"parseWithAI": true,
				},
			},
		},
		RequiresApproval: true,
	}
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_goals": {rule}})

	result, err := f.service.Submit(context.Background(), submission(
		map[string]interface{}{"q_goals": "Make honor roll; I am a determined person"}))
	require.NoError(t, err)
	require.Len(t, result.Proposals, 2)
	assert.Equal(t, result.Proposals[0].SourceId, result.Proposals[1].SourceId)

	// Each fanned-out proposal is independently reviewable.
	approved, err := f.service.Approve([]string{result.Proposals[0].ProposalId},
		model.ReviewContext{ReviewedBy: "counselor-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, approved.AppliedCount)

	remaining, err := f.proposals.GetProposal(result.Proposals[1].ProposalId)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, remaining.Status)
}

func submitOne(t *testing.T, f *fixture, answer string) model.ProfileUpdateProposal {
	t.Helper()

	result, err := f.service.Submit(context.Background(), submission(
		map[string]interface{}{"q_grade": answer}))
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	return result.Proposals[0]
}

func TestApproveAppliesAndIsIdempotent(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})
	proposal := submitOne(t, f, "10th grade")

	review := model.ReviewContext{ReviewedBy: "counselor-1", Notes: "confirmed with transcript"}
	result, err := f.service.Approve([]string{proposal.ProposalId}, review)
	require.NoError(t, err)
	assert.Equal(t, 1, result.AppliedCount)
	assert.Equal(t, []string{"academic_profile.grade_level"}, result.UpdatedFields)

	value, found, err := f.profiles.GetCurrentValue("subj-1", "academic_profile", "grade_level")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "10th grade", value)

	stored, err := f.proposals.GetProposal(proposal.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, stored.Status)
	assert.Equal(t, "counselor-1", stored.ReviewedBy)

	// A retry of the same batch skips the already-approved id.
	retry, err := f.service.Approve([]string{proposal.ProposalId}, review)
	require.NoError(t, err)
	assert.Equal(t, 0, retry.AppliedCount)
	assert.Equal(t, []string{proposal.ProposalId}, retry.SkippedIds)
}

func TestApproveRequiresReviewer(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})
	proposal := submitOne(t, f, "10th grade")

	_, err := f.service.Approve([]string{proposal.ProposalId}, model.ReviewContext{})
	assert.Error(t, err)
}

func TestApproveSkipsUnknownIds(t *testing.T) {
	f := newFixture(nil)

	result, err := f.service.Approve([]string{"no-such-id"}, model.ReviewContext{ReviewedBy: "counselor-1"})
	require.NoError(t, err)
	assert.Equal(t, 0, result.AppliedCount)
	assert.Equal(t, []string{"no-such-id"}, result.SkippedIds)
}

func TestRejectLeavesProfileUntouched(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})
	proposal := submitOne(t, f, "10th grade")

	review := model.ReviewContext{ReviewedBy: "counselor-1"}
	require.Error(t, f.service.Reject(proposal.ProposalId, review, "  "),
		"a rejection without a reason must fail")

	require.NoError(t, f.service.Reject(proposal.ProposalId, review, "contradicts the transcript"))

	stored, err := f.proposals.GetProposal(proposal.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, model.StatusRejected, stored.Status)
	assert.Equal(t, "contradicts the transcript", stored.ReviewNotes)

	_, found, err := f.profiles.GetCurrentValue("subj-1", "academic_profile", "grade_level")
	require.NoError(t, err)
	assert.False(t, found)

	// The proposal is terminal now; a second rejection conflicts.
	assert.Error(t, f.service.Reject(proposal.ProposalId, review, "again"))
}

func TestModifyAppliesEditedValue(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})
	proposal := submitOne(t, f, "10 grade")

	review := model.ReviewContext{ReviewedBy: "counselor-1", Notes: "normalized wording"}
	require.NoError(t, f.service.Modify(proposal.ProposalId, review, model.TextValue("10th grade")))

	value, _, err := f.profiles.GetCurrentValue("subj-1", "academic_profile", "grade_level")
	require.NoError(t, err)
	assert.Equal(t, "10th grade", value)

	stored, err := f.proposals.GetProposal(proposal.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, model.StatusModified, stored.Status)
	assert.Equal(t, "10th grade", stored.ProposedValue.Text)
}

func TestModifyNonPendingConflicts(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})
	proposal := submitOne(t, f, "10th grade")

	review := model.ReviewContext{ReviewedBy: "counselor-1"}
	require.NoError(t, f.service.Reject(proposal.ProposalId, review, "bad data"))

	err := f.service.Modify(proposal.ProposalId, review, model.TextValue("11th grade"))
	assert.Error(t, err)

	err = f.service.Modify("no-such-id", review, model.TextValue("x"))
	assert.Error(t, err)
}

func TestBulkApproveHonorsExclusions(t *testing.T) {
	sleepRule := gradeRule()
	sleepRule.RuleId = "rule-sleep"
	sleepRule.QuestionId = "q_sleep"
	sleepRule.TargetTable = "health_profile"
	sleepRule.TargetField = "sleep_hours"

	goalRule := gradeRule()
	goalRule.RuleId = "rule-goal"
	goalRule.QuestionId = "q_goal"
	goalRule.TargetTable = "goals_profile"
	goalRule.TargetField = "short_term_goal"

	f := newFixture(map[string][]rulemodel.TransformationRule{
		"q_grade": {gradeRule()},
		"q_sleep": {sleepRule},
		"q_goal":  {goalRule},
	})

	result, err := f.service.Submit(context.Background(), submission(map[string]interface{}{
		"q_grade": "10th grade",
		"q_sleep": "8",
		"q_goal":  "make honor roll",
	}))
	require.NoError(t, err)
	require.Len(t, result.Proposals, 3)

	var excluded string
	for _, proposal := range result.Proposals {
		if proposal.TargetLocator.Field == "sleep_hours" {
			excluded = proposal.ProposalId
		}
	}
	require.NotEmpty(t, excluded)

	approved, err := f.service.BulkApprove("subj-1",
		model.BulkApproveOptions{ExcludeIds: []string{excluded}},
		model.ReviewContext{ReviewedBy: "counselor-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, approved.AppliedCount)

	stored, err := f.proposals.GetProposal(excluded)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, stored.Status)

	_, found, err := f.profiles.GetCurrentValue("subj-1", "health_profile", "sleep_hours")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestBulkApproveRequiresSubject(t *testing.T) {
	f := newFixture(nil)

	_, err := f.service.BulkApprove("", model.BulkApproveOptions{},
		model.ReviewContext{ReviewedBy: "counselor-1"})
	assert.Error(t, err)
}

func TestExpireStaleRemovesFromReviewQueue(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})
	proposal := submitOne(t, f, "10th grade")

	// Force the proposal past its retention window.
	stale := f.proposals.proposals[proposal.ProposalId]
	stale.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	f.proposals.proposals[proposal.ProposalId] = stale

	count, err := f.service.ExpireStale()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stored, err := f.proposals.GetProposal(proposal.ProposalId)
	require.NoError(t, err)
	assert.Equal(t, model.StatusExpired, stored.Status)

	batches, err := f.service.ListPending(model.PendingFilter{SubjectId: "subj-1"})
	require.NoError(t, err)
	assert.Empty(t, batches)

	// The sweep is idempotent.
	count, err = f.service.ExpireStale()
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestListPendingGroupsBySubjectAndSource(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})

	_, err := f.service.Submit(context.Background(), model.RawSubmission{
		SubjectId:  "subj-1",
		SourceId:   "src-1",
		SourceType: "self_report",
		Answers:    map[string]interface{}{"q_grade": "10th grade"},
	})
	require.NoError(t, err)

	_, err = f.service.Submit(context.Background(), model.RawSubmission{
		SubjectId:  "subj-2",
		SourceId:   "src-2",
		SourceType: "manual_edit",
		Answers:    map[string]interface{}{"q_grade": "9th grade"},
	})
	require.NoError(t, err)

	batches, err := f.service.ListPending(model.PendingFilter{})
	require.NoError(t, err)
	require.Len(t, batches, 2)

	scoped, err := f.service.ListPending(model.PendingFilter{SubjectId: "subj-2"})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "subj-2", scoped[0].SubjectId)
	assert.Equal(t, "src-2", scoped[0].SourceId)
	require.Len(t, scoped[0].Proposals, 1)
	assert.Equal(t, model.UpdateTypeManual, scoped[0].Proposals[0].UpdateType)
}

func TestListPendingAnnotatesCompetingProposals(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})

	first := submitOne(t, f, "10th grade")

	result, err := f.service.Submit(context.Background(), model.RawSubmission{
		SubjectId:  "subj-1",
		SourceId:   "src-2",
		SourceType: "manual_edit",
		Answers:    map[string]interface{}{"q_grade": "11th grade"},
	})
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)
	second := result.Proposals[0]

	batches, err := f.service.ListPending(model.PendingFilter{SubjectId: "subj-1"})
	require.NoError(t, err)
	require.Len(t, batches, 2)

	byId := map[string]model.ProfileUpdateProposal{}
	for _, batch := range batches {
		for _, proposal := range batch.Proposals {
			byId[proposal.ProposalId] = proposal
		}
	}

	require.Len(t, byId[first.ProposalId].Conflicts, 1)
	assert.Equal(t, second.ProposalId, byId[first.ProposalId].Conflicts[0].ConflictingProposalId)
	require.Len(t, byId[second.ProposalId].Conflicts, 1)
	assert.Equal(t, first.ProposalId, byId[second.ProposalId].Conflicts[0].ConflictingProposalId)
}

func TestListPendingAnnotatesStoredValueConflicts(t *testing.T) {
	rule := gradeRule()
	rule.RuleId = "rule-gpa"
	rule.QuestionId = "q_gpa"
	rule.TargetField = "gpa"
	rule.StrategyConfig = map[string]interface{}{"valueType": constants.ValueTypeNumber}
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_gpa": {rule}})

	require.NoError(t, f.profiles.SetValue("subj-1", "academic_profile", "gpa", "8"))

	result, err := f.service.Submit(context.Background(), submission(
		map[string]interface{}{"q_gpa": "10"}))
	require.NoError(t, err)
	require.Len(t, result.Proposals, 1)

	batches, err := f.service.ListPending(model.PendingFilter{SubjectId: "subj-1"})
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Len(t, batches[0].Proposals, 1)

	conflicts := batches[0].Proposals[0].Conflicts
	require.Len(t, conflicts, 1, "stored-value conflict must reach the reviewer")
	assert.Equal(t, "8", conflicts[0].ExistingValue)
	assert.Equal(t, "10", conflicts[0].NewValue)
	assert.Equal(t, constants.SeverityMedium, conflicts[0].Severity)
}

func TestGetStatsReflectsLifecycle(t *testing.T) {
	f := newFixture(map[string][]rulemodel.TransformationRule{"q_grade": {gradeRule()}})
	proposal := submitOne(t, f, "10th grade")

	_, err := f.service.Approve([]string{proposal.ProposalId},
		model.ReviewContext{ReviewedBy: "counselor-1"})
	require.NoError(t, err)

	stats, err := f.service.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.CountsByStatus[string(model.StatusApproved)])
	assert.Equal(t, 0, stats.CountsByStatus[string(model.StatusPending)])
}
