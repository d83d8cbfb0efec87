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

package model

import (
	"fmt"
	"strings"
	"time"
)

// UpdateType describes the provenance of a proposal.
type UpdateType string

const (
	UpdateTypeSelfReported UpdateType = "SELF_REPORTED"
	UpdateTypeAISuggested  UpdateType = "AI_SUGGESTED"
	UpdateTypeManual       UpdateType = "MANUAL"
)

// ProposalStatus is the review state of a proposal. PENDING is the only
// non-terminal state; AUTO_APPLIED is a terminal initial state that bypasses
// review entirely.
type ProposalStatus string

const (
	StatusPending     ProposalStatus = "PENDING"
	StatusApproved    ProposalStatus = "APPROVED"
	StatusRejected    ProposalStatus = "REJECTED"
	StatusModified    ProposalStatus = "MODIFIED"
	StatusAutoApplied ProposalStatus = "AUTO_APPLIED"
	StatusExpired     ProposalStatus = "EXPIRED"
)

// TargetLocator addresses the (table, field) pair a proposal writes to.
type TargetLocator struct {
	Table string `json:"table"`
	Field string `json:"field"`
}

func (t TargetLocator) String() string {
	return t.Table + "." + t.Field
}

// ParseTargetLocator splits a "table.field" path into a locator.
func ParseTargetLocator(path string) (TargetLocator, error) {

	parts := strings.SplitN(path, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return TargetLocator{}, fmt.Errorf("invalid target locator: %q", path)
	}
	return TargetLocator{Table: parts[0], Field: parts[1]}, nil
}

// ProfileUpdateProposal is a single field-level suggested change with
// provenance and confidence. Once status leaves PENDING the record is
// immutable, except MODIFIED stores the reviewer-edited value.
type ProfileUpdateProposal struct {
	ProposalId    string         `json:"proposal_id"`
	SubjectId     string         `json:"subject_id"`
	SourceId      string         `json:"source_id"`
	UpdateType    UpdateType     `json:"update_type"`
	TargetLocator TargetLocator  `json:"target_locator"`
	CurrentValue  string         `json:"current_value,omitempty"`
	ProposedValue FieldValue     `json:"proposed_value"`
	Reasoning     string         `json:"reasoning,omitempty"`
	Confidence    float64        `json:"confidence"`
	Status        ProposalStatus `json:"status"`
	Priority      int            `json:"priority"`
	// Conflicts are advisory review-time annotations, not persisted state.
	Conflicts      []DataConflict `json:"conflicts,omitempty"`
	ReviewedBy     string         `json:"reviewed_by,omitempty"`
	ReviewedAt     time.Time      `json:"reviewed_at,omitempty"`
	ReviewNotes    string         `json:"review_notes,omitempty"`
	ReviewRating   int            `json:"review_rating,omitempty"`
	AutoApplyAfter time.Time      `json:"auto_apply_after,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	ExpiresAt      time.Time      `json:"expires_at,omitempty"`
}

// ProposalDraft is the pre-persistence output of a transformation strategy,
// before validation folds its verdict in.
type ProposalDraft struct {
	SubjectId        string        `json:"subject_id"`
	SourceId         string        `json:"source_id"`
	UpdateType       UpdateType    `json:"update_type"`
	TargetLocator    TargetLocator `json:"target_locator"`
	ProposedValue    FieldValue    `json:"proposed_value"`
	Reasoning        string        `json:"reasoning,omitempty"`
	Confidence       float64       `json:"confidence"`
	Priority         int           `json:"priority"`
	RequiresApproval bool          `json:"requires_approval"`
}

// ValidationResult is the ephemeral verdict of the validation engine. It is
// folded into the proposal's reasoning and confidence, never persisted itself.
type ValidationResult struct {
	IsValid          bool           `json:"is_valid"`
	Confidence       float64        `json:"confidence"`
	Reasoning        string         `json:"reasoning"`
	SuggestedDomains []string       `json:"suggested_domains,omitempty"`
	Conflicts        []DataConflict `json:"conflicts,omitempty"`
	Recommendations  []string       `json:"recommendations,omitempty"`
}

// DataConflict records a disagreement between an incoming value and either
// the stored value or another pending proposal for the same target. Always
// surfaced to a human, never auto-resolved.
type DataConflict struct {
	TargetLocator         TargetLocator `json:"target_locator"`
	ExistingValue         string        `json:"existing_value"`
	NewValue              string        `json:"new_value"`
	Severity              string        `json:"severity"`
	ResolutionSuggestion  string        `json:"resolution_suggestion,omitempty"`
	ConflictingProposalId string        `json:"conflicting_proposal_id,omitempty"`
}

// RawSubmission is one inbound answer set from a source.
type RawSubmission struct {
	SubjectId  string                 `json:"subject_id"`
	SourceId   string                 `json:"source_id"`
	SourceType string                 `json:"source_type"`
	Answers    map[string]interface{} `json:"answers"`
}

// SubmissionResult reports what a submission produced.
type SubmissionResult struct {
	Proposals    []ProfileUpdateProposal `json:"proposals"`
	AutoApplied  int                     `json:"auto_applied"`
	SkippedRules []string                `json:"skipped_rules,omitempty"`
}

// ReviewBatch groups the pending proposals of one subject and source so
// reviewers see a coherent submission rather than isolated field diffs.
type ReviewBatch struct {
	SubjectId string                  `json:"subject_id"`
	SourceId  string                  `json:"source_id"`
	Proposals []ProfileUpdateProposal `json:"proposals"`
}

// ApprovalResult reports the outcome of an approve or bulk-approve call.
type ApprovalResult struct {
	AppliedCount  int      `json:"applied_count"`
	UpdatedFields []string `json:"updated_fields"`
	SkippedIds    []string `json:"skipped_ids,omitempty"`
	FailedIds     []string `json:"failed_ids,omitempty"`
}

// ReviewStats aggregates proposal counts and review quality signals.
type ReviewStats struct {
	CountsByStatus   map[string]int `json:"counts_by_status"`
	CountsByType     map[string]int `json:"counts_by_type"`
	CountsByPriority map[string]int `json:"counts_by_priority"`
	AvgConfidence    float64        `json:"avg_confidence"`
	AvgReviewRating  float64        `json:"avg_review_rating"`
}

// PendingFilter narrows the pending review listing.
type PendingFilter struct {
	SubjectId string
	SourceId  string
	SortBy    string
}

// BulkApproveOptions scopes a bulk approval.
type BulkApproveOptions struct {
	SourceId   string   `json:"source_id,omitempty"`
	ExcludeIds []string `json:"exclude_ids,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// ReviewContext carries the reviewer identity and decision metadata for a
// status transition.
type ReviewContext struct {
	ReviewedBy    string
	Notes         string
	Rating        int
	ModifiedValue *FieldValue
}
