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

package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wso2/profile-reconciliation-service/internal/proposal/model"
	"github.com/wso2/profile-reconciliation-service/internal/proposal/provider"
	"github.com/wso2/profile-reconciliation-service/internal/system/authn"
	"github.com/wso2/profile-reconciliation-service/internal/system/utils"
)

type ProposalHandler struct{}

func NewProposalHandler() *ProposalHandler {

	return &ProposalHandler{}
}

type approveRequest struct {
	Ids        []string `json:"ids"`
	ReviewedBy string   `json:"reviewed_by,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Rating     int      `json:"rating,omitempty"`
}

type rejectRequest struct {
	ReviewedBy string `json:"reviewed_by,omitempty"`
	Reason     string `json:"reason"`
	Rating     int    `json:"rating,omitempty"`
}

type modifyRequest struct {
	ReviewedBy string           `json:"reviewed_by,omitempty"`
	NewValue   model.FieldValue `json:"new_value"`
	Notes      string           `json:"notes,omitempty"`
	Rating     int              `json:"rating,omitempty"`
}

type bulkApproveRequest struct {
	SubjectId  string   `json:"subject_id"`
	SourceId   string   `json:"source_id,omitempty"`
	ExcludeIds []string `json:"exclude_ids,omitempty"`
	ReviewedBy string   `json:"reviewed_by,omitempty"`
	Notes      string   `json:"notes,omitempty"`
}

// SubmitProposals handles POST /submissions
func (ph *ProposalHandler) SubmitProposals(w http.ResponseWriter, r *http.Request) {

	var submission model.RawSubmission
	if err := json.NewDecoder(r.Body).Decode(&submission); err != nil {
		http.Error(w, utils.HandleDecodeError(err, "submission"), http.StatusBadRequest)
		return
	}

	svc := provider.NewReconciliationProvider().GetReconciliationService()
	result, err := svc.Submit(r.Context(), submission)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusCreated, result)
}

// ListPending handles GET /proposals/pending
func (ph *ProposalHandler) ListPending(w http.ResponseWriter, r *http.Request) {

	filter := model.PendingFilter{
		SubjectId: r.URL.Query().Get("subject_id"),
		SourceId:  r.URL.Query().Get("source_id"),
		SortBy:    r.URL.Query().Get("sort_by"),
	}

	svc := provider.NewReconciliationProvider().GetReconciliationService()
	batches, err := svc.ListPending(filter)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, batches)
}

// ApproveProposals handles POST /proposals/approve
func (ph *ProposalHandler) ApproveProposals(w http.ResponseWriter, r *http.Request) {

	var req approveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, utils.HandleDecodeError(err, "approval"), http.StatusBadRequest)
		return
	}

	reviewer, err := authn.ResolveReviewer(r, req.ReviewedBy)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	svc := provider.NewReconciliationProvider().GetReconciliationService()
	result, err := svc.Approve(req.Ids, model.ReviewContext{
		ReviewedBy: reviewer,
		Notes:      req.Notes,
		Rating:     req.Rating,
	})
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, result)
}

// RejectProposal handles POST /proposals/:proposal_id/reject
func (ph *ProposalHandler) RejectProposal(w http.ResponseWriter, r *http.Request) {

	proposalId, ok := proposalIdFromPath(r.URL.Path, "reject")
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	var req rejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, utils.HandleDecodeError(err, "rejection"), http.StatusBadRequest)
		return
	}

	reviewer, err := authn.ResolveReviewer(r, req.ReviewedBy)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	svc := provider.NewReconciliationProvider().GetReconciliationService()
	if err := svc.Reject(proposalId, model.ReviewContext{
		ReviewedBy: reviewer,
		Rating:     req.Rating,
	}, req.Reason); err != nil {
		utils.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ModifyProposal handles POST /proposals/:proposal_id/modify
func (ph *ProposalHandler) ModifyProposal(w http.ResponseWriter, r *http.Request) {

	proposalId, ok := proposalIdFromPath(r.URL.Path, "modify")
	if !ok {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}

	var req modifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, utils.HandleDecodeError(err, "modification"), http.StatusBadRequest)
		return
	}

	reviewer, err := authn.ResolveReviewer(r, req.ReviewedBy)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	svc := provider.NewReconciliationProvider().GetReconciliationService()
	if err := svc.Modify(proposalId, model.ReviewContext{
		ReviewedBy: reviewer,
		Notes:      req.Notes,
		Rating:     req.Rating,
	}, req.NewValue); err != nil {
		utils.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkApproveProposals handles POST /proposals/bulk-approve
func (ph *ProposalHandler) BulkApproveProposals(w http.ResponseWriter, r *http.Request) {

	var req bulkApproveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, utils.HandleDecodeError(err, "bulk approval"), http.StatusBadRequest)
		return
	}

	reviewer, err := authn.ResolveReviewer(r, req.ReviewedBy)
	if err != nil {
		utils.HandleError(w, err)
		return
	}

	svc := provider.NewReconciliationProvider().GetReconciliationService()
	result, err := svc.BulkApprove(req.SubjectId, model.BulkApproveOptions{
		SourceId:   req.SourceId,
		ExcludeIds: req.ExcludeIds,
		Notes:      req.Notes,
	}, model.ReviewContext{ReviewedBy: reviewer})
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, result)
}

// GetStats handles GET /proposals/stats
func (ph *ProposalHandler) GetStats(w http.ResponseWriter, r *http.Request) {

	svc := provider.NewReconciliationProvider().GetReconciliationService()
	stats, err := svc.GetStats()
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, stats)
}

// GetAuditTrail handles GET /subjects/:subject_id/audit
func (ph *ProposalHandler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {

	pathParts := strings.Split(strings.TrimSuffix(r.URL.Path, "/"), "/")
	if len(pathParts) < 3 || pathParts[len(pathParts)-1] != "audit" {
		http.Error(w, "Invalid path", http.StatusBadRequest)
		return
	}
	subjectId := pathParts[len(pathParts)-2]

	svc := provider.NewReconciliationProvider().GetReconciliationService()
	entries, err := svc.GetAuditTrail(subjectId)
	if err != nil {
		utils.HandleError(w, err)
		return
	}
	utils.WriteJSONResponse(w, http.StatusOK, entries)
}

// proposalIdFromPath extracts the id from /proposals/:proposal_id/:action
func proposalIdFromPath(path, action string) (string, bool) {

	pathParts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	if len(pathParts) < 3 || pathParts[len(pathParts)-1] != action {
		return "", false
	}
	proposalId := pathParts[len(pathParts)-2]
	if proposalId == "" || proposalId == "proposals" {
		return "", false
	}
	return proposalId, true
}
