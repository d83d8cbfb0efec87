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

package services

import (
	"net/http"
	"strings"

	"github.com/wso2/profile-reconciliation-service/internal/proposal/handler"
)

type ProposalReviewService struct {
	proposalHandler *handler.ProposalHandler
}

func NewProposalReviewService() *ProposalReviewService {
	return &ProposalReviewService{
		proposalHandler: handler.NewProposalHandler(),
	}
}

// Route handles all submission and proposal review endpoints
func (s *ProposalReviewService) Route(w http.ResponseWriter, r *http.Request) {

	path := strings.TrimSuffix(r.URL.Path, "/")
	method := r.Method

	switch {
	case method == http.MethodPost && path == "/submissions":
		s.proposalHandler.SubmitProposals(w, r)

	case method == http.MethodGet && path == "/proposals/pending":
		s.proposalHandler.ListPending(w, r)

	case method == http.MethodGet && path == "/proposals/stats":
		s.proposalHandler.GetStats(w, r)

	case method == http.MethodPost && path == "/proposals/approve":
		s.proposalHandler.ApproveProposals(w, r)

	case method == http.MethodPost && path == "/proposals/bulk-approve":
		s.proposalHandler.BulkApproveProposals(w, r)

	case method == http.MethodPost && strings.HasPrefix(path, "/proposals/") && strings.HasSuffix(path, "/reject"):
		s.proposalHandler.RejectProposal(w, r)

	case method == http.MethodPost && strings.HasPrefix(path, "/proposals/") && strings.HasSuffix(path, "/modify"):
		s.proposalHandler.ModifyProposal(w, r)

	case method == http.MethodGet && strings.HasPrefix(path, "/subjects/") && strings.HasSuffix(path, "/audit"):
		s.proposalHandler.GetAuditTrail(w, r)

	default:
		http.NotFound(w, r)
	}
}
