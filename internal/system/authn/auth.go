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

package authn

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	errors2 "github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
)

// ResolveReviewer determines the identity recorded as the reviewer of a
// decision. A Bearer token's `sub` claim wins over the reviewer given in the
// request body; with neither present the request is rejected since every
// review decision must be attributable.
func ResolveReviewer(r *http.Request, bodyReviewer string) (string, error) {

	token := extractBearerToken(r)
	if token != "" {
		claims, err := ParseJWTClaims(token)
		if err == nil {
			if sub, ok := claims["sub"].(string); ok && sub != "" {
				return sub, nil
			}
		}
	}

	if strings.TrimSpace(bodyReviewer) != "" {
		return strings.TrimSpace(bodyReviewer), nil
	}

	return "", errors2.NewClientError(errors2.ErrorMessage{
		Code:        errors2.REVIEWER_REQUIRED.Code,
		Message:     errors2.REVIEWER_REQUIRED.Message,
		Description: errors2.REVIEWER_REQUIRED.Description,
	}, http.StatusBadRequest)
}

// ParseJWTClaims parses claims from a JWT without verifying the signature
func ParseJWTClaims(tokenString string) (map[string]interface{}, error) {

	logger := log.GetLogger()
	claims := jwt.MapClaims{}
	_, _, err := new(jwt.Parser).ParseUnverified(tokenString, claims)
	if err != nil {
		errMsg := "Error occurred when parsing claims from JWT token."
		logger.Debug(errMsg, log.Error(err))
		serverError := errors2.NewServerError(errors2.ErrorMessage{
			Code:        errors2.PARSING_ERROR.Code,
			Message:     errors2.PARSING_ERROR.Message,
			Description: errMsg,
		}, err)
		return nil, serverError
	}
	return claims, nil
}

func extractBearerToken(r *http.Request) string {

	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
