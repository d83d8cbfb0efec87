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
	"fmt"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wso2/profile-reconciliation-service/internal/system/log"
)

func TestMain(m *testing.M) {

	if err := log.Init("error"); err != nil {
		fmt.Println("failed to initialize logger:", err)
		os.Exit(1)
	}
	os.Exit(m.Run())
}

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestResolveReviewerPrefersTokenSubject(t *testing.T) {
	r := httptest.NewRequest("POST", "/proposals/approve", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"sub": "counselor-9"}))

	reviewer, err := ResolveReviewer(r, "someone-else")
	require.NoError(t, err)
	assert.Equal(t, "counselor-9", reviewer)
}

func TestResolveReviewerFallsBackToBody(t *testing.T) {
	tests := []struct {
		name       string
		authHeader string
	}{
		{"no authorization header", ""},
		{"malformed header", "Token abc"},
		{"unparsable token", "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("POST", "/proposals/approve", nil)
			if tt.authHeader != "" {
				r.Header.Set("Authorization", tt.authHeader)
			}

			reviewer, err := ResolveReviewer(r, "  counselor-2  ")
			require.NoError(t, err)
			assert.Equal(t, "counselor-2", reviewer)
		})
	}
}

func TestResolveReviewerTokenWithoutSubject(t *testing.T) {
	r := httptest.NewRequest("POST", "/proposals/approve", nil)
	r.Header.Set("Authorization", "Bearer "+signedToken(t, jwt.MapClaims{"scope": "review"}))

	reviewer, err := ResolveReviewer(r, "counselor-3")
	require.NoError(t, err)
	assert.Equal(t, "counselor-3", reviewer)
}

func TestResolveReviewerRejectsAnonymousDecisions(t *testing.T) {
	r := httptest.NewRequest("POST", "/proposals/approve", nil)

	_, err := ResolveReviewer(r, "   ")
	assert.Error(t, err)
}

func TestParseJWTClaims(t *testing.T) {
	claims, err := ParseJWTClaims(signedToken(t, jwt.MapClaims{"sub": "reviewer-1", "aud": "prs"}))
	require.NoError(t, err)
	assert.Equal(t, "reviewer-1", claims["sub"])

	_, err = ParseJWTClaims("garbage")
	assert.Error(t, err)
}
