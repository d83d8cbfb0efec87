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

package client

import (
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wso2/profile-reconciliation-service/internal/system/config"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
)

func TestMain(m *testing.M) {

	if err := log.Init("error"); err != nil {
		fmt.Println("failed to initialize logger:", err)
		os.Exit(1)
	}
	_ = config.InitializePRSRuntime(".", &config.Config{})
	os.Exit(m.Run())
}

func TestNewClientDefaultsModelWhenConfigUnset(t *testing.T) {

	judgementClient := NewGeminiJudgementClient()
	assert.Equal(t, constants.DefaultJudgeModel, judgementClient.model)
}

func TestResolveModel(t *testing.T) {

	assert.Equal(t, constants.DefaultJudgeModel, resolveModel(""))
	assert.Equal(t, "gemini-1.5-pro", resolveModel("gemini-1.5-pro"))
}

func TestResolveAPIKeyEnv(t *testing.T) {

	assert.Equal(t, constants.DefaultJudgeAPIKeyEnv, resolveAPIKeyEnv(""))
	assert.Equal(t, "MY_JUDGE_KEY", resolveAPIKeyEnv("MY_JUDGE_KEY"))
}

func TestResolveTimeout(t *testing.T) {

	tests := []struct {
		name    string
		seconds int
		want    time.Duration
	}{
		{name: "unset falls back to default", seconds: 0, want: constants.DefaultJudgeTimeoutSeconds * time.Second},
		{name: "negative falls back to default", seconds: -5, want: constants.DefaultJudgeTimeoutSeconds * time.Second},
		{name: "configured value wins", seconds: 7, want: 7 * time.Second},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, resolveTimeout(tc.seconds))
		})
	}
}
