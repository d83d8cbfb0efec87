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
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/wso2/profile-reconciliation-service/internal/system/config"
	"github.com/wso2/profile-reconciliation-service/internal/system/constants"
	"github.com/wso2/profile-reconciliation-service/internal/system/errors"
	"github.com/wso2/profile-reconciliation-service/internal/system/log"
)

// JudgementClientInterface is the model-backed judge used for free-text
// standardization and proposal validation. Callers must tolerate errors from
// Judge and fall back to deterministic behavior.
type JudgementClientInterface interface {
	Judge(ctx context.Context, prompt string) (string, error)
}

// GeminiJudgementClient calls the Gemini API through the configured model.
type GeminiJudgementClient struct {
	client  *genai.Client
	model   string
	once    sync.Once
	initErr error
}

// NewGeminiJudgementClient creates a judgement client from the runtime
// configuration. The underlying API client is created lazily on first use so
// the server can start without judge credentials when the judge is disabled.
func NewGeminiJudgementClient() *GeminiJudgementClient {

	judgeConfig := config.GetPRSRuntime().Config.Judge
	return &GeminiJudgementClient{
		model: resolveModel(judgeConfig.Model),
	}
}

func resolveModel(model string) string {

	if model == "" {
		return constants.DefaultJudgeModel
	}
	return model
}

func resolveAPIKeyEnv(name string) string {

	if name == "" {
		return constants.DefaultJudgeAPIKeyEnv
	}
	return name
}

func resolveTimeout(seconds int) time.Duration {

	if seconds <= 0 {
		seconds = constants.DefaultJudgeTimeoutSeconds
	}
	return time.Duration(seconds) * time.Second
}

func (c *GeminiJudgementClient) init(ctx context.Context) error {

	c.once.Do(func() {
		apiKeyEnv := resolveAPIKeyEnv(config.GetPRSRuntime().Config.Judge.APIKeyEnv)
		apiKey := os.Getenv(apiKeyEnv)
		if apiKey == "" {
			c.initErr = errors.NewServerError(errors.ErrorMessage{
				Code:    errors.JUDGEMENT_UNAVAILABLE.Code,
				Message: errors.JUDGEMENT_UNAVAILABLE.Message,
				Description: fmt.Sprintf("Judgement API key not found in environment variable %s.",
					apiKeyEnv),
			}, nil)
			return
		}
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			Backend: genai.BackendGeminiAPI,
			APIKey:  apiKey,
		})
		if err != nil {
			c.initErr = errors.NewServerError(errors.ErrorMessage{
				Code:        errors.JUDGEMENT_UNAVAILABLE.Code,
				Message:     errors.JUDGEMENT_UNAVAILABLE.Message,
				Description: "Failed to initialize judgement API client.",
			}, err)
			return
		}
		c.client = client
	})
	return c.initErr
}

// Judge sends the prompt to the configured model and returns the raw text
// response.
func (c *GeminiJudgementClient) Judge(ctx context.Context, prompt string) (string, error) {

	logger := log.GetLogger()
	if err := c.init(ctx); err != nil {
		return "", err
	}

	timeout := resolveTimeout(config.GetPRSRuntime().Config.Judge.TimeoutSeconds)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		errorMsg := "Judgement model call failed."
		logger.Debug(errorMsg, log.Error(err))
		return "", errors.NewServerError(errors.ErrorMessage{
			Code:        errors.JUDGEMENT_UNAVAILABLE.Code,
			Message:     errors.JUDGEMENT_UNAVAILABLE.Message,
			Description: errorMsg,
		}, err)
	}

	text := resp.Text()
	if text == "" {
		errorMsg := "Judgement model returned an empty response."
		logger.Debug(errorMsg)
		return "", errors.NewServerError(errors.ErrorMessage{
			Code:        errors.JUDGEMENT_UNAVAILABLE.Code,
			Message:     errors.JUDGEMENT_UNAVAILABLE.Message,
			Description: errorMsg,
		}, nil)
	}
	return text, nil
}
