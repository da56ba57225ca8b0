package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/bryanwahyu/chatlog-analyzer/internal/domain/ai"
	domain "github.com/bryanwahyu/chatlog-analyzer/internal/domain/analysis"
	"github.com/bryanwahyu/chatlog-analyzer/internal/infra/ai/prompt"
)

// DefaultThinkingBudget is the reasoning allowance sent with every request.
const DefaultThinkingBudget int32 = 32768

// Analyzer turns a chat transcript into a structured report with one model call.
// It holds only immutable configuration and is safe for concurrent use.
type Analyzer struct {
	Credentials    ai.CredentialSource
	NewClient      ai.ClientFactory
	Prompts        prompt.Set
	Model          string
	BaseURL        string
	ThinkingBudget int32
	Log            logrus.FieldLogger
}

// Analyze sends chatLog to the model, asking it to ignore messages from instructorNames.
// Every returned error is a *domain.Error; use domain.KindOf to branch on it.
func (a *Analyzer) Analyze(ctx context.Context, chatLog, instructorNames string) (domain.Report, error) {
	var apiKey string
	if a.Credentials != nil {
		apiKey = strings.TrimSpace(a.Credentials.APIKey())
	}
	if apiKey == "" {
		return domain.Report{}, a.fail(&domain.Error{Kind: domain.KindConfiguration})
	}

	text, err := a.generate(ctx, apiKey, prompt.UserPrompt(chatLog, instructorNames))
	if err != nil {
		return domain.Report{}, a.fail(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Report{}, a.fail(&domain.Error{Kind: domain.KindEmptyResponse})
	}

	report, err := domain.ParseReport(text)
	if err != nil {
		return domain.Report{}, a.fail(&domain.Error{Kind: domain.KindMalformedResponse, Err: err})
	}
	return report, nil
}

// generate builds a client for this call only and issues the single request.
func (a *Analyzer) generate(ctx context.Context, apiKey, userPrompt string) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = &domain.Error{Kind: domain.KindTransmission, Err: e}
				return
			}
			err = &domain.Error{Kind: domain.KindUnknown, Err: fmt.Errorf("%v", r)}
		}
	}()

	if a.NewClient == nil {
		return "", &domain.Error{Kind: domain.KindTransmission, Err: fmt.Errorf("no AI client factory configured")}
	}
	client, err := a.NewClient(ctx, ai.ClientConfig{APIKey: apiKey, BaseURL: a.BaseURL})
	if err != nil {
		return "", &domain.Error{Kind: domain.KindTransmission, Err: err}
	}

	budget := a.ThinkingBudget
	if budget == 0 {
		budget = DefaultThinkingBudget
	}
	text, err = client.Generate(ctx, ai.GenerateRequest{
		Model:             a.Model,
		SystemInstruction: a.Prompts.SystemInstruction,
		Prompt:            userPrompt,
		ResponseSchema:    a.Prompts.ResponseSchema,
		ThinkingBudget:    budget,
	})
	if err != nil {
		return "", &domain.Error{Kind: domain.KindTransmission, Err: err}
	}
	return text, nil
}

func (a *Analyzer) fail(err error) error {
	log := a.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	log.WithField("kind", domain.KindOf(err).String()).WithError(err).Error("error processing AI response")
	return err
}
