// Package agent runs an LLM conversation loop that answers forecast
// questions by calling the ensemble analysis tools.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// maxIterations bounds the tool-call loop so a confused model cannot spin
// forever against the forecast APIs.
const maxIterations = 12

const systemPromptFormat = `You are a weather forecast analyst. Today's date is %s.

You answer questions about weather forecasts by comparing multiple numerical
weather models. Use the tools to geocode locations, fetch forecasts, and
compute ensemble statistics, model agreement, and uncertainty summaries.
When models disagree, say so and quantify the disagreement. Temperatures are
in Fahrenheit, wind speeds in mph, precipitation in inches.`

// Agent drives chat completions with function tools until the model
// produces a final text answer.
type Agent struct {
	client openai.Client
	model  string
	tools  *Toolbox
}

// New creates an agent authenticated from the OPENAI_API_KEY environment
// variable.
func New(tools *Toolbox) (*Agent, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
	)

	return &Agent{
		client: client,
		model:  openai.ChatModelGPT4o,
		tools:  tools,
	}, nil
}

// Run asks one question and returns the model's final answer after any
// intermediate tool calls.
func (a *Agent) Run(ctx context.Context, question string) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: a.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(fmt.Sprintf(systemPromptFormat, time.Now().Format("2006-01-02"))),
			openai.UserMessage(question),
		},
		Tools: a.tools.Definitions(),
	}

	for i := 0; i < maxIterations; i++ {
		completion, err := a.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}
		if len(completion.Choices) == 0 {
			return "", errors.New("no completion choices returned")
		}

		msg := completion.Choices[0].Message
		params.Messages = append(params.Messages, msg.ToParam())

		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		for _, tc := range msg.ToolCalls {
			log.Printf("tool call: %s(%s)", tc.Function.Name, tc.Function.Arguments)
			result := a.tools.Dispatch(ctx, tc.Function.Name, tc.Function.Arguments)
			params.Messages = append(params.Messages, openai.ToolMessage(result, tc.ID))
		}
	}

	return "", fmt.Errorf("no final answer after %d iterations", maxIterations)
}
