package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/g3lasio/deepsearchd/internal/confidence"
)

const systemPrompt = `You are DeepSearch, an estimator for contractor projects.
Given a project type, region, and scope parameters, produce a complete
material and line-item list with realistic quantities for that region.
Respond with a single JSON object of the form
{"materials": [{"item": string, "quantity": number, "unit": string}, ...],
 "confidence": number}
where confidence is your 0.0-1.0 estimate of how complete the list is.
Respond with JSON only, no prose.`

// OpenAI generates lists through an OpenAI-compatible chat completion
// endpoint.
type OpenAI struct {
	client openai.Client
	model  string
}

// NewOpenAI creates a generator for the given model. baseURL is optional and
// allows pointing at any OpenAI-compatible endpoint.
func NewOpenAI(apiKey, baseURL, model string) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// generatedPayload is the JSON shape the model is prompted to return.
type generatedPayload struct {
	Materials  json.RawMessage `json:"materials"`
	Confidence float64         `json:"confidence"`
}

func (g *OpenAI) Generate(ctx context.Context, req Request) (*Result, error) {
	completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(promptFor(req)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty completion", ErrGenerationFailed)
	}

	content := strings.TrimSpace(completion.Choices[0].Message.Content)
	content = stripCodeFence(content)

	var payload generatedPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return nil, fmt.Errorf("%w: non-JSON completion: %v", ErrGenerationFailed, err)
	}
	if len(payload.Materials) == 0 {
		return nil, fmt.Errorf("%w: completion missing materials", ErrGenerationFailed)
	}

	return &Result{
		List:       payload.Materials,
		Confidence: confidence.Clamp(payload.Confidence),
	}, nil
}

func promptFor(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project type: %s\nRegion: %s\n", req.ProjectType, req.Region)
	if req.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", req.Description)
	}
	if len(req.ScopeParams) > 0 {
		keys := make([]string, 0, len(req.ScopeParams))
		for k := range req.ScopeParams {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("Scope:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %s\n", k, req.ScopeParams[k])
		}
	}
	return b.String()
}

// stripCodeFence removes a surrounding ```json fence some models insist on.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
