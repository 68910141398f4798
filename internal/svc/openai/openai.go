package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/seventv/image-resizer/internal/instance"
	"github.com/seventv/image-resizer/task"
	"go.uber.org/zap"
)

const prompt = `Describe this image for a web page. Reply with a JSON object with the keys
"description" (one or two sentences), "keywords" (up to eight short lowercase
keywords) and "eco_tip" (one sentence on serving this image with less energy).`

type Options struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

type Instance struct {
	client  *openai.Client
	options Options
}

func New(o Options) (instance.Analyzer, error) {
	if o.APIKey == "" {
		return nil, fmt.Errorf("missing OpenAI API key")
	}
	if o.Model == "" {
		o.Model = openai.GPT4oMini
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 300
	}
	if o.Timeout <= 0 {
		o.Timeout = time.Second * 30
	}

	config := openai.DefaultConfig(o.APIKey)
	if o.BaseURL != "" {
		config.BaseURL = o.BaseURL
	}

	return &Instance{
		client:  openai.NewClientWithConfig(config),
		options: o,
	}, nil
}

type reply struct {
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
	EcoTip      string   `json:"eco_tip"`
}

// Analyze never fails. Any error, timeout or malformed reply produces
// task.FallbackAnalysis().
func (i *Instance) Analyze(ctx context.Context, payload []byte, mime string) (result task.Analysis) {
	defer func() {
		if pnk := recover(); pnk != nil {
			zap.S().Errorw("panic in analysis",
				"panic", pnk,
			)
			result = task.FallbackAnalysis()
		}
	}()

	if len(payload) == 0 {
		return task.FallbackAnalysis()
	}

	lCtx, cancel := context.WithTimeout(ctx, i.options.Timeout)
	defer cancel()

	resp, err := i.client.CreateChatCompletion(lCtx, openai.ChatCompletionRequest{
		Model:     i.options.Model,
		MaxTokens: i.options.MaxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: prompt,
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(payload),
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
	})
	if err != nil {
		zap.S().Warnw("analysis request failed",
			"error", err,
		)
		return task.FallbackAnalysis()
	}

	if len(resp.Choices) == 0 {
		zap.S().Warnw("analysis returned no choices")
		return task.FallbackAnalysis()
	}

	r := reply{}
	if err := json.Unmarshal([]byte(stripFence(resp.Choices[0].Message.Content)), &r); err != nil {
		zap.S().Warnw("analysis reply is not json",
			"error", err,
		)
		return task.FallbackAnalysis()
	}

	if r.Description == "" {
		return task.FallbackAnalysis()
	}

	keywords := make([]string, 0, len(r.Keywords))
	for _, k := range r.Keywords {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}

	return task.Analysis{
		Description: r.Description,
		Keywords:    keywords,
		EcoTip:      r.EcoTip,
	}
}

// stripFence removes a markdown code fence some models wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")

	return strings.TrimSpace(s)
}
