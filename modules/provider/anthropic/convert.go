package anthropic

import (
	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/flemzord/policychat/internal/provider"
)

// convertRequest transforms a CompletionRequest into Messages API
// parameters. System messages move to the dedicated System field.
func convertRequest(req provider.CompletionRequest, cfg *Config) sdkanthropic.MessageNewParams {
	system, messages := req.System()

	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(cfg.Model),
		Messages:  convertMessages(messages),
		MaxTokens: int64(cfg.MaxTokens),
	}
	if system != "" {
		params.System = []sdkanthropic.TextBlockParam{{Text: system}}
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = int64(req.MaxTokens)
	}
	if req.Temperature != nil {
		params.Temperature = sdkanthropic.Float(*req.Temperature)
	}
	return params
}

func convertMessages(msgs []provider.Message) []sdkanthropic.MessageParam {
	result := make([]sdkanthropic.MessageParam, 0, len(msgs))
	for _, msg := range msgs {
		block := sdkanthropic.NewTextBlock(msg.Content)
		if msg.Role == provider.MessageRoleAssistant {
			result = append(result, sdkanthropic.NewAssistantMessage(block))
			continue
		}
		result = append(result, sdkanthropic.NewUserMessage(block))
	}
	return result
}

// convertResponse joins the text blocks of msg.
func convertResponse(msg *sdkanthropic.Message) provider.CompletionResponse {
	var content string
	for _, block := range msg.Content {
		if v, ok := block.AsAny().(sdkanthropic.TextBlock); ok {
			if content != "" {
				content += "\n"
			}
			content += v.Text
		}
	}

	return provider.CompletionResponse{
		Content:      content,
		FinishReason: convertStopReason(msg.StopReason),
		Usage: provider.TokenUsage{
			PromptTokens:     int(msg.Usage.InputTokens),
			CompletionTokens: int(msg.Usage.OutputTokens),
		},
	}
}

func convertStopReason(reason sdkanthropic.StopReason) provider.FinishReason {
	switch reason {
	case sdkanthropic.StopReasonMaxTokens:
		return provider.FinishReasonLength
	case sdkanthropic.StopReasonRefusal:
		return provider.FinishReasonFiltering
	default:
		return provider.FinishReasonStop
	}
}
