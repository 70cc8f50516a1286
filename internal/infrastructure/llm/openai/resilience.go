package openai

import (
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kirillkom/campus-assistant/internal/infrastructure/resilience"
)

// classifyOpenAIError reads the status out of the SDK's error types so that
// OpenAI-compatible gateways retry like the other HTTP upstreams.
var classifyOpenAIError = resilience.ClassifyUpstreamWith(sdkStatusCode)

func sdkStatusCode(err error) (int, bool) {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}
	return 0, false
}

func markTemporary(operation string, err error) error {
	return resilience.MarkTemporary(operation, err, classifyOpenAIError)
}
