package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kirillkom/campus-assistant/internal/core/domain"
	"github.com/kirillkom/campus-assistant/internal/core/ports"
)

type askReply struct {
	domain.AskResponse
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// HandleAsk decodes one ask request, runs it and encodes the reply. The
// returned error is the one reported to the caller inside the reply.
func HandleAsk(ctx context.Context, answerer ports.QuestionAnswerer, data []byte) ([]byte, error) {
	var req domain.AskRequest
	if err := json.Unmarshal(data, &req); err != nil {
		err = domain.WrapError(domain.ErrInvalidInput, "decode ask request", err)
		return encodeError(err), err
	}

	result, err := answerer.Run(ctx, req.Question, req.History)
	if err != nil {
		return encodeError(err), err
	}
	payload, err := json.Marshal(askReply{AskResponse: domain.NewAskResponse(result)})
	if err != nil {
		err = fmt.Errorf("encode ask reply: %w", err)
		return encodeError(err), err
	}
	return payload, nil
}

func encodeError(err error) []byte {
	payload, _ := json.Marshal(askReply{Error: err.Error(), Code: domain.ErrorCode(err)})
	return payload
}

// DecodeAskReply turns a reply into a response or an error of the reported kind.
func DecodeAskReply(data []byte) (domain.AskResponse, error) {
	var reply askReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return domain.AskResponse{}, fmt.Errorf("decode ask reply: %w", err)
	}
	if reply.Error == "" {
		return reply.AskResponse, nil
	}
	if kind := domain.ErrorFromCode(reply.Code); kind != nil {
		return domain.AskResponse{}, domain.WrapError(kind, "remote ask", errors.New(reply.Error))
	}
	return domain.AskResponse{}, fmt.Errorf("remote ask: %s", reply.Error)
}
