package wallet

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/next-trace/scg-wallet-bridge/bridge"
)

// ErrCodeInternal marks failures that are not domain errors. Their details stay in the local log.
const ErrCodeInternal = "INTERNAL"

const internalMessage = "internal error"

// ErrorBody is the wire form of a failed operation.
type ErrorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// TransferResult answers a transfer request: exactly one field is set.
type TransferResult struct {
	Transfer *Transfer  `json:"transfer,omitempty"`
	Error    *ErrorBody `json:"error,omitempty"`
}

// Handler serves CreateTransfer over the bridge. Every request gets a reply; failures
// are reported in TransferResult.Error so the caller never waits out its timeout.
func (s *TransferService) Handler() bridge.HandlerFunc {
	return func(ctx context.Context, payload json.RawMessage) (any, error) {
		var req TransferRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return TransferResult{Error: &ErrorBody{Code: ErrCodeInvalidTransfer, Message: "malformed transfer request"}}, nil
		}

		t, err := s.CreateTransfer(ctx, req)
		if err != nil {
			body := errorBody(err)
			if body.Code == ErrCodeInternal {
				s.logger.ErrorContext(ctx, "transfer request failed", "error", err)
			}

			return TransferResult{Error: body}, nil
		}

		return TransferResult{Transfer: &t}, nil
	}
}

func errorBody(err error) *ErrorBody {
	var de *DomainError
	if errors.As(err, &de) {
		return &ErrorBody{Code: de.Code, Message: de.Message, Retryable: IsRetryable(err)}
	}

	return &ErrorBody{Code: ErrCodeInternal, Message: internalMessage}
}
