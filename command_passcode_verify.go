package claims

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type VerifyPasscodeMessage struct {
	Code       string `json:"code" example:"482913" doc:"Passcode received by the farmer."`
	OnResponse func(resp *VerifyPasscodeResponse)
}

func (p VerifyPasscodeMessage) Type() string { return "challenge.passcode_verify" }

type VerifyPasscodeResponse struct {
	Session *Session
	Success bool
}

type VerifyPasscodeHandler struct {
	Flow *ChallengeFlow
}

func (h *VerifyPasscodeHandler) Execute(ctx context.Context, event VerifyPasscodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during passcode verification",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *VerifyPasscodeHandler) execute(ctx context.Context, event VerifyPasscodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	session, err := h.Flow.Verify(ctx, event.Code)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to verify passcode")
	}

	if event.OnResponse != nil {
		event.OnResponse(&VerifyPasscodeResponse{
			Session: session,
			Success: true,
		})
	}

	return nil
}
