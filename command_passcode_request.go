package claims

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RequestPasscodeMessage struct {
	Mobile     string `json:"mobile" example:"9876543210" doc:"Farmer mobile number."`
	Resend     bool   `json:"resend,omitempty" doc:"Re-deliver the passcode for the active challenge."`
	OnResponse func(resp *RequestPasscodeResponse)
}

func (p RequestPasscodeMessage) Type() string { return "challenge.passcode_request" }

type RequestPasscodeResponse struct {
	Mobile    string
	Remaining time.Duration
	Success   bool
}

type RequestPasscodeHandler struct {
	Flow *ChallengeFlow
}

func (h *RequestPasscodeHandler) Execute(ctx context.Context, event RequestPasscodeMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during passcode request",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RequestPasscodeHandler) execute(ctx context.Context, event RequestPasscodeMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var err error
	if event.Resend {
		err = h.Flow.Resend(ctx)
	} else {
		err = h.Flow.Request(ctx, event.Mobile)
	}

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to request passcode")
	}

	if event.OnResponse != nil {
		event.OnResponse(&RequestPasscodeResponse{
			Mobile:    event.Mobile,
			Remaining: h.Flow.Remaining(),
			Success:   true,
		})
	}

	return nil
}
