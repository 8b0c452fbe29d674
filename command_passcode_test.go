package claims_test

import (
	"context"
	"testing"
	"time"

	claims "github.com/goliatone/go-claims"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRequestPasscodeCommand(t *testing.T) {
	api := &MockAuthAPI{}
	clock := &testClock{now: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)}

	api.On("SendOTP", mock.Anything, "9876543210").Return(nil).Once()

	flow := newTestFlow(t, api, clock)
	handler := &claims.RequestPasscodeHandler{Flow: flow}

	var resp *claims.RequestPasscodeResponse
	msg := claims.RequestPasscodeMessage{
		Mobile:     "9876543210",
		OnResponse: func(r *claims.RequestPasscodeResponse) { resp = r },
	}

	assert.Equal(t, "challenge.passcode_request", msg.Type())
	require.NoError(t, handler.Execute(context.Background(), msg))

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, 120*time.Second, resp.Remaining)
	api.AssertExpectations(t)
}

func TestRequestPasscodeCommandSurfacesCooldown(t *testing.T) {
	api := &MockAuthAPI{}
	clock := &testClock{now: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)}

	api.On("SendOTP", mock.Anything, "9876543210").Return(nil).Once()

	flow := newTestFlow(t, api, clock)
	handler := &claims.RequestPasscodeHandler{Flow: flow}

	require.NoError(t, handler.Execute(context.Background(), claims.RequestPasscodeMessage{Mobile: "9876543210"}))

	err := handler.Execute(context.Background(), claims.RequestPasscodeMessage{Mobile: "9876543210"})
	require.Error(t, err)
	assert.ErrorIs(t, err, claims.ErrCooldownActive)
	api.AssertExpectations(t)
}

func TestVerifyPasscodeCommand(t *testing.T) {
	api := &MockAuthAPI{}
	clock := &testClock{now: time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)}

	api.On("SendOTP", mock.Anything, "9876543210").Return(nil).Once()
	api.On("VerifyOTP", mock.Anything, "9876543210", "482913").
		Return(&claims.AuthResult{Token: "tok-1"}, nil).Once()
	api.On("Me", mock.Anything, "tok-1").
		Return(activeFarmer(), nil).Once()

	flow := newTestFlow(t, api, clock)
	require.NoError(t, flow.Request(context.Background(), "9876543210"))

	handler := &claims.VerifyPasscodeHandler{Flow: flow}

	var resp *claims.VerifyPasscodeResponse
	msg := claims.VerifyPasscodeMessage{
		Code:       "482913",
		OnResponse: func(r *claims.VerifyPasscodeResponse) { resp = r },
	}

	assert.Equal(t, "challenge.passcode_verify", msg.Type())
	require.NoError(t, handler.Execute(context.Background(), msg))

	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.True(t, resp.Session.IsAuthenticated())
	api.AssertExpectations(t)
}
