package cards

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeNextStep_InputSteps(t *testing.T) {
	tests := []struct {
		raw  string
		step NextStepType
	}{
		{"send_pin", StepSendPIN},
		{"PIN", StepSendPIN},
		{"send_otp", StepSendOTP},
		{"otp", StepSendOTP},
		{"send_phone", StepSendPhone},
		{"send_birthday", StepSendBirthday},
		{"send_address", StepSendAddress},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			decoded := DecodeNextStep(tt.raw, "", "TXN_A", "")
			assert.Equal(t, tt.step, decoded.Step)
			assert.Equal(t, http.StatusPartialContent, decoded.Code)
			assert.Equal(t, "TXN_A", decoded.Reference)
			assert.NotEmpty(t, decoded.Prompt)
			assert.Empty(t, decoded.URL)
		})
	}
}

func TestDecodeNextStep_OpenURL(t *testing.T) {
	decoded := DecodeNextStep("open_url", "", "TXN_A", "https://rail.example/3ds")
	assert.Equal(t, StepOpenURL, decoded.Step)
	assert.Equal(t, http.StatusPartialContent, decoded.Code)
	assert.Equal(t, "https://rail.example/3ds", decoded.URL)

	// redirect is the other rail's spelling of the same step
	decoded = DecodeNextStep("redirect", "", "TXN_A", "https://rail.example/3ds")
	assert.Equal(t, StepOpenURL, decoded.Step)
}

func TestDecodeNextStep_Terminal(t *testing.T) {
	decoded := DecodeNextStep("success", "", "TXN_A", "")
	assert.Equal(t, StepSuccess, decoded.Step)
	assert.Equal(t, http.StatusOK, decoded.Code)

	decoded = DecodeNextStep("declined", "Card declined", "TXN_A", "")
	assert.Equal(t, StepFailed, decoded.Step)
	assert.Equal(t, http.StatusBadRequest, decoded.Code)
	assert.Equal(t, "card declined", decoded.Prompt)
}

func TestDecodeNextStep_UnknownIsProcessing(t *testing.T) {
	for _, raw := range []string{"mystery_status", "challenge_pending", "pending", "processing"} {
		decoded := DecodeNextStep(raw, "", "TXN_A", "")
		assert.Equal(t, StepProcessing, decoded.Step, raw)
		assert.Equal(t, http.StatusAccepted, decoded.Code, raw)
		assert.False(t, decoded.Step.Terminal(), raw)
	}
}

func TestDecodeNextStep_OnlyListedSpellingsFail(t *testing.T) {
	for _, raw := range []string{"failed", "error", "declined", "timeout"} {
		decoded := DecodeNextStep(raw, "", "TXN_A", "")
		assert.Equal(t, StepFailed, decoded.Step, raw)
		assert.Equal(t, http.StatusBadRequest, decoded.Code, raw)
	}
}

func TestNextStepType_Terminal(t *testing.T) {
	assert.True(t, StepSuccess.Terminal())
	assert.True(t, StepFailed.Terminal())
	assert.False(t, StepSendOTP.Terminal())
	assert.False(t, StepOpenURL.Terminal())
	assert.False(t, StepProcessing.Terminal())
}

func TestNextStepType_ValidateType(t *testing.T) {
	assert.Equal(t, "pin", StepSendPIN.ValidateType())
	assert.Equal(t, "otp", StepSendOTP.ValidateType())
	assert.Equal(t, "phone", StepSendPhone.ValidateType())
	assert.Equal(t, "birthday", StepSendBirthday.ValidateType())
	assert.Equal(t, "address", StepSendAddress.ValidateType())
	assert.Empty(t, StepOpenURL.ValidateType())
	assert.Empty(t, StepProcessing.ValidateType())
	assert.Empty(t, StepSuccess.ValidateType())
	assert.Empty(t, StepFailed.ValidateType())
}
