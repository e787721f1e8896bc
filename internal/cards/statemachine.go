// Package cards drives a card payment through step-up authentication
// challenges to a terminal outcome.
package cards

import (
	"net/http"
	"strings"
)

// NextStepType enumerates what a card rail wants next from the payer
type NextStepType string

const (
	StepSendPIN      NextStepType = "SEND_PIN"
	StepSendOTP      NextStepType = "SEND_OTP"
	StepSendPhone    NextStepType = "SEND_PHONE"
	StepSendBirthday NextStepType = "SEND_BIRTHDAY"
	StepSendAddress  NextStepType = "SEND_ADDRESS"
	StepOpenURL      NextStepType = "OPEN_URL"
	StepProcessing   NextStepType = "PROCESSING"
	StepSuccess      NextStepType = "SUCCESS"
	StepFailed       NextStepType = "FAILED"
)

// Terminal reports whether the step ends the authorization chain
func (s NextStepType) Terminal() bool {
	return s == StepSuccess || s == StepFailed
}

// ValidateType returns the challenge field name a rail expects when the
// caller answers this step, or "" for steps that take no answer.
func (s NextStepType) ValidateType() string {
	switch s {
	case StepSendPIN:
		return "pin"
	case StepSendOTP:
		return "otp"
	case StepSendPhone:
		return "phone"
	case StepSendBirthday:
		return "birthday"
	case StepSendAddress:
		return "address"
	}
	return ""
}

// DecodedStep is a provider next-step translated for the caller: which
// challenge to collect, a displayable prompt, and an HTTP-style code
// (206 = more input required, 202 = outcome pending, 200/400 terminal).
type DecodedStep struct {
	Step      NextStepType `json:"step"`
	Prompt    string       `json:"prompt"`
	Code      int          `json:"code"`
	Reference string       `json:"reference"`
	URL       string       `json:"url,omitempty"`
}

// stepTable maps every raw charge status the card rails emit onto a next
// step. Both rails' spellings live here and nowhere else.
var stepTable = map[string]NextStepType{
	"send_pin":      StepSendPIN,
	"pin":           StepSendPIN,
	"send_otp":      StepSendOTP,
	"otp":           StepSendOTP,
	"send_phone":    StepSendPhone,
	"send_birthday": StepSendBirthday,
	"send_address":  StepSendAddress,
	"open_url":      StepOpenURL,
	"redirect":      StepOpenURL,
	"pending":       StepProcessing,
	"processing":    StepProcessing,
	"success":       StepSuccess,
	"successful":    StepSuccess,
	"failed":        StepFailed,
	"error":         StepFailed,
	"declined":      StepFailed,
	"timeout":       StepFailed,
}

// DecodeNextStep translates a provider charge status into the engine's
// step vocabulary. Only the failure spellings in the table decode to
// FAILED; a status we cannot read decodes to PROCESSING and the outcome
// stays with reconciliation rather than being guessed terminal.
func DecodeNextStep(providerStatus, message, reference, url string) DecodedStep {
	step, ok := stepTable[strings.ToLower(strings.TrimSpace(providerStatus))]
	if !ok {
		step = StepProcessing
	}

	prompt := strings.ToLower(strings.TrimSpace(message))
	if prompt == "" {
		prompt = defaultPrompt(step)
	}

	code := http.StatusPartialContent
	switch step {
	case StepProcessing:
		code = http.StatusAccepted
	case StepSuccess:
		code = http.StatusOK
	case StepFailed:
		code = http.StatusBadRequest
	}

	decoded := DecodedStep{
		Step:      step,
		Prompt:    prompt,
		Code:      code,
		Reference: reference,
	}
	if step == StepOpenURL {
		decoded.URL = url
	}
	return decoded
}

func defaultPrompt(step NextStepType) string {
	switch step {
	case StepSendPIN:
		return "please enter your card pin"
	case StepSendOTP:
		return "please enter the otp sent to your phone"
	case StepSendPhone:
		return "please enter your phone number"
	case StepSendBirthday:
		return "please enter your date of birth"
	case StepSendAddress:
		return "please enter your billing address"
	case StepOpenURL:
		return "please complete authorization at the provided link"
	case StepProcessing:
		return "payment is processing, check back shortly"
	case StepSuccess:
		return "payment successful"
	}
	return "payment failed"
}
