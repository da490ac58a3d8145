package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider rejected the call for quota or rate reasons (HTTP 429).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyCompletion indicates the provider answered without any choices.
var ErrEmptyCompletion = errors.New("ai returned no choices")
