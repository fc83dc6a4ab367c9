package shared

import "fmt"

var (
	// Credential and provider errors
	ErrNotConnected = fmt.Errorf("streaming account not connected")
	ErrProviderAuth = fmt.Errorf("provider authorization failed")
	ErrAccessToken  = fmt.Errorf("access token rejected")
	ErrRateLimited  = fmt.Errorf("provider rate limit exceeded")

	// Storage errors
	ErrRecordNotFound = fmt.Errorf("record not found")

	// Input validation errors
	ErrInvalidInput = fmt.Errorf("invalid input")
)

// ProviderError is an unclassified non-2xx response from the provider's
// resource API, carrying the status and message from the error body.
type ProviderError struct {
	Status  int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: status %d: %s", e.Status, e.Message)
}
