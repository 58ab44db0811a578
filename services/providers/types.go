package providers

// Request describes the track lyrics are wanted for. Providers use the fields
// they understand: the primary service keys on TrackID, search-based
// providers on the descriptive fields.
type Request struct {
	TrackID  string
	Name     string
	Artist   string
	Album    string
	Duration float64 // seconds
}

// ProviderError represents an error from a provider with additional context
type ProviderError struct {
	Provider string
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Provider + ": " + e.Message
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a new ProviderError
func NewProviderError(provider, message string, err error) *ProviderError {
	return &ProviderError{
		Provider: provider,
		Message:  message,
		Err:      err,
	}
}
