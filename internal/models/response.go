package models

// APIResponse is a generic API response wrapper
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
	}
}

// NewValidationErrorResponse creates a validation error response
func NewValidationErrorResponse(errors map[string]string) APIResponse {
	return APIResponse{
		Success: false,
		Error:   "Validation failed",
		Errors:  errors,
	}
}

// NewConflictResponse creates an error response that also carries the
// current state of the conflicting resource.
func NewConflictResponse(message string, current interface{}) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
		Data:    current,
	}
}

// NewPartialResponse reports a failure together with the work that was
// completed before it.
func NewPartialResponse(message string, completed interface{}) APIResponse {
	return APIResponse{
		Success: false,
		Error:   message,
		Data:    completed,
	}
}
