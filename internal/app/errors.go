package app

import (
	"fmt"
	"net/http"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

func notFound(message string) *DomainError {
	return domainError(http.StatusNotFound, "NOT_FOUND", message, nil)
}

func invalidTransition(suggestionID, status string) *DomainError {
	return domainError(http.StatusConflict, "INVALID_TRANSITION",
		"suggestion is already terminal", map[string]any{
			"suggestionId": suggestionID,
			"status":       status,
		})
}

func unknownSuggestion(suggestionID string) *DomainError {
	return domainError(http.StatusNotFound, "UNKNOWN_SUGGESTION",
		"suggestion does not exist", map[string]any{"suggestionId": suggestionID})
}

func unknownParent(parentID string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "UNKNOWN_PARENT",
		"parent message does not exist under this suggestion", map[string]any{"parentId": parentID})
}

func validationError(message string) *DomainError {
	return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", message, nil)
}
