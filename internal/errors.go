package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation        ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound          ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized      ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden         ErrorType = "FORBIDDEN"
	ErrorTypeConflict          ErrorType = "CONFLICT"
	ErrorTypeInsufficientStock ErrorType = "INSUFFICIENT_STOCK"
	ErrorTypeRateLimited       ErrorType = "RATE_LIMITED"
	ErrorTypeInternal          ErrorType = "INTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidBody      ErrorCode = "INVALID_BODY"
	ErrCodeInvalidID        ErrorCode = "INVALID_ID"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeTooManyRequests  ErrorCode = "TOO_MANY_REQUESTS"

	ErrCodeInvalidCredentials     ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeMissingToken           ErrorCode = "MISSING_TOKEN"
	ErrCodeInvalidToken           ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired           ErrorCode = "TOKEN_EXPIRED"
	ErrCodeForbidden              ErrorCode = "FORBIDDEN"
	ErrCodePasswordChangeRequired ErrorCode = "PASSWORD_CHANGE_REQUIRED"
	ErrCodePasswordReused         ErrorCode = "PASSWORD_REUSED"
	ErrCodeWrongPassword          ErrorCode = "WRONG_PASSWORD"
	ErrCodeBootstrapClosed        ErrorCode = "BOOTSTRAP_CLOSED"

	ErrCodeUserNotFound        ErrorCode = "USER_NOT_FOUND"
	ErrCodeEmailTaken          ErrorCode = "EMAIL_TAKEN"
	ErrCodeCannotDeleteSelf    ErrorCode = "CANNOT_DELETE_SELF"
	ErrCodeSuperAdminRequired  ErrorCode = "SUPER_ADMIN_REQUIRED"
	ErrCodeUserHasOrders       ErrorCode = "USER_HAS_ORDERS"
	ErrCodeRoleNotFound        ErrorCode = "ROLE_NOT_FOUND"
	ErrCodeRoleNameTaken       ErrorCode = "ROLE_NAME_TAKEN"
	ErrCodeRoleInUse           ErrorCode = "ROLE_IN_USE"
	ErrCodePermissionNotFound  ErrorCode = "PERMISSION_NOT_FOUND"
	ErrCodePermissionNameTaken ErrorCode = "PERMISSION_NAME_TAKEN"
	ErrCodeDuplicateAssignment ErrorCode = "DUPLICATE_ASSIGNMENT"
	ErrCodeAssignmentNotFound  ErrorCode = "ASSIGNMENT_NOT_FOUND"
	ErrCodeProtectedRole       ErrorCode = "PROTECTED_ROLE"
	ErrCodeProtectedPermission ErrorCode = "PROTECTED_PERMISSION"

	ErrCodeInventoryNotFound ErrorCode = "INVENTORY_NOT_FOUND"
	ErrCodeSKUTaken          ErrorCode = "SKU_TAKEN"
	ErrCodeInventoryInUse    ErrorCode = "INVENTORY_IN_USE"
	ErrCodeInsufficientStock ErrorCode = "INSUFFICIENT_STOCK"
	ErrCodeEmptyCheckout     ErrorCode = "EMPTY_CHECKOUT"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			messages := make([]string, len(validationErrors.Errors))
			for i, err := range validationErrors.Errors {
				messages[i] = err.Message
			}
			return strings.Join(messages, "; ")
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on error code so that errors built per occurrence still compare
// equal to the package sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Type == t.Type
}

// WithCause returns a copy carrying cause. Sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithMessage(message string) *AppError {
	cp := *e
	cp.Message = message
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldErrors(errs []ValidationError) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    ValidationErrors{Errors: errs},
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return NewValidationFieldErrors([]ValidationError{{Field: field, Message: message, Code: string(code)}})
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewInsufficientStockError reports which item could not be fulfilled.
func NewInsufficientStockError(inventoryID int64, requested, available int64) *AppError {
	return &AppError{
		Type:       ErrorTypeInsufficientStock,
		Code:       ErrCodeInsufficientStock,
		Message:    fmt.Sprintf("Insufficient stock for item %d", inventoryID),
		StatusCode: http.StatusConflict,
		Details: map[string]int64{
			"inventory_id": inventoryID,
			"requested":    requested,
			"available":    available,
		},
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

var (
	ErrInvalidCredentials     = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrMissingToken           = NewUnauthorizedError("Missing authorization token", ErrCodeMissingToken)
	ErrInvalidToken           = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired           = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrForbidden              = NewForbiddenError("Access denied", ErrCodeForbidden)
	ErrPasswordChangeRequired = NewForbiddenError("Password change required", ErrCodePasswordChangeRequired)
	ErrPasswordReused         = NewValidationError("New password must be different from the current password", ErrCodePasswordReused)
	ErrWrongPassword          = NewUnauthorizedError("Current password is incorrect", ErrCodeWrongPassword)
	ErrBootstrapClosed        = NewForbiddenError("Super admin registration is closed", ErrCodeBootstrapClosed)

	ErrUserNotFound       = NewNotFoundError("User not found", ErrCodeUserNotFound)
	ErrEmailTaken         = NewConflictError("Email already in use", ErrCodeEmailTaken)
	ErrCannotDeleteSelf   = NewForbiddenError("You cannot delete your own account", ErrCodeCannotDeleteSelf)
	ErrSuperAdminRequired = NewForbiddenError("Only a Super Admin can assign roles or manage Super Admin accounts", ErrCodeSuperAdminRequired)
	ErrUserHasOrders      = NewConflictError("User has recorded orders", ErrCodeUserHasOrders)

	ErrRoleNotFound        = NewNotFoundError("Role not found", ErrCodeRoleNotFound)
	ErrRoleNameTaken       = NewConflictError("Role name already exists", ErrCodeRoleNameTaken)
	ErrRoleInUse           = NewConflictError("Role is still assigned to users", ErrCodeRoleInUse)
	ErrPermissionNotFound  = NewNotFoundError("Permission not found", ErrCodePermissionNotFound)
	ErrPermissionNameTaken = NewConflictError("Permission name already exists", ErrCodePermissionNameTaken)
	ErrDuplicateAssignment = NewConflictError("Permission already assigned to role", ErrCodeDuplicateAssignment)
	ErrAssignmentNotFound  = NewNotFoundError("Permission is not assigned to role", ErrCodeAssignmentNotFound)
	ErrProtectedRole       = NewForbiddenError("The Super Admin role cannot be renamed, deleted or reduced", ErrCodeProtectedRole)
	ErrProtectedPermission = NewForbiddenError("Built-in permissions cannot be renamed or deleted", ErrCodeProtectedPermission)

	ErrInventoryNotFound = NewNotFoundError("Inventory item not found", ErrCodeInventoryNotFound)
	ErrSKUTaken          = NewConflictError("SKU already exists", ErrCodeSKUTaken)
	ErrInventoryInUse    = NewConflictError("Inventory item is referenced by orders", ErrCodeInventoryInUse)
	ErrInsufficientStock = &AppError{Type: ErrorTypeInsufficientStock, Code: ErrCodeInsufficientStock, Message: "Insufficient stock", StatusCode: http.StatusConflict}
	ErrEmptyCheckout     = NewValidationError("Checkout requires at least one item", ErrCodeEmptyCheckout)

	ErrTooManyRequests = &AppError{Type: ErrorTypeRateLimited, Code: ErrCodeTooManyRequests, Message: "Too many requests, try again later", StatusCode: http.StatusTooManyRequests}
)

// IsAppError unwraps err looking for an *AppError.
func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

type Response struct {
	Error *AppError `json:"error"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}
