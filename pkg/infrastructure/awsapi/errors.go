package awsapi

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// HasErrorCode reports whether err is an AWS API error with the given code.
func HasErrorCode(err error, code string) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == code
	}
	return false
}

// IsAlreadyExists covers the per-service *AlreadyExists* error family so
// ensure-or-create operations can treat duplicate creation as success.
func IsAlreadyExists(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.ErrorCode(), "AlreadyExists") ||
			strings.Contains(apiErr.ErrorCode(), "DuplicateTargetGroupName")
	}
	return false
}

func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return strings.Contains(apiErr.ErrorCode(), "NotFound") ||
			strings.Contains(apiErr.ErrorCode(), "NotFoundException")
	}
	return false
}

func IsAccessDenied(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "AccessDenied" ||
			apiErr.ErrorCode() == "AccessDeniedException" ||
			apiErr.ErrorCode() == "UnauthorizedOperation"
	}
	return false
}
