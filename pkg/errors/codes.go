package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Aliases
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Molecule Module Error Codes
const (
	ErrCodeMoleculeInvalidSMILES         ErrorCode = "MOL_001"
	ErrCodeMoleculeParsingFailed         ErrorCode = "MOL_002"
	ErrCodeMoleculeStandardizationFailed ErrorCode = "MOL_003"
	ErrCodeMoleculeEmptyInput            ErrorCode = "MOL_004"
)

// PaDEL Module Error Codes
const (
	ErrCodePadelExecutionFailed     ErrorCode = "PADEL_001"
	ErrCodePadelTimeout             ErrorCode = "PADEL_002"
	ErrCodePadelSchemaProbeFailed   ErrorCode = "PADEL_003"
	ErrCodePadelEmptyOutput         ErrorCode = "PADEL_004"
	ErrCodePadelSchemaMismatch      ErrorCode = "PADEL_005"
	ErrCodePadelRecordCountMismatch ErrorCode = "PADEL_006"
	ErrCodePadelJarNotFound         ErrorCode = "PADEL_007"
)

// Featurizer Module Error Codes
const (
	ErrCodeBatchValidation    ErrorCode = "FEAT_001"
	ErrCodeFeaturizerNotFound ErrorCode = "FEAT_002"
	ErrCodeInvalidParams      ErrorCode = "FEAT_003"
	ErrCodeExportFailed       ErrorCode = "FEAT_004"
)

// ErrorCodeHTTPStatus maps ErrorCode to HTTP Status Code.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeMoleculeInvalidSMILES:         http.StatusBadRequest,
	ErrCodeMoleculeParsingFailed:         http.StatusBadRequest,
	ErrCodeMoleculeStandardizationFailed: http.StatusUnprocessableEntity,
	ErrCodeMoleculeEmptyInput:            http.StatusBadRequest,

	ErrCodePadelExecutionFailed:     http.StatusBadGateway,
	ErrCodePadelTimeout:             http.StatusGatewayTimeout,
	ErrCodePadelSchemaProbeFailed:   http.StatusServiceUnavailable,
	ErrCodePadelEmptyOutput:         http.StatusBadGateway,
	ErrCodePadelSchemaMismatch:      http.StatusBadGateway,
	ErrCodePadelRecordCountMismatch: http.StatusBadGateway,
	ErrCodePadelJarNotFound:         http.StatusServiceUnavailable,

	ErrCodeBatchValidation:    http.StatusUnprocessableEntity,
	ErrCodeFeaturizerNotFound: http.StatusNotFound,
	ErrCodeInvalidParams:      http.StatusBadRequest,
	ErrCodeExportFailed:       http.StatusInternalServerError,
}

// ErrorCodeMessage maps ErrorCode to a default message.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization error",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeMoleculeInvalidSMILES:         "invalid SMILES string",
	ErrCodeMoleculeParsingFailed:         "failed to parse molecule",
	ErrCodeMoleculeStandardizationFailed: "failed to standardize molecule",
	ErrCodeMoleculeEmptyInput:            "no molecules supplied",

	ErrCodePadelExecutionFailed:     "padel descriptor program failed",
	ErrCodePadelTimeout:             "padel descriptor program timed out",
	ErrCodePadelSchemaProbeFailed:   "failed to discover padel descriptor schema",
	ErrCodePadelEmptyOutput:         "padel descriptor program produced no output",
	ErrCodePadelSchemaMismatch:      "padel output does not match the discovered schema",
	ErrCodePadelRecordCountMismatch: "padel returned an unexpected number of records",
	ErrCodePadelJarNotFound:         "padel descriptor jar not found",

	ErrCodeBatchValidation:    "batch contains missing or NaN feature rows",
	ErrCodeFeaturizerNotFound: "featurizer not registered",
	ErrCodeInvalidParams:      "invalid featurizer parameters",
	ErrCodeExportFailed:       "failed to export features",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending
