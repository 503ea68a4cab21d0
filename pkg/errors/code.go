package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Execution pipeline errors
// 14000-14999: Service transport errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200
	CacheMiss  ErrorCode = 10201

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Execution Errors (13000-13999) ==========

	// Language resolution (13000-13099)
	LanguageNotSupported ErrorCode = 13003
	InvalidLanguageSpec  ErrorCode = 13010

	// Pipeline (13100-13199)
	WorkerPoolFull   ErrorCode = 13100
	ExecutionFailed  ErrorCode = 13101
	CompilationError ErrorCode = 13102
	SpawnFailure     ErrorCode = 13110
	IOFailure        ErrorCode = 13111

	// ========== Service Transport Errors (14000-14999) ==========

	UnknownEvent   ErrorCode = 14000
	MalformedFrame ErrorCode = 14001
	RunNotFound    ErrorCode = 14100
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",

	// Cache
	CacheError: "Cache operation failed",
	CacheMiss:  "Cache miss",

	// Validation
	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	// Execution
	LanguageNotSupported: "Unsupported language",
	InvalidLanguageSpec:  "Invalid language definition",
	WorkerPoolFull:       "worker pool is full",
	ExecutionFailed:      "Execution failed",
	CompilationError:     "Compilation error",
	SpawnFailure:         "Failed to start process",
	IOFailure:            "File operation failed",

	// Service
	UnknownEvent:   "Unknown event",
	MalformedFrame: "Malformed message",
	RunNotFound:    "Run not found",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound, c == RunNotFound, c == CacheMiss:
		return 404
	case c == TooManyRequests, c == WorkerPoolFull:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == LanguageNotSupported, c == UnknownEvent, c == MalformedFrame:
		return 400
	case c == CompilationError:
		return 422
	default:
		return 500
	}
}
