package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199)
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeMissingConfiguration ErrorCode = 101
	ErrCodeInvalidCredentials   ErrorCode = 102
	ErrCodeInvalidPeriod        ErrorCode = 103
	ErrCodeInvalidQuantity      ErrorCode = 104
	ErrCodeInvalidInterval      ErrorCode = 105

	// Market data errors (200-299)
	ErrCodeDataUnavailable     ErrorCode = 200
	ErrCodeDataParseFailed     ErrorCode = 201
	ErrCodeInsufficientHistory ErrorCode = 202
	ErrCodeStreamClosed        ErrorCode = 203

	// Indicator errors (300-399)
	ErrCodeIndicatorNotFound      ErrorCode = 300
	ErrCodeIndicatorAlreadyExists ErrorCode = 301
	ErrCodeIndicatorCalculation   ErrorCode = 302

	// Signal/strategy errors (400-499)
	ErrCodeEvaluatorConfig  ErrorCode = 400
	ErrCodeEvaluatorRuntime ErrorCode = 401

	// Order/broker errors (500-599)
	ErrCodeOrderRejected     ErrorCode = 500
	ErrCodeOrderCancelFailed ErrorCode = 501
	ErrCodeBrokerUnavailable ErrorCode = 502
	ErrCodeInvalidOrder      ErrorCode = 503

	// State/persistence errors (600-699)
	ErrCodePersistenceFailure ErrorCode = 600
	ErrCodeStateCorrupted     ErrorCode = 601

	// Notification errors (700-799)
	ErrCodeNotificationFailure ErrorCode = 700
)
