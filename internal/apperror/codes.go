package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	CodeServiceTimeout     Code = "SERVICE_TIMEOUT"
	CodeServiceUnavailable Code = "SERVICE_UNAVAILABLE"
	CodeRateLimitExceeded  Code = "RATE_LIMIT_EXCEEDED"

	CodeInternalError Code = "INTERNAL_ERROR"
	CodeUnknownError  Code = "UNKNOWN_ERROR"
)

// Chain error codes
const (
	CodeChainConnectionFailed Code = "CHAIN_CONNECTION_FAILED"
	CodeChainSubscribeFailed  Code = "CHAIN_SUBSCRIBE_FAILED"
	CodeChainRPCError         Code = "CHAIN_RPC_ERROR"
	CodeHeadNotFound          Code = "HEAD_NOT_FOUND"
	CodeGasEstimationFailed   Code = "GAS_ESTIMATION_FAILED"
	CodeFeeUnavailable        Code = "FEE_UNAVAILABLE"
	CodeContractCallFailed    Code = "CONTRACT_CALL_FAILED"
	CodeABIError              Code = "ABI_ERROR"
	CodeCircuitOpen           Code = "CIRCUIT_OPEN"
)

// Swap error codes
const (
	CodeInvalidDirection    Code = "INVALID_DIRECTION"
	CodeInvalidAmount       Code = "INVALID_AMOUNT"
	CodeWalletMissing       Code = "WALLET_MISSING"
	CodeSignerUnavailable   Code = "SIGNER_UNAVAILABLE"
	CodeRateUnavailable     Code = "RATE_UNAVAILABLE"
	CodeOperationInFlight   Code = "OPERATION_IN_FLIGHT"
	CodeSubmissionRejected  Code = "SUBMISSION_REJECTED"
	CodeTransactionReverted Code = "TRANSACTION_REVERTED"
	CodeConfirmationAborted Code = "CONFIRMATION_ABORTED"
	CodeIllegalTransition   Code = "ILLEGAL_TRANSITION"
)
