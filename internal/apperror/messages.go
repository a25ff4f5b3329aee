package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:     "Service request timeout",
	CodeServiceUnavailable: "Service temporarily unavailable",
	CodeRateLimitExceeded:  "Rate limit exceeded",

	CodeInternalError: "Internal server error",
	CodeUnknownError:  "An unknown error occurred",

	CodeChainConnectionFailed: "Failed to connect to chain node",
	CodeChainSubscribeFailed:  "Failed to subscribe to new heads",
	CodeChainRPCError:         "Chain RPC call failed",
	CodeHeadNotFound:          "Block header not found",
	CodeGasEstimationFailed:   "Gas estimation failed",
	CodeFeeUnavailable:        "Fee data unavailable",
	CodeContractCallFailed:    "Contract call failed",
	CodeABIError:              "ABI encoding failed",
	CodeCircuitOpen:           "Circuit breaker is open",

	CodeInvalidDirection:    "Unknown swap direction",
	CodeInvalidAmount:       "Amount must be a positive decimal",
	CodeWalletMissing:       "No wallet connected",
	CodeSignerUnavailable:   "Wallet cannot sign transactions",
	CodeRateUnavailable:     "Exchange rate not available",
	CodeOperationInFlight:   "An operation is already in flight",
	CodeSubmissionRejected:  "Transaction submission rejected",
	CodeTransactionReverted: "Transaction failed on chain",
	CodeConfirmationAborted: "Confirmation wait aborted",
	CodeIllegalTransition:   "Illegal operation state transition",
}
