package apperror

// Code 业务错误码，供上层映射为 HTTP 状态
type Code string

const (
	CodeUnknown          Code = "UNKNOWN"
	CodeNotFound         Code = "NOT_FOUND"
	CodeAlreadyConnected Code = "ALREADY_CONNECTED"
	CodeBlocked          Code = "BLOCKED"
	CodeServiceMismatch  Code = "SERVICE_MISMATCH"
	CodeSelfBlock        Code = "SELF_BLOCK"
	CodeValidation       Code = "VALIDATION_ERROR"
	CodePersistence      Code = "PERSISTENCE_FAILURE"
)
