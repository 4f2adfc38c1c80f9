package httputil

// Machine-readable error codes returned in the envelope's code field
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeRouteNotFound      = "ROUTE_NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"

	// auth
	CodeEmailAlreadyExists       = "EMAIL_ALREADY_EXISTS"
	CodeInvalidCredentials       = "INVALID_CREDENTIALS"
	CodeEmailNotVerified         = "EMAIL_NOT_VERIFIED"
	CodeInvalidVerificationToken = "INVALID_VERIFICATION_TOKEN"
	CodeTokenExpired             = "TOKEN_EXPIRED"
	CodeRefreshTokenRequired     = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken      = "INVALID_REFRESH_TOKEN"
	CodeInvalidResetToken        = "INVALID_RESET_TOKEN"
	CodeInvalidAuthHeader        = "INVALID_AUTH_HEADER"
	CodeMissingAuth              = "MISSING_AUTH"
	CodeInvalidToken             = "INVALID_TOKEN"
	CodeUserNotFound             = "USER_NOT_FOUND"

	// events
	CodeEventNotFound  = "EVENT_NOT_FOUND"
	CodeEventForbidden = "EVENT_FORBIDDEN"
)
