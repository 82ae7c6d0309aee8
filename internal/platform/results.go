package platform

import "standcheck/internal/common"

// Result codes reported by the gaming network on logon failure. The set the
// checker cares about is closed; everything else maps to an unknown error
// that preserves the raw code.
const (
	ResultInvalidPassword    int32 = 5
	ResultLoggedInElsewhere  int32 = 6
	ResultInvalidGuardCode   int32 = 65
	ResultRateLimitExceeded  int32 = 84
	ResultLogonSessionDenied int32 = 34
)

// ErrorFromResult maps a platform result code onto the checker error
// taxonomy.
func ErrorFromResult(code int32) error {
	switch code {
	case ResultInvalidPassword:
		return common.ErrInvalidCredentials
	case ResultLoggedInElsewhere, ResultLogonSessionDenied:
		return common.ErrSessionConflict
	case ResultRateLimitExceeded:
		return common.ErrRateLimited
	case ResultInvalidGuardCode:
		return common.ErrGuardCodeInvalid
	default:
		return &common.UnknownPlatformError{Code: code}
	}
}
