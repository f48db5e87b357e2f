package protocol

// Disconnect and error reasons carried in SHOW_ERROR / DISCONNECT payloads.
const (
	ErrBadVersion     = "E_BAD_VERSION"
	ErrBadRequest     = "E_BAD_REQUEST"
	ErrServerFull     = "E_SERVER_FULL"
	ErrPermission     = "E_PERMISSION_DENIED"
	ErrRateLimit      = "E_RATE_LIMIT"
	ErrUnknownAction  = "E_UNKNOWN_ACTION"
	ErrDesynchronised = "E_DESYNC"
	ErrServerShutdown = "E_SERVER_SHUTDOWN"
)

var knownCodes = map[string]struct{}{
	ErrBadVersion:     {},
	ErrBadRequest:     {},
	ErrServerFull:     {},
	ErrPermission:     {},
	ErrRateLimit:      {},
	ErrUnknownAction:  {},
	ErrDesynchronised: {},
	ErrServerShutdown: {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
