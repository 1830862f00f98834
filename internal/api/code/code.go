package code

import "net/http"

// Envelope codes (100xxx general, 101xxx connection, 102xxx traccar).
const (
	ErrSuccess int = iota + 100000
	ErrUnknown
	ErrBind
	ErrValidation
)

const (
	ErrNotConnected int = iota + 101000
)

const (
	ErrTraccar int = iota + 102000
)

var codeMessageMap = map[int]string{
	ErrSuccess:      "ok",
	ErrUnknown:      "unknown error",
	ErrBind:         "malformed request body",
	ErrValidation:   "invalid request",
	ErrNotConnected: "Connect to a Traccar server first.",
	ErrTraccar:      "Traccar request failed",
}

var codeStatusMap = map[int]int{
	ErrSuccess:      http.StatusOK,
	ErrUnknown:      http.StatusInternalServerError,
	ErrBind:         http.StatusBadRequest,
	ErrValidation:   http.StatusBadRequest,
	ErrNotConnected: http.StatusConflict,
	ErrTraccar:      http.StatusBadGateway,
}

func GetMessage(code int) string {
	if msg, ok := codeMessageMap[code]; ok {
		return msg
	}
	return codeMessageMap[ErrUnknown]
}

// GetStatus maps an envelope code to its HTTP status; unknown codes are 500.
func GetStatus(code int) int {
	if status, ok := codeStatusMap[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
