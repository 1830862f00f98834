package response

import (
	"github.com/gin-gonic/gin"

	"crew-tracker/internal/api/code"
)

// Response is the envelope every /api route answers with.
type Response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func Success(c *gin.Context, data any) {
	c.JSON(code.GetStatus(code.ErrSuccess), Response{
		Code:    code.ErrSuccess,
		Message: code.GetMessage(code.ErrSuccess),
		Data:    data,
	})
}

func Fail(c *gin.Context, errorCode int, data any) {
	FailWithMessage(c, errorCode, code.GetMessage(errorCode), data)
}

// FailWithMessage is used when the message is meant for the user verbatim,
// e.g. validation and Traccar errors.
func FailWithMessage(c *gin.Context, errorCode int, message string, data any) {
	c.JSON(code.GetStatus(errorCode), Response{
		Code:    errorCode,
		Message: message,
		Data:    data,
	})
}
