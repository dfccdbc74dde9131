package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/finwise/internal/pkg/errcode"
	appErr "github.com/xxxsen/finwise/internal/pkg/errors"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// Fail writes err using the code of the first sentinel it wraps.
func Fail(c *gin.Context, err error) {
	code, msg := Classify(err)
	Error(c, code, msg)
}

// Classify maps an application error to its response code and the
// message shown to the client.
func Classify(err error) (int, string) {
	switch {
	case err == nil:
		return 0, ""
	case errors.Is(err, appErr.ErrUnauthorized):
		return errcode.ErrUnauthorized, "unauthorized"
	case errors.Is(err, appErr.ErrNotFound):
		return errcode.ErrNotFound, "not found"
	case errors.Is(err, appErr.ErrEmptyUpload):
		return errcode.ErrInvalidFile, err.Error()
	case errors.Is(err, appErr.ErrUnsupported):
		return errcode.ErrInvalidFile, err.Error()
	case errors.Is(err, appErr.ErrInvalid):
		return errcode.ErrInvalid, err.Error()
	case errors.Is(err, appErr.ErrConflict):
		return errcode.ErrConflict, "conflict"
	case errors.Is(err, appErr.ErrTooMany):
		return errcode.ErrTooMany, "too many requests"
	case errors.Is(err, appErr.ErrTimeout):
		return errcode.ErrTimeout, "backend timeout, please retry"
	case errors.Is(err, appErr.ErrUnavailable):
		return errcode.ErrUnavailable, "backend unavailable, please retry"
	case errors.Is(err, appErr.ErrInconsistent):
		return errcode.ErrDeleteFailed, "delete did not take effect"
	default:
		return errcode.ErrInternal, "internal error"
	}
}
