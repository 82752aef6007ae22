package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"qwery/internal/apperr"
)

const CodeOK = 0

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{
		Code:    CodeOK,
		Message: "created",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}

// Fail writes err using its domain code; other errors are internal.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	if de, ok := apperr.As(err); ok {
		resp := APIResponse{Code: de.Code, Message: de.Message}
		if len(de.Details) > 0 {
			resp.Data = de.Details
		}
		c.JSON(de.HTTPStatus(), resp)
		return
	}
	code, message := Describe(err)
	c.JSON(http.StatusInternalServerError, APIResponse{Code: code, Message: message})
}

// Describe returns the code and message a client may see for err. The text
// of non-domain errors stays in the request log.
func Describe(err error) (int, string) {
	if de, ok := apperr.As(err); ok {
		return de.Code, de.Message
	}
	return apperr.CodeInternal, "internal server error"
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, apperr.CodeBadRequest, message)
}
