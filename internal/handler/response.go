package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"errorCode,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func Ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{Code: 0, Message: "ok", Data: data})
}

// Fail sends an error with the import API's coarse error code
// (INVALID_URL, FETCH_FAILED, PARSE_FAILED) or an endpoint-specific one.
func Fail(c *gin.Context, status int, errorCode, message string) {
	c.JSON(status, apiResponse{Code: status, Message: message, Error: errorCode})
}
