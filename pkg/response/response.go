package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/drivehub/drivehub-auth-api/pkg/errors"
)

// ErrorBody is the error half of the response contract.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON sends a success response. Every payload field is merged into the
// envelope next to the success flag, matching the client contract
// {"success":true, "user":..., "accessToken":...}.
func JSON(c *gin.Context, status int, payload gin.H) {
	body := gin.H{"success": true}
	for k, v := range payload {
		body[k] = v
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(status, body)
}

// OK sends a 200 success response.
func OK(c *gin.Context, payload gin.H) {
	JSON(c, http.StatusOK, payload)
}

// Created sends a 201 success response.
func Created(c *gin.Context, payload gin.H) {
	JSON(c, http.StatusCreated, payload)
}

// Message sends a success response carrying only a message.
func Message(c *gin.Context, status int, message string) {
	JSON(c, status, gin.H{"message": message})
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, gin.H{
		"success": false,
		"error":   ErrorBody{Code: appErr.Code, Message: appErr.Message},
	})
}
