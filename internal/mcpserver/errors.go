// Package mcpserver exposes betterspotlight's search engine over the
// Model Context Protocol, grounded on the teacher's internal/mcp
// package: a thin wrapper around github.com/modelcontextprotocol/go-sdk
// that maps domain errors onto JSON-RPC error codes and registers one
// tool per query surface.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
)

// JSON-RPC and betterspotlight-specific MCP error codes.
const (
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
	ErrCodeTimeout        = -32001
	ErrCodeIndexUnhealthy = -32002
)

var (
	// ErrToolNotFound indicates the requested tool does not exist.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidParams indicates invalid parameters were provided.
	ErrInvalidParams = errors.New("invalid parameters")
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a domain error into an MCPError.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "request timed out"}
	case errors.Is(err, ErrToolNotFound):
		return &MCPError{Code: ErrCodeMethodNotFound, Message: err.Error()}
	case errors.Is(err, ErrInvalidParams):
		return &MCPError{Code: ErrCodeInvalidParams, Message: err.Error()}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: err.Error()}
	}
}

// NewInvalidParamsError creates an MCPError for a bad tool argument.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}
