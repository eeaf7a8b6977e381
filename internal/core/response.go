// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Meta struct {
	Page       int    `json:"page,omitempty"`
	PageSize   int    `json:"page_size,omitempty"`
	Total      int    `json:"total,omitempty"`
	TotalPages int    `json:"total_pages,omitempty"`
	NextCursor string `json:"next_cursor,omitempty"`
	Unseen     *int   `json:"unseen,omitempty"`
}

func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Response{Success: true, Data: data})
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, Response{Success: true, Data: data})
}

func Accepted(w http.ResponseWriter, data any) {
	JSON(w, http.StatusAccepted, Response{Success: true, Data: data})
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Paginated(w http.ResponseWriter, data any, page, pageSize, total int) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	JSON(w, http.StatusOK, Response{
		Success: true,
		Data:    data,
		Meta: &Meta{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
		},
	})
}

// WithMeta writes a success envelope carrying cursor style metadata.
func WithMeta(w http.ResponseWriter, data any, meta Meta) {
	JSON(w, http.StatusOK, Response{Success: true, Data: data, Meta: &meta})
}

func JSONError(w http.ResponseWriter, err error) {
	appErr := GetAppError(err)
	if appErr == nil {
		appErr = InternalError(err)
	}

	if appErr.StatusCode >= http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}

	JSON(w, appErr.StatusCode, Response{
		Success: false,
		Error: &ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
		},
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	JSONError(w, ValidationError(message))
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSONError(w, UnauthorizedError(message))
}

func Forbidden(w http.ResponseWriter, message string) {
	JSONError(w, ForbiddenError(message))
}

func NotFound(w http.ResponseWriter, resource string) {
	JSONError(w, NotFoundError(resource))
}

func InternalServerError(w http.ResponseWriter, err error) {
	JSONError(w, InternalError(err))
}

// HandleDomainError renders a graph or content error kind, falling back to a
// 500 for anything else.
func HandleDomainError(w http.ResponseWriter, err error) {
	if appErr := DomainError(err); appErr != nil {
		JSONError(w, appErr)
		return
	}
	InternalServerError(w, err)
}
