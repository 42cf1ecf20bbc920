// Package utils holds the JSON envelope shared by every API response.
package utils

import "github.com/gofiber/fiber/v2"

// StandardResponse is the envelope every endpoint answers with.
type StandardResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Meta    any    `json:"meta,omitempty"`
}

type PaginationMeta struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	Total       int64 `json:"total"`
	TotalPages  int   `json:"total_pages"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
}

func SuccessResponse(c *fiber.Ctx, code int, message string, data any) error {
	return SuccessWithMetaResponse(c, code, message, data, nil)
}

func SuccessWithMetaResponse(c *fiber.Ctx, code int, message string, data, meta any) error {
	return c.Status(code).JSON(StandardResponse{
		Status:  "success",
		Code:    code,
		Message: message,
		Data:    data,
		Meta:    meta,
	})
}

// ErrorResponse reports client errors as "error" and server errors as "fail".
func ErrorResponse(c *fiber.Ctx, code int, message string) error {
	status := "error"
	if code >= fiber.StatusInternalServerError {
		status = "fail"
	}
	return c.Status(code).JSON(StandardResponse{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

func CreatePaginationMeta(page, limit int, total int64) PaginationMeta {
	totalPages := 1
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	if totalPages == 0 {
		totalPages = 1
	}

	return PaginationMeta{
		Page:        page,
		Limit:       limit,
		Total:       total,
		TotalPages:  totalPages,
		HasNext:     page < totalPages,
		HasPrevious: page > 1,
	}
}
