package handlers

import (
	"net/http"
	"net/mail"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/avdonin/reviewbase/internal/policy"
)

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// fieldError builds a validation body naming the offending field.
func fieldError(code int, field, msg string) *echo.HTTPError {
	return echo.NewHTTPError(code, echo.Map{"field": field, "error": msg})
}

// denied maps a policy refusal to 401 for anonymous callers and 403 for
// authenticated ones.
func denied(caller policy.Caller) *echo.HTTPError {
	if caller.Role == policy.Anonymous {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}
	return echo.NewHTTPError(http.StatusForbidden, "you don't have enough rights")
}

func validEmail(addr string) bool {
	parsed, err := mail.ParseAddress(addr)
	return err == nil && parsed.Address == addr
}

func listMeta(page, limit, offset int, total int64) echo.Map {
	return echo.Map{
		"page":        page,
		"size":        limit,
		"total":       total,
		"total_pages": (total + int64(limit) - 1) / int64(limit),
		"has_prev":    page > 1,
		"has_next":    int64(offset+limit) < total,
	}
}
