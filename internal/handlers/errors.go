package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/document"
	"github.com/robertobuso/pr-bills-tracker/internal/scraper"
	"github.com/robertobuso/pr-bills-tracker/internal/service"
)

// ErrorResponse is the body of every failed JSON request
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode,omitempty"`
	Details   string `json:"details,omitempty"`
	RawOutput string `json:"rawOutput,omitempty"`
	URL       string `json:"url,omitempty"`
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

func notFound(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: msg})
}

// respondError converts err to a status code and structured body
func respondError(c *fiber.Ctx, err error) error {
	status, body := describeError(err)
	if status >= fiber.StatusInternalServerError {
		log.Errorf("%s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(body)
}

func describeError(err error) (int, ErrorResponse) {
	var (
		procErr     *scraper.ProcessError
		emptyErr    *scraper.EmptyOutputError
		parseErr    *scraper.OutputParseError
		upstreamErr *document.UpstreamFetchError
		convTimeout *document.ConversionTimeoutError
		convFailed  *document.ConversionFailedError
		fiberErr    *fiber.Error
	)

	switch {
	case errors.As(err, &procErr):
		if procErr.Timeout {
			return fiber.StatusInternalServerError, ErrorResponse{
				Error:     "Request timed out",
				ErrorCode: scraper.CodeTimeout,
				Details:   procErr.Stderr,
			}
		}
		return fiber.StatusInternalServerError, ErrorResponse{
			Error:     "Scraper failed",
			ErrorCode: procErr.Code(),
			Details:   procErr.Stderr,
		}

	case errors.As(err, &emptyErr):
		return fiber.StatusInternalServerError, ErrorResponse{
			Error:     "Empty output from scraper",
			ErrorCode: emptyErr.Code(),
			Details:   emptyErr.Stderr,
		}

	case errors.As(err, &parseErr):
		return fiber.StatusInternalServerError, ErrorResponse{
			Error:     "Failed to parse scraper output",
			ErrorCode: parseErr.Code(),
			Details:   parseErr.Error(),
			RawOutput: parseErr.Output,
		}

	case errors.As(err, &upstreamErr):
		return fiber.StatusInternalServerError, ErrorResponse{
			Error:   "Failed to fetch document",
			Details: upstreamErr.Error(),
			URL:     upstreamErr.URL,
		}

	case errors.As(err, &convTimeout):
		return fiber.StatusInternalServerError, ErrorResponse{
			Error:     "Document conversion timed out",
			ErrorCode: scraper.CodeTimeout,
		}

	case errors.As(err, &convFailed):
		return fiber.StatusInternalServerError, ErrorResponse{
			Error:     "Document conversion failed",
			ErrorCode: "CONVERSION_FAILED",
			Details:   convFailed.Stderr,
		}

	case errors.Is(err, document.ErrNotFound):
		return fiber.StatusNotFound, ErrorResponse{Error: "File not found"}

	case errors.Is(err, service.ErrBillNotFound), errors.Is(err, service.ErrSessionNotFound):
		return fiber.StatusNotFound, ErrorResponse{Error: err.Error()}

	case errors.Is(err, document.ErrInvalidURL),
		errors.Is(err, document.ErrUnsupportedType),
		errors.Is(err, service.ErrInvalidDate):
		return fiber.StatusBadRequest, ErrorResponse{Error: err.Error()}

	case errors.As(err, &fiberErr):
		return fiberErr.Code, ErrorResponse{Error: fiberErr.Message}

	default:
		return fiber.StatusInternalServerError, ErrorResponse{
			Error:   "Internal server error",
			Details: err.Error(),
		}
	}
}

// ErrorHandler is the app-wide fiber error handler
func ErrorHandler(c *fiber.Ctx, err error) error {
	return respondError(c, err)
}
