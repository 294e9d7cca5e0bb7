package site

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/r6-tools/auth"
)

const (
	// RetryView is the template shown instead of a broken page
	RetryView = "errors/retry"
	// RetryMessage is the text of the retry prompt
	RetryMessage = "There was a problem connecting to the authentication service."
	// RetryLabel is the retry button label
	RetryLabel = "Try again"
)

// RetryHandler renders the retry prompt for err. It can be used as the
// route authenticator error handler.
func RetryHandler(logger auth.Logger) func(router.Context, error) error {
	if logger == nil {
		logger = nopLogger{}
	}

	return func(ctx router.Context, err error) error {
		richErr := toRichError(err)

		logger.Error(
			"rendering retry prompt",
			"error", richErr.Message,
			"category", richErr.Category,
			"path", ctx.OriginalURL(),
			"details", print.MaybePrettyJSON(richErr.Metadata),
		)

		return ctx.Status(http.StatusServiceUnavailable).Render(RetryView, retryData(ctx.OriginalURL(), richErr))
	}
}

// Recover turns handler panics into the retry prompt
func Recover(logger auth.Logger) router.MiddlewareFunc {
	retry := RetryHandler(logger)

	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = retry(ctx, errors.New(fmt.Sprint(rec), errors.CategoryInternal).
						WithCode(errors.CodeInternal))
				}
			}()
			return next(ctx)
		}
	}
}

// FiberErrorHandler is the last line for errors returned by handlers.
// Client errors keep their status, anything else shows the retry prompt.
func FiberErrorHandler(logger auth.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = nopLogger{}
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) && fiberErr.Code < http.StatusInternalServerError {
			return c.Status(fiberErr.Code).SendString(fiberErr.Message)
		}

		richErr := toRichError(err)
		logger.Error("unhandled request error", "error", richErr.Message, "path", c.OriginalURL())

		return c.Status(http.StatusServiceUnavailable).Render(RetryView, fiber.Map(retryData(c.OriginalURL(), richErr)))
	}
}

func retryData(retryURL string, err *errors.Error) router.ViewContext {
	return router.ViewContext{
		"title":       "Error",
		"message":     RetryMessage,
		"retry_label": RetryLabel,
		"retry":       retryURL,
		"error":       err,
	}
}

func toRichError(err error) *errors.Error {
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr
	}
	return errors.Wrap(err, errors.CategoryOperation, RetryMessage).
		WithCode(errors.CodeInternal)
}
