package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/weather-lookup/internal/apperror"
	"github.com/i474232898/weather-lookup/internal/geocode"
	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/lookup"
	"github.com/i474232898/weather-lookup/internal/quota"
	"github.com/i474232898/weather-lookup/internal/weather"
)

var validate = validator.New()

// Producer runs one weather lookup.
type Producer interface {
	Produce(ctx context.Context, address string, bypass bool) (*lookup.Result, error)
}

// QuotaReporter exposes provider usage.
type QuotaReporter interface {
	Providers() []string
	Status(ctx context.Context, provider string) (quota.Status, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, producer Producer, quotas QuotaReporter) {
	log := logger.WithComponent("http")

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := app.Group("/api/v1")

	v1.Get("/weather", func(c *fiber.Ctx) error {
		var q weatherQuery
		if err := q.bind(c); err != nil {
			return badRequest(c, err)
		}

		res, err := producer.Produce(c.UserContext(), q.Address, q.Refresh)
		if err != nil {
			log.WithError(err).WithFields(logger.Fields{
				"address":    q.Address,
				"request_id": c.Locals("requestid"),
			}).Info("weather lookup failed")
			return writeError(c, err)
		}
		return c.JSON(res)
	})

	v1.Get("/quota", func(c *fiber.Ctx) error {
		out := make([]quota.Status, 0)
		for _, p := range quotas.Providers() {
			st, err := quotas.Status(c.UserContext(), p)
			if err != nil {
				return writeError(c, err)
			}
			out = append(out, st)
		}
		return c.JSON(fiber.Map{"providers": out})
	})

	v1.Get("/quota/:provider", func(c *fiber.Ctx) error {
		st, err := quotas.Status(c.UserContext(), c.Params("provider"))
		if errors.Is(err, apperror.ErrNotConfigured) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "unknown provider",
				"code":  apperror.CodeNotConfigured,
			})
		}
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(st)
	})
}

// weatherQuery holds the query parameters of the weather endpoint.
type weatherQuery struct {
	Address string `validate:"required,max=256"`
	Refresh bool
}

func (q *weatherQuery) bind(c *fiber.Ctx) error {
	q.Address = c.Query("address")
	if raw := c.Query("refresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return errors.New("refresh must be a boolean")
		}
		q.Refresh = v
	}
	return validate.Struct(q)
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
		"code":  "INVALID_REQUEST",
	})
}

// writeError maps a coded error onto an HTTP status.
func writeError(c *fiber.Ctx, err error) error {
	base, ok := apperror.Base(err)
	if !ok {
		if errors.Is(err, quota.ErrNotConfigured) {
			base = apperror.New(apperror.CodeNotConfigured, err.Error())
		} else {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "internal error",
				"code":  "INTERNAL",
			})
		}
	}

	status := fiber.StatusInternalServerError
	switch base.Code {
	case apperror.CodeNotFound:
		status = fiber.StatusNotFound
	case apperror.CodeRateLimited:
		status = fiber.StatusTooManyRequests
		if d := retryAfter(err); d > 0 {
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(d.Round(time.Second)/time.Second)))
		}
	case apperror.CodeQuotaExceeded:
		status = fiber.StatusTooManyRequests
	case apperror.CodeUpstream:
		status = fiber.StatusBadGateway
	}
	return c.Status(status).JSON(fiber.Map{
		"error": base.Message,
		"code":  base.Code,
	})
}

func retryAfter(err error) time.Duration {
	var ge *geocode.Error
	if errors.As(err, &ge) {
		return ge.RetryAfter
	}
	var we *weather.Error
	if errors.As(err, &we) {
		return we.RetryAfter
	}
	var qe *quota.Error
	if errors.As(err, &qe) {
		return qe.RetryAfter
	}
	return 0
}
