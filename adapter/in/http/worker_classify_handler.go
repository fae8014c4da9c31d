package http

import (
	"strings"

	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/domain"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/in"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/core/port/out"
	"github.com/BrohansCoding/GoogleWorkplaceAssistant-sub000/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

const (
	maxThreadsPerRequest = 500
	defaultSourceLimit   = 50
)

// ClassifyHandler handles classification runs and their reports.
type ClassifyHandler struct {
	svc  in.ClassificationService
	jobs out.JobProducer
}

// NewClassifyHandler creates a ClassifyHandler. jobs may be nil, which
// disables asynchronous runs.
func NewClassifyHandler(svc in.ClassificationService, jobs out.JobProducer) *ClassifyHandler {
	return &ClassifyHandler{svc: svc, jobs: jobs}
}

// Register registers classify routes. limit guards the run endpoint only.
func (h *ClassifyHandler) Register(app fiber.Router, limit fiber.Handler) {
	cls := app.Group("/classify")
	if limit != nil {
		cls.Post("/", limit, h.Classify)
	} else {
		cls.Post("/", h.Classify)
	}
	cls.Get("/runs/:id", h.GetRun)
}

// ClassifyRequest carries either inline threads or a source to pull from.
type ClassifyRequest struct {
	Threads []domain.Thread `json:"threads"`
	Source  string          `json:"source"`
	Limit   int             `json:"limit"`
	// Async queues a source run for the worker instead of waiting.
	Async bool `json:"async"`
}

func (r *ClassifyRequest) validate() *apperr.AppError {
	r.Source = strings.ToLower(strings.TrimSpace(r.Source))
	switch {
	case len(r.Threads) == 0 && r.Source == "":
		return apperr.ValidationFailed("either threads or source is required")
	case len(r.Threads) > 0 && r.Source != "":
		return apperr.ValidationFailed("threads and source are mutually exclusive")
	case len(r.Threads) > maxThreadsPerRequest:
		return apperr.InvalidInput("threads", "too many threads in one request")
	case r.Async && r.Source == "":
		return apperr.InvalidInput("async", "only source runs can be queued")
	}
	if r.Limit <= 0 {
		r.Limit = defaultSourceLimit
	}
	if r.Limit > maxThreadsPerRequest {
		r.Limit = maxThreadsPerRequest
	}
	return nil
}

// Classify POST /classify
func (h *ClassifyHandler) Classify(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, apperr.ErrUnauthorized)
	}

	var req ClassifyRequest
	if err := c.BodyParser(&req); err != nil {
		return ErrorResponse(c, apperr.BadRequest("invalid request body"))
	}
	if appErr := req.validate(); appErr != nil {
		return ErrorResponse(c, appErr)
	}

	ctx := requestContext(c, userID)

	if req.Async {
		if h.jobs == nil {
			return ErrorResponse(c, apperr.ConfigError("background jobs are not enabled"))
		}
		job := &out.ClassifyJob{UserID: userID, Source: req.Source, Limit: req.Limit}
		if err := h.jobs.PublishClassify(ctx, job); err != nil {
			return ErrorResponse(c, apperr.ExternalError("job queue", err))
		}
		return AcceptedResponse(c, fiber.Map{"queued": true, "source": req.Source})
	}

	var result *domain.ClassificationResult
	if req.Source != "" {
		result, err = h.svc.ClassifyFromSource(ctx, userID, req.Source, req.Limit)
	} else {
		result, err = h.svc.Classify(ctx, userID, req.Threads)
	}
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, result)
}

// GetRun GET /classify/runs/:id
func (h *ClassifyHandler) GetRun(c *fiber.Ctx) error {
	userID, err := GetUserID(c)
	if err != nil {
		return ErrorResponse(c, apperr.ErrUnauthorized)
	}

	run, err := h.svc.GetRun(requestContext(c, userID), userID, c.Params("id"))
	if err != nil {
		return ErrorResponse(c, err)
	}
	return SuccessResponse(c, run)
}
