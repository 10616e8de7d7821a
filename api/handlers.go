package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/tiermem/pkg/memory"
	"github.com/papercomputeco/tiermem/pkg/recency"
	"github.com/papercomputeco/tiermem/pkg/tiered"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RecallResponse is the body of POST /v1/recall.
type RecallResponse struct {
	tiered.Recollection

	// Lines is the prompt-ready rendering, recency lines first.
	Lines []string `json:"lines"`
}

// WindowResponse is the body of GET /v1/windows/:owner/:actor/:window.
type WindowResponse struct {
	Window  string          `json:"window"`
	Records []memory.Record `json:"records"`
	Lines   []string        `json:"lines"`
}

// ThresholdsResponse reports the live admission thresholds.
type ThresholdsResponse struct {
	Weekly    int `json:"weekly"`
	Promotion int `json:"promotion"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleRemember accepts an utterance. Scoring happens after the response.
func (s *Server) handleRemember(c *fiber.Ctx) error {
	var entry tiered.Entry
	if err := c.BodyParser(&entry); err != nil {
		return badRequest(c, "invalid request body")
	}

	if err := s.memory.Remember(c.UserContext(), entry); err != nil {
		if isValidation(err) {
			return badRequest(c, err.Error())
		}
		s.logger.Error("remember failed", "owner_id", entry.OwnerID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: "failed to remember"})
	}

	return c.Status(fiber.StatusAccepted).JSON(map[string]string{"status": "accepted"})
}

func (s *Server) handleRecall(c *fiber.Ctx) error {
	var req tiered.RecallRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err.Error())
	}

	rec, err := s.memory.RecallRecords(c.UserContext(), req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	return c.JSON(RecallResponse{
		Recollection: rec,
		Lines:        rec.Lines(),
	})
}

func (s *Server) handleWindow(c *fiber.Ctx) error {
	req := tiered.ShortTermRequest{
		OwnerID:  c.Params("owner"),
		ActorID:  c.Params("actor"),
		Window:   c.Params("window"),
		TopicTag: c.Query("topic_tag"),
	}

	records, err := s.memory.ShortTerm(c.UserContext(), req)
	if err != nil {
		return badRequest(c, err.Error())
	}

	window := req.Window
	if window == "" {
		window = string(recency.Recent)
	}
	return c.JSON(WindowResponse{
		Window:  window,
		Records: records,
		Lines:   memory.FormatAll(records),
	})
}

func (s *Server) handleThresholds(c *fiber.Ctx) error {
	weekly, promotion := s.memory.Thresholds()
	return c.JSON(ThresholdsResponse{Weekly: weekly, Promotion: promotion})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}

func isValidation(err error) bool {
	return errors.Is(err, memory.ErrOwnerRequired) ||
		errors.Is(err, memory.ErrActorRequired) ||
		errors.Is(err, memory.ErrEmptyContent)
}
