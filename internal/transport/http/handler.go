// Package http exposes the checkout, dispute, and webhook endpoints.
// Authentication/authorization middleware is an external collaborator; the
// caller identity and role arrive in trusted headers set upstream.
package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"rentpay/internal/apperr"
	"rentpay/internal/processor"
	"rentpay/internal/usecase"
	"rentpay/internal/webhook"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
)

type Handler struct {
	checkout usecase.Checkout
	disputes usecase.Dispute
	ingress  *webhook.Ingress
	logger   *zap.Logger
}

func NewHandler(checkout usecase.Checkout, disputes usecase.Dispute, ingress *webhook.Ingress, logger *zap.Logger) *Handler {
	return &Handler{
		checkout: checkout,
		disputes: disputes,
		ingress:  ingress,
		logger:   logger.With(zap.String("component", "http_handler")),
	}
}

// Register mounts all routes on the app.
func (h *Handler) Register(app *fiber.App) {
	payments := app.Group("/payments")
	payments.Post("/bookings/:id/checkout", h.createBookingCheckout)
	payments.Post("/setup-intent", h.createSetupIntent)
	payments.Post("/subscriptions/:planId/checkout", h.createSubscriptionCheckout)
	payments.Post("/disputes/charge", h.chargeDispute)

	app.Post("/webhooks/stripe", h.platformWebhook)
	app.Post("/webhooks/stripe/connect", h.connectWebhook)
}

func (h *Handler) createBookingCheckout(c *fiber.Ctx) error {
	userID := c.Get(headerUserID)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing caller identity")
	}

	url, err := h.checkout.CreateBookingCheckout(c.Context(), c.Params("id"), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"checkoutUrl": url})
}

func (h *Handler) createSetupIntent(c *fiber.Ctx) error {
	userID := c.Get(headerUserID)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing caller identity")
	}

	url, err := h.checkout.CreateSetupIntent(c.Context(), userID)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(fiber.Map{"url": url})
}

func (h *Handler) createSubscriptionCheckout(c *fiber.Ctx) error {
	userID := c.Get(headerUserID)
	if userID == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing caller identity")
	}

	result, err := h.checkout.CreateSubscriptionCheckout(c.Context(), c.Params("planId"), userID)
	if err != nil {
		return h.fail(c, err)
	}
	if result.Activated {
		return c.JSON(fiber.Map{"checkoutUrl": nil, "activated": true})
	}
	return c.JSON(fiber.Map{"checkoutUrl": result.CheckoutURL, "activated": false})
}

type disputeChargeRequest struct {
	DisputeID string  `json:"disputeId"`
	Reason    string  `json:"reason"`
	Amount    float64 `json:"amount"`
}

func (h *Handler) chargeDispute(c *fiber.Ctx) error {
	if c.Get(headerUserRole) != "admin" {
		return fiber.NewError(fiber.StatusForbidden, "admin only")
	}

	var req disputeChargeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if req.DisputeID == "" || req.Amount <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "disputeId and a positive amount are required")
	}

	result, err := h.disputes.ChargeUserOffSession(c.Context(), req.DisputeID, req.Amount, req.Reason)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) platformWebhook(c *fiber.Ctx) error {
	return h.handleWebhook(c, processor.EndpointPlatform)
}

func (h *Handler) connectWebhook(c *fiber.Ctx) error {
	return h.handleWebhook(c, processor.EndpointConnect)
}

func (h *Handler) handleWebhook(c *fiber.Ctx, endpoint processor.Endpoint) error {
	// c.Body() is the raw payload; it must reach verification unparsed.
	err := h.ingress.Handle(c.Context(), c.Body(), c.Get("Stripe-Signature"), endpoint)
	if err != nil {
		if errors.Is(err, apperr.ErrSignatureInvalid) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid signature"})
		}
		// Server error forces the processor to redeliver.
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "event handling failed"})
	}
	return c.JSON(fiber.Map{"received": true})
}

// fail maps the error taxonomy onto HTTP statuses.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		status = fiber.StatusConflict
	case errors.Is(err, apperr.ErrUnauthorized):
		status = fiber.StatusForbidden
	case errors.Is(err, apperr.ErrNoSavedPaymentMethod),
		errors.Is(err, apperr.ErrAuthenticationRequired):
		status = fiber.StatusPaymentRequired
	}
	if status == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}
