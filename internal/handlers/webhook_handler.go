package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"digistore/internal/apperrors"
	"digistore/internal/models"
	"digistore/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SignatureHeader carries the payment processor's webhook signature in the
// form "t=<unix>,v1=<hex>", where v1 is HMAC-SHA256 over "<t>.<raw body>".
const SignatureHeader = "X-Payment-Signature"

// signatureTolerance bounds how stale a signed timestamp may be, limiting
// replay of captured deliveries.
const signatureTolerance = 5 * time.Minute

// Payment processor event kinds the receiver acts on. Anything else is
// acknowledged and ignored so new processor events never break deliveries.
const (
	eventPaymentSucceeded      = "payment_intent.succeeded"
	eventPaymentFailed         = "payment_intent.payment_failed"
	eventInvoicePaid           = "invoice.payment_succeeded"
	eventSubscriptionCancelled = "customer.subscription.deleted"
)

// paymentEvent is the subset of the processor's event envelope this receiver
// reads.
type paymentEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID           string            `json:"id"`
			Metadata     map[string]string `json:"metadata"`
			Subscription string            `json:"subscription"`
			Paid         bool              `json:"paid"`
		} `json:"object"`
	} `json:"data"`
}

// WebhookHandler is the payment event receiver: it authenticates inbound
// processor notifications and maps them onto order ledger transitions and
// subscription status flips. Delivery is at-least-once; the ledger's
// idempotent transitions make duplicates harmless.
type WebhookHandler struct {
	orderService *services.OrderService
	subService   *services.SubscriptionService
	secret       []byte
}

// NewWebhookHandler creates a new WebhookHandler. secret is the shared
// webhook signing secret configured at the processor.
func NewWebhookHandler(orderService *services.OrderService, subService *services.SubscriptionService, secret string) *WebhookHandler {
	return &WebhookHandler{
		orderService: orderService,
		subService:   subService,
		secret:       []byte(secret),
	}
}

// RegisterRoutes registers the webhook endpoint. It is mounted outside the
// JWT-protected groups: its authentication is the signature, not a user token.
func (h *WebhookHandler) RegisterRoutes(router fiber.Router) {
	router.Post("/webhooks/payment", h.HandleEvent)
}

// HandleEvent processes one processor delivery. Responses: 2xx acknowledges,
// non-2xx asks the processor to redeliver. Events whose transitions are
// illegal for the order's current state are logged and acknowledged -
// redelivering them could never succeed.
func (h *WebhookHandler) HandleEvent(c *fiber.Ctx) error {
	body := c.Body()
	if err := h.verifySignature(body, c.Get(SignatureHeader)); err != nil {
		log.Printf("Webhook signature rejected: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid webhook signature",
		})
	}

	var event paymentEvent
	if err := json.Unmarshal(body, &event); err != nil {
		log.Printf("Webhook payload unparseable: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Invalid webhook payload",
		})
	}

	switch event.Type {
	case eventPaymentSucceeded:
		return h.handleOrderTransition(c, event, models.OrderStatusCompleted)
	case eventPaymentFailed:
		return h.handleOrderTransition(c, event, models.OrderStatusFailed)
	case eventInvoicePaid:
		if event.Data.Object.Subscription == "" || !event.Data.Object.Paid {
			return c.JSON(fiber.Map{"received": true})
		}
		return h.handleSubscriptionFlip(c, event.Data.Object.Subscription, true)
	case eventSubscriptionCancelled:
		return h.handleSubscriptionFlip(c, event.Data.Object.ID, false)
	default:
		// Unknown event kinds are acknowledged, not errored: forward
		// compatibility with processor event additions.
		log.Printf("Ignoring webhook event %s of kind %s", event.ID, event.Type)
		return c.JSON(fiber.Map{"received": true})
	}
}

func (h *WebhookHandler) handleOrderTransition(c *fiber.Ctx, event paymentEvent, newStatus string) error {
	order, err := h.lookupOrder(event)
	if err != nil {
		log.Printf("Webhook event %s: %v", event.ID, err)
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"message": "Order not found for event",
		})
	}

	_, err = h.orderService.TransitionStatus(order.ID, newStatus, event.Data.Object.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrInvalidTransition) {
			// Out-of-order or stale delivery (e.g. payment-succeeded after the
			// order already failed). Drop it: only pending orders complete,
			// and a redelivery would hit the same wall.
			log.Printf("Dropping webhook event %s: %v", event.ID, err)
			return c.JSON(fiber.Map{"received": true, "ignored": true})
		}
		log.Printf("Webhook event %s failed: %v", event.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Event handling failed",
		})
	}

	return c.JSON(fiber.Map{"received": true})
}

func (h *WebhookHandler) handleSubscriptionFlip(c *fiber.Ctx, externalRef string, active bool) error {
	var matched bool
	var err error
	if active {
		matched, err = h.subService.MarkActiveByExternalRef(externalRef)
	} else {
		matched, err = h.subService.MarkCancelledByExternalRef(externalRef)
	}
	if err != nil {
		log.Printf("Subscription webhook for ref %s failed: %v", externalRef, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"message": "Event handling failed",
		})
	}
	if !matched {
		log.Printf("No subscription matches ref %s; acknowledging anyway", externalRef)
	}
	return c.JSON(fiber.Map{"received": true})
}

// lookupOrder resolves the order an event refers to: by the order id carried
// in the payment metadata when present, otherwise by the payment reference.
func (h *WebhookHandler) lookupOrder(event paymentEvent) (*models.Order, error) {
	if orderID := event.Data.Object.Metadata["order_id"]; orderID != "" {
		return h.orderService.GetOrderByID(orderID)
	}
	return h.orderService.FindByPaymentRef(event.Data.Object.ID)
}

// verifySignature authenticates the raw payload against the shared secret.
// Nothing is parsed before this check passes.
func (h *WebhookHandler) verifySignature(payload []byte, header string) error {
	if header == "" {
		return fmt.Errorf("missing %s header: %w", SignatureHeader, apperrors.ErrAuth)
	}

	var ts int64
	var sig string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			parsed, err := strconv.ParseInt(kv[1], 10, 64)
			if err != nil {
				return fmt.Errorf("malformed signature timestamp: %w", apperrors.ErrAuth)
			}
			ts = parsed
		case "v1":
			sig = kv[1]
		}
	}
	if ts == 0 || sig == "" {
		return fmt.Errorf("malformed %s header: %w", SignatureHeader, apperrors.ErrAuth)
	}

	age := time.Since(time.Unix(ts, 0))
	if age > signatureTolerance || age < -signatureTolerance {
		return fmt.Errorf("signature timestamp outside tolerance: %w", apperrors.ErrAuth)
	}

	mac := hmac.New(sha256.New, h.secret)
	fmt.Fprintf(mac, "%d.%s", ts, payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("signature mismatch: %w", apperrors.ErrAuth)
	}
	return nil
}

// SignPayload computes the signature header value for a payload at the given
// time. The test suite and local tooling use it to forge valid deliveries.
func SignPayload(secret []byte, payload []byte, at time.Time) string {
	mac := hmac.New(sha256.New, secret)
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}
