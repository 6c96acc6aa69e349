package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"digistore/internal/handlers"
	"digistore/internal/models"
	"digistore/internal/repositories"
	"digistore/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
)

const testWebhookSecret = "whsec_test"

type webhookFixture struct {
	app          *fiber.App
	orderRepo    *repositories.MockOrderRepository
	productRepo  *repositories.MockProductRepository
	licenseRepo  *repositories.MockLicenseRepository
	downloadRepo *repositories.MockDownloadGrantRepository
	subRepo      *repositories.MockSubscriptionRepository
	orderService *services.OrderService
	subService   *services.SubscriptionService
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	f := &webhookFixture{
		app:          fiber.New(),
		orderRepo:    repositories.NewMockOrderRepository(),
		productRepo:  repositories.NewMockProductRepository(),
		licenseRepo:  repositories.NewMockLicenseRepository(),
		downloadRepo: repositories.NewMockDownloadGrantRepository(),
		subRepo:      repositories.NewMockSubscriptionRepository(),
	}

	assert.NoError(t, f.productRepo.Create(&models.Product{
		ID: "prod-a", Title: "Aurora Theme", Price: 5900, Currency: "usd", IsActive: true,
		Files: []models.ProductFile{
			{ID: "file-a1", FileName: "aurora.zip", FilePath: "aurora/aurora.zip"},
		},
	}))

	issuer := services.NewEntitlementService(f.orderRepo, f.productRepo, f.licenseRepo, f.downloadRepo)
	f.orderService = services.NewOrderService(f.orderRepo, f.productRepo, issuer, nil)
	f.subService = services.NewSubscriptionService(f.subRepo)

	handler := handlers.NewWebhookHandler(f.orderService, f.subService, testWebhookSecret)
	handler.RegisterRoutes(f.app)
	return f
}

func (f *webhookFixture) createPendingOrder(t *testing.T) *models.Order {
	t.Helper()
	order, err := f.orderService.CreateOrder("user-1", []models.CartLine{
		{ProductID: "prod-a", LicenseType: models.LicenseTypeStandard, Quantity: 1},
	}, "")
	assert.NoError(t, err)
	return order
}

func paymentEventBody(t *testing.T, eventType, paymentRef, orderID string) []byte {
	t.Helper()
	body, err := json.Marshal(fiber.Map{
		"id":   "evt_" + paymentRef,
		"type": eventType,
		"data": fiber.Map{
			"object": fiber.Map{
				"id":       paymentRef,
				"metadata": fiber.Map{"order_id": orderID},
			},
		},
	})
	assert.NoError(t, err)
	return body
}

func (f *webhookFixture) deliver(t *testing.T, body []byte, signedAt time.Time) *http.Response {
	t.Helper()
	req := httptest.NewRequest("POST", "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, handlers.SignPayload([]byte(testWebhookSecret), body, signedAt))
	resp, err := f.app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

func TestWebhookHandler_RejectsBadSignatures(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.createPendingOrder(t)
	body := paymentEventBody(t, "payment_intent.succeeded", "pi_123", order.ID)

	// Missing header
	req := httptest.NewRequest("POST", "/webhooks/payment", bytes.NewReader(body))
	resp, err := f.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Wrong secret
	req = httptest.NewRequest("POST", "/webhooks/payment", bytes.NewReader(body))
	req.Header.Set(handlers.SignatureHeader, handlers.SignPayload([]byte("whsec_other"), body, time.Now()))
	resp, err = f.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Valid signature over a different payload
	tampered := bytes.Replace(body, []byte("pi_123"), []byte("pi_999"), -1)
	req = httptest.NewRequest("POST", "/webhooks/payment", bytes.NewReader(tampered))
	req.Header.Set(handlers.SignatureHeader, handlers.SignPayload([]byte(testWebhookSecret), body, time.Now()))
	resp, err = f.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// Stale timestamp
	resp = f.deliver(t, body, time.Now().Add(-10*time.Minute))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// None of the rejected deliveries touched the order.
	stored, err := f.orderRepo.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusPending, stored.Status)
}

func TestWebhookHandler_PaymentSucceededCompletesAndIssues(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.createPendingOrder(t)

	resp := f.deliver(t, paymentEventBody(t, "payment_intent.succeeded", "pi_123", order.ID), time.Now())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, err := f.orderRepo.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, stored.Status)
	assert.Equal(t, "pi_123", stored.PaymentRef)
	assert.True(t, stored.EntitlementsIssued)

	licenses, err := f.licenseRepo.ListByOrder(order.ID)
	assert.NoError(t, err)
	assert.Len(t, licenses, 1)
	grants, err := f.downloadRepo.ListByOrder(order.ID)
	assert.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestWebhookHandler_DuplicateDeliveryIssuesOnce(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.createPendingOrder(t)
	body := paymentEventBody(t, "payment_intent.succeeded", "pi_123", order.ID)

	for i := 0; i < 3; i++ {
		resp := f.deliver(t, body, time.Now())
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	}

	licenses, err := f.licenseRepo.ListByOrder(order.ID)
	assert.NoError(t, err)
	assert.Len(t, licenses, 1)
	grants, err := f.downloadRepo.ListByOrder(order.ID)
	assert.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestWebhookHandler_PaymentFailed(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.createPendingOrder(t)

	resp := f.deliver(t, paymentEventBody(t, "payment_intent.payment_failed", "pi_123", order.ID), time.Now())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, err := f.orderRepo.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)

	// A late success for the same order cannot resurrect it. The delivery is
	// acknowledged (redelivering could never help) but flagged as ignored.
	resp = f.deliver(t, paymentEventBody(t, "payment_intent.succeeded", "pi_123", order.ID), time.Now())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var ack map[string]interface{}
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&ack))
	assert.Equal(t, true, ack["ignored"])

	stored, err = f.orderRepo.GetByID(order.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.OrderStatusFailed, stored.Status)
	licenses, err := f.licenseRepo.ListByOrder(order.ID)
	assert.NoError(t, err)
	assert.Empty(t, licenses)
}

func TestWebhookHandler_LooksUpOrderByPaymentRef(t *testing.T) {
	f := newWebhookFixture(t)
	order := f.createPendingOrder(t)

	// Complete the order so it carries the payment ref.
	_, err := f.orderService.TransitionStatus(order.ID, models.OrderStatusCompleted, "pi_123")
	assert.NoError(t, err)

	body, err := json.Marshal(fiber.Map{
		"id":   "evt_refund",
		"type": "payment_intent.succeeded",
		"data": fiber.Map{
			"object": fiber.Map{"id": "pi_123"},
		},
	})
	assert.NoError(t, err)

	// Duplicate success addressed only by payment ref resolves to the same
	// order and stays a no-op.
	resp := f.deliver(t, body, time.Now())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	licenses, err := f.licenseRepo.ListByOrder(order.ID)
	assert.NoError(t, err)
	assert.Len(t, licenses, 1)
}

func TestWebhookHandler_UnknownOrder(t *testing.T) {
	f := newWebhookFixture(t)
	resp := f.deliver(t, paymentEventBody(t, "payment_intent.succeeded", "pi_123", "no-such-order"), time.Now())
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWebhookHandler_UnknownEventKindIsAcknowledged(t *testing.T) {
	f := newWebhookFixture(t)
	body, err := json.Marshal(fiber.Map{
		"id":   "evt_new",
		"type": "charge.dispute.created",
		"data": fiber.Map{"object": fiber.Map{"id": "dp_1"}},
	})
	assert.NoError(t, err)

	resp := f.deliver(t, body, time.Now())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookHandler_SubscriptionLifecycle(t *testing.T) {
	f := newWebhookFixture(t)
	assert.NoError(t, f.subRepo.CreatePlan(&models.SubscriptionPlan{
		ID: "plan-1", Name: "All Access", Price: 1900, Interval: "month", IsActive: true,
	}))
	sub, err := f.subService.Subscribe("user-1", "plan-1", "sub_ext_1")
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)

	// Cancellation event flips the status by external ref.
	body, err := json.Marshal(fiber.Map{
		"id":   "evt_sub_del",
		"type": "customer.subscription.deleted",
		"data": fiber.Map{"object": fiber.Map{"id": "sub_ext_1"}},
	})
	assert.NoError(t, err)
	resp := f.deliver(t, body, time.Now())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, err := f.subRepo.GetByID(sub.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, stored.Status)

	// A paid invoice for the subscription reactivates it.
	body, err = json.Marshal(fiber.Map{
		"id":   "evt_inv",
		"type": "invoice.payment_succeeded",
		"data": fiber.Map{"object": fiber.Map{
			"id":           "in_1",
			"subscription": "sub_ext_1",
			"paid":         true,
		}},
	})
	assert.NoError(t, err)
	resp = f.deliver(t, body, time.Now())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	stored, err = f.subRepo.GetByID(sub.ID)
	assert.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, stored.Status)

	// Events for unknown refs are acknowledged without side effects.
	body, err = json.Marshal(fiber.Map{
		"id":   "evt_sub_other",
		"type": "customer.subscription.deleted",
		"data": fiber.Map{"object": fiber.Map{"id": "sub_ext_unknown"}},
	})
	assert.NoError(t, err)
	resp = f.deliver(t, body, time.Now())
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestWebhookHandler_MalformedPayload(t *testing.T) {
	f := newWebhookFixture(t)
	body := []byte(`{"id": "evt_broken"`)
	resp := f.deliver(t, body, time.Now())
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
