package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"digistore/internal/handlers"
	"digistore/internal/middleware"
	"digistore/internal/models"
	"digistore/internal/repositories"
	"digistore/internal/services"
	"digistore/pkg/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// storeApp bundles the Fiber app with the collaborators tests reach into
// directly.
type storeApp struct {
	app         *fiber.App
	db          *gorm.DB
	productRepo repositories.ProductRepository
	storageRoot string
}

// setupStoreApp sets up a Fiber app for testing with in-memory SQLite and all
// handlers/services wired the way main does it. Each test passes a distinct
// name so its database is isolated.
func setupStoreApp(t *testing.T, name string) *storeApp {
	t.Helper()

	viper.SetDefault("JWT_SECRET", "test_jwt_secret")
	viper.SetDefault("WEBHOOK_SECRET", testWebhookSecret)
	viper.SetDefault("STORAGE_SECRET", "test_storage_secret")
	viper.AutomaticEnv()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	assert.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Product{},
		&models.ProductFile{},
		&models.Order{},
		&models.OrderItem{},
		&models.License{},
		&models.DownloadGrant{},
		&models.SubscriptionPlan{},
		&models.Subscription{},
		&models.Review{},
	)
	assert.NoError(t, err)

	storageRoot := t.TempDir()
	signer := storage.NewSigner("http://store.test/files", viper.GetString("STORAGE_SECRET"))

	userRepo := repositories.NewGORMUserRepository(db)
	productRepo := repositories.NewGORMProductRepository(db)
	orderRepo := repositories.NewGORMOrderRepository(db)
	licenseRepo := repositories.NewGORMLicenseRepository(db)
	downloadRepo := repositories.NewGORMDownloadGrantRepository(db)
	subRepo := repositories.NewGORMSubscriptionRepository(db)
	reviewRepo := repositories.NewGORMReviewRepository(db)

	authService := services.NewAuthService(userRepo, viper.GetString("JWT_SECRET"))
	productService := services.NewProductService(productRepo)
	entitlementService := services.NewEntitlementService(orderRepo, productRepo, licenseRepo, downloadRepo)
	orderService := services.NewOrderService(orderRepo, productRepo, entitlementService, nil)
	downloadService := services.NewDownloadService(downloadRepo, productRepo, signer, "downloads")
	subService := services.NewSubscriptionService(subRepo)
	reviewService := services.NewReviewService(reviewRepo, productRepo, orderRepo)

	authHandler := handlers.NewAuthHandler(authService)
	productHandler := handlers.NewProductHandler(productService)
	orderHandler := handlers.NewOrderHandler(orderService)
	downloadHandler := handlers.NewDownloadHandler(downloadService)
	licenseHandler := handlers.NewLicenseHandler(entitlementService)
	subHandler := handlers.NewSubscriptionHandler(subService)
	reviewHandler := handlers.NewReviewHandler(reviewService)
	webhookHandler := handlers.NewWebhookHandler(orderService, subService, viper.GetString("WEBHOOK_SECRET"))
	fileHandler := handlers.NewFileHandler(signer, storageRoot)

	app := fiber.New()
	apiV1 := app.Group("/api/v1")

	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)
	webhookHandler.RegisterRoutes(apiV1)
	downloadHandler.RegisterPublicRoutes(apiV1)
	reviewHandler.RegisterPublicRoutes(apiV1)
	fileHandler.RegisterRoutes(app)

	protected := apiV1.Group("", middleware.AuthRequired(authService))
	orderHandler.RegisterRoutes(protected)
	downloadHandler.RegisterRoutes(protected)
	licenseHandler.RegisterRoutes(protected)
	subHandler.RegisterRoutes(protected)
	reviewHandler.RegisterRoutes(protected)

	admin := apiV1.Group("/admin", middleware.AuthRequired(authService), middleware.AdminRequired())
	orderHandler.RegisterAdminRoutes(admin)
	productHandler.RegisterAdminRoutes(admin)
	reviewHandler.RegisterAdminRoutes(admin)

	return &storeApp{
		app:         app,
		db:          db,
		productRepo: productRepo,
		storageRoot: storageRoot,
	}
}

// seedDownloadableProduct puts one product with a real on-disk file into the
// catalog.
func (s *storeApp) seedDownloadableProduct(t *testing.T) {
	t.Helper()
	objectDir := filepath.Join(s.storageRoot, "downloads", "aurora")
	assert.NoError(t, os.MkdirAll(objectDir, 0o755))
	assert.NoError(t, os.WriteFile(filepath.Join(objectDir, "aurora.zip"), []byte("zip-bytes"), 0o644))

	assert.NoError(t, s.productRepo.Create(&models.Product{
		ID:       "prod-a",
		Title:    "Aurora Theme",
		Slug:     "aurora-theme",
		Price:    5900,
		Currency: "usd",
		IsActive: true,
		Files: []models.ProductFile{
			{ID: "file-a1", FileName: "aurora.zip", FilePath: "aurora/aurora.zip", FileType: "application/zip"},
		},
	}))
}

func (s *storeApp) jsonRequest(t *testing.T, method, path, token string, body interface{}) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		assert.NoError(t, err)
		reader = bytes.NewReader(jsonBody)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	assert.NoError(t, err)
	return resp
}

// registerAndLogin registers a fresh user and returns their bearer token.
func (s *storeApp) registerAndLogin(t *testing.T, username string) string {
	t.Helper()
	resp := s.jsonRequest(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = s.jsonRequest(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": username,
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	resp.Body.Close()
	assert.NotEmpty(t, loginResp["token"])
	return loginResp["token"]
}

// TestMain runs setup and teardown for all tests
func TestMain(m *testing.M) {
	// Suppress logging during tests for cleaner output
	log.SetOutput(io.Discard)
	code := m.Run()
	os.Exit(code)
}

// TestPurchaseToDownloadFlow walks the entire storefront path: checkout,
// payment webhook, entitlement listing, token redemption, file fetch.
func TestPurchaseToDownloadFlow(t *testing.T) {
	store := setupStoreApp(t, "purchase_flow")
	store.seedDownloadableProduct(t)
	token := store.registerAndLogin(t, "buyer")

	// Checkout without a token is rejected.
	resp := store.jsonRequest(t, http.MethodPost, "/api/v1/orders/", "", map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "prod-a", "license_type": "standard", "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	// Checkout creates a pending order with snapshotted totals.
	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/orders/", token, map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "prod-a", "license_type": "standard", "quantity": 1},
		},
		"billing_address": "221B Baker Street",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	resp.Body.Close()
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, int64(5900), order.TotalAmount)
	assert.Len(t, order.Items, 1)

	// No licenses before payment.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/licenses", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var licenses []models.License
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&licenses))
	resp.Body.Close()
	assert.Empty(t, licenses)

	// The processor reports the payment as succeeded.
	body := paymentEventBody(t, "payment_intent.succeeded", "pi_flow", order.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, handlers.SignPayload([]byte(testWebhookSecret), body, time.Now()))
	resp, err := store.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The order is now completed.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/orders/"+order.ID, token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var paid models.Order
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&paid))
	resp.Body.Close()
	assert.Equal(t, models.OrderStatusCompleted, paid.Status)

	// A license was issued for the purchase.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/licenses", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&licenses))
	resp.Body.Close()
	assert.Len(t, licenses, 1)
	assert.True(t, strings.HasPrefix(licenses[0].LicenseKey, "LIC-"))

	// The download grant is visible and unredeemed.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/downloads/", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var grants []models.DownloadGrant
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&grants))
	resp.Body.Close()
	assert.Len(t, grants, 1)
	assert.Nil(t, grants[0].RedeemedAt)

	// Redeeming the token yields a signed URL.
	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/downloads/redeem/"+grants[0].Token, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var redeemResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&redeemResp))
	resp.Body.Close()
	assert.NotEmpty(t, redeemResp["url"])

	// The signed URL serves the actual file bytes.
	signedURL, err := url.Parse(redeemResp["url"])
	assert.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, signedURL.Path+"?"+signedURL.RawQuery, nil)
	resp, err = store.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	fileBytes, err := io.ReadAll(resp.Body)
	assert.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "zip-bytes", string(fileBytes))

	// The token is single-use.
	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/downloads/redeem/"+grants[0].Token, "", nil)
	assert.Equal(t, http.StatusGone, resp.StatusCode)
	resp.Body.Close()

	// Stats reflect the redemption.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/downloads/stats", token, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var stats services.DownloadStats
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	resp.Body.Close()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Used)
	assert.Equal(t, 0, stats.Pending)
}

// TestOrderOwnershipAndAdminRoutes covers cross-user isolation and the admin
// surface.
func TestOrderOwnershipAndAdminRoutes(t *testing.T) {
	store := setupStoreApp(t, "admin_routes")
	store.seedDownloadableProduct(t)
	buyerToken := store.registerAndLogin(t, "alice")
	otherToken := store.registerAndLogin(t, "bob")

	resp := store.jsonRequest(t, http.MethodPost, "/api/v1/orders/", buyerToken, map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "prod-a", "license_type": "extended", "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	resp.Body.Close()
	assert.Equal(t, int64(11800), order.TotalAmount) // extended = 2x standard

	// Another customer cannot see the order.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/orders/"+order.ID, otherToken, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	// Customers are kept out of the admin surface.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/admin/orders/", buyerToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	// Promote a user to admin out of band, the way operations would, then log
	// in again so the token carries the new role.
	assert.NoError(t, store.db.Model(&models.User{}).Where("username = ?", "bob").Update("role", "admin").Error)
	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "bob",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	resp.Body.Close()
	adminToken := loginResp["token"]

	// The admin sees the full ledger.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/admin/orders/", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var orders []models.Order
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&orders))
	resp.Body.Close()
	assert.Len(t, orders, 1)

	// Refunding a pending order is rejected; complete it first.
	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/refund", adminToken, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	body := paymentEventBody(t, "payment_intent.succeeded", "pi_admin", order.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, handlers.SignPayload([]byte(testWebhookSecret), body, time.Now()))
	resp, err := store.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/admin/orders/"+order.ID+"/refund", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var refunded models.Order
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&refunded))
	resp.Body.Close()
	assert.Equal(t, models.OrderStatusRefunded, refunded.Status)
}

// TestReviewFlow covers the verified-purchase badge and moderation: a paying
// customer's review is flagged, a bystander's is not, and an admin can pull a
// review from the public listing without deleting it.
func TestReviewFlow(t *testing.T) {
	store := setupStoreApp(t, "review_flow")
	store.seedDownloadableProduct(t)
	buyerToken := store.registerAndLogin(t, "carol")
	visitorToken := store.registerAndLogin(t, "dave")

	// The buyer checks out and the processor confirms the payment.
	resp := store.jsonRequest(t, http.MethodPost, "/api/v1/orders/", buyerToken, map[string]interface{}{
		"items": []map[string]interface{}{
			{"product_id": "prod-a", "license_type": "standard", "quantity": 1},
		},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var order models.Order
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&order))
	resp.Body.Close()

	body := paymentEventBody(t, "payment_intent.succeeded", "pi_review", order.ID)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(handlers.SignatureHeader, handlers.SignPayload([]byte(testWebhookSecret), body, time.Now()))
	resp, err := store.app.Test(req, -1)
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The buyer's review carries the verified-purchase badge.
	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/reviews/", buyerToken, map[string]interface{}{
		"product_id": "prod-a",
		"rating":     5,
		"title":      "Exactly what I needed",
		"comment":    "Clean assets, instant download.",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var buyerReview models.Review
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&buyerReview))
	resp.Body.Close()
	assert.True(t, buyerReview.IsVerifiedPurchase)
	assert.True(t, buyerReview.IsApproved)

	// A visitor who never bought the product does not get the badge.
	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/reviews/", visitorToken, map[string]interface{}{
		"product_id": "prod-a",
		"rating":     3,
		"comment":    "Looks good from the screenshots.",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	var visitorReview models.Review
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&visitorReview))
	resp.Body.Close()
	assert.False(t, visitorReview.IsVerifiedPurchase)

	// Both reviews show up on the public product page, no auth required.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/products/prod-a/reviews", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var listed []models.Review
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Len(t, listed, 2)

	// An admin unapproves the visitor's review.
	assert.NoError(t, store.db.Model(&models.User{}).Where("username = ?", "dave").Update("role", "admin").Error)
	resp = store.jsonRequest(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"username": "dave",
		"password": "password123",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var loginResp map[string]string
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&loginResp))
	resp.Body.Close()
	adminToken := loginResp["token"]

	resp = store.jsonRequest(t, http.MethodPut, "/api/v1/admin/reviews/"+visitorReview.ID+"/approval", adminToken, map[string]interface{}{
		"approved": false,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// The public listing hides it; the author still sees it in their own list.
	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/products/prod-a/reviews", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&listed))
	resp.Body.Close()
	assert.Len(t, listed, 1)
	assert.Equal(t, buyerReview.ID, listed[0].ID)

	resp = store.jsonRequest(t, http.MethodGet, "/api/v1/reviews/", adminToken, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var mine []models.Review
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&mine))
	resp.Body.Close()
	assert.Len(t, mine, 1)
	assert.False(t, mine[0].IsApproved)
}
