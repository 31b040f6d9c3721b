package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Local stand-in for the bKash tokenized checkout sandbox. It mimics the
// token grant and checkout create endpoints and can push a signed webhook to
// the app, which the real sandbox cannot do against localhost.

type mockPayment struct {
	PaymentID             string `json:"paymentID"`
	Status                string `json:"status"`
	Amount                string `json:"amount"`
	MerchantInvoiceNumber string `json:"merchantInvoiceNumber"`
	CreatedAt             int64  `json:"created_at"`
}

type mockStore struct {
	mu       sync.Mutex
	payments map[string]*mockPayment
}

func (s *mockStore) put(p *mockPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.PaymentID] = p
}

func (s *mockStore) get(id string) (*mockPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[id]
	return p, ok
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	store := &mockStore{payments: make(map[string]*mockPayment)}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	v := e.Group("/v1.2.0-beta")

	v.POST("/tokenized/checkout/token/grant", func(c echo.Context) error {
		username := c.Request().Header.Get("username")
		password := c.Request().Header.Get("password")

		var body struct {
			AppKey    string `json:"app_key"`
			AppSecret string `json:"app_secret"`
		}
		_ = c.Bind(&body)

		// Very permissive: any non-empty credentials get a fake token
		if username == "" || password == "" || body.AppKey == "" || body.AppSecret == "" {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"message": "Missing required request parameters: [password, username]",
			})
		}

		return c.JSON(http.StatusOK, map[string]string{
			"id_token":   "MOCK_BKASH_TOKEN_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
			"token_type": "Bearer",
			"expires_in": "3600",
		})
	})

	v.POST("/tokenized/checkout/create", func(c echo.Context) error {
		if !strings.HasPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ") {
			return c.JSON(http.StatusUnauthorized, map[string]string{"message": "Unauthorized"})
		}

		var payload map[string]interface{}
		_ = c.Bind(&payload)
		amount, _ := payload["amount"].(string)
		invoice, _ := payload["merchantInvoiceNumber"].(string)
		if invoice == "" {
			invoice = uuid.NewString()[:10]
		}

		p := &mockPayment{
			PaymentID:             "MOCKPAY" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16],
			Status:                "INITIATED",
			Amount:                amount,
			MerchantInvoiceNumber: invoice,
			CreatedAt:             time.Now().Unix(),
		}
		store.put(p)

		return c.JSON(http.StatusOK, map[string]string{
			"paymentID": p.PaymentID,
			"bkashURL":  "https://mock.bkash.local/checkout/" + p.PaymentID,
			"status":    "SUCCESS",
		})
	})

	v.POST("/tokenized/checkout/execute/:paymentID", func(c echo.Context) error {
		p, ok := store.get(c.Param("paymentID"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Not found"})
		}
		p.Status = "SUCCESS"
		return c.JSON(http.StatusOK, map[string]string{"paymentID": p.PaymentID, "status": "SUCCESS"})
	})

	// Dev-only: push a signed webhook to the app under test
	v.POST("/mock/send_webhook/:paymentID", func(c echo.Context) error {
		p, ok := store.get(c.Param("paymentID"))
		if !ok {
			return c.JSON(http.StatusNotFound, map[string]string{"message": "Not found"})
		}

		site := c.QueryParam("site")
		if site == "" {
			site = "http://127.0.0.1:8080"
		}
		status := c.QueryParam("status")
		if status == "" {
			status = "SUCCESS"
		}

		payload, err := json.Marshal(map[string]string{
			"paymentID":      p.PaymentID,
			"status":         status,
			"transaction_id": c.QueryParam("txid"),
		})
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}

		webhookURL := strings.TrimRight(site, "/") + "/api/payments/webhook"
		req, err := http.NewRequest(http.MethodPost, webhookURL, bytes.NewReader(payload))
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Signature", sign(payload))

		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Do(req)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
		}
		defer resp.Body.Close()
		respBody, _ := io.ReadAll(resp.Body)

		return c.JSON(http.StatusOK, map[string]interface{}{
			"posted_to":     webhookURL,
			"status_code":   resp.StatusCode,
			"response_text": string(respBody),
		})
	})

	port := os.Getenv("MOCK_BKASH_PORT")
	if port == "" {
		port = "9000"
	}

	log.Printf("Mock bKash server running on port %s", port)
	e.Logger.Fatal(e.Start(":" + port))
}

// sign computes the same HMAC the webhook reconciler expects
func sign(payload []byte) string {
	secret := os.Getenv("PAYMENT_WEBHOOK_SECRET")
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
