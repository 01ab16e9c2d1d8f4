package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"bitbucket.org/mmdatafocus/shopledger_backend/config"
	"bitbucket.org/mmdatafocus/shopledger_backend/handlers"
	"bitbucket.org/mmdatafocus/shopledger_backend/middlewares"
	"bitbucket.org/mmdatafocus/shopledger_backend/models"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(uuid.NewString(), "-", "") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), config.InitConfig())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	config.SetDB(db)
	config.SetRedisDB(nil)
	if err := db.Transaction(func(tx *gorm.DB) error {
		_, err := models.SeedChartOfAccounts(context.Background(), tx)
		return err
	}); err != nil {
		t.Fatalf("SeedChartOfAccounts: %v", err)
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middlewares.CorrelationMiddleware())
	r.Use(middlewares.SessionMiddleware())
	r.Use(middlewares.IdempotencyMiddleware())
	handlers.RegisterRoutes(r)
	return r
}

type apiError struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details"`
	} `json:"error"`
}

func do(t *testing.T, r http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middlewares.HeaderUserName, "cashier@stall")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeID(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var out struct {
		ID int `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out.ID
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) apiError {
	t.Helper()
	var out apiError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestLedgerAPI_SellThenSpoilBeyondStock(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodPost, "/shops", map[string]any{"name": "Market Stall"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	shopId := decodeID(t, w)

	w = do(t, r, http.MethodPost, "/batches", map[string]any{
		"item_name":         "Eggs",
		"quantity":          100,
		"metric":            "pcs",
		"unit_cost":         10,
		"unit_price":        15,
		"amount_paid":       1000,
		"supplier_name":     "Mama Njeri",
		"supplier_location": "Kiambu",
		"intake_date":       "2024-03-05",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	batchId := decodeID(t, w)

	w = do(t, r, http.MethodPost, "/distributions", map[string]any{"batch_id": batchId, "shop_id": shopId, "quantity": 60}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/consumptions", map[string]any{"shop_id": shopId, "item_name": "Eggs", "quantity": 40}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, "/spoilages", map[string]any{"shop_id": shopId, "item_name": "Eggs", "quantity": 25, "reason": "cracked"}, nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	apiErr := decodeError(t, w)
	require.Equal(t, "INSUFFICIENT_STOCK", apiErr.Error.Code)
	require.Equal(t, "20", apiErr.Error.Details["available"])

	w = do(t, r, http.MethodPost, "/spoilages", map[string]any{"shop_id": shopId, "item_name": "Eggs", "quantity": 20, "reason": "cracked"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	spoilageId := decodeID(t, w)

	w = do(t, r, http.MethodPost, fmt.Sprintf("/spoilages/%d/approve", spoilageId), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var reviewed models.StockMovement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviewed))
	require.Equal(t, "cashier@stall", reviewed.ReviewedBy)

	w = do(t, r, http.MethodPost, fmt.Sprintf("/spoilages/%d/reject", spoilageId), nil, nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	require.Equal(t, "STATE_CONFLICT", decodeError(t, w).Error.Code)

	w = do(t, r, http.MethodGet, fmt.Sprintf("/journals?source_type=movement&source_id=%d", spoilageId), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var balance struct {
		Balanced bool                  `json:"balanced"`
		Entries  []models.JournalEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &balance))
	require.True(t, balance.Balanced)
	require.NotEmpty(t, balance.Entries)
}

func TestLedgerAPI_IdempotentReplay(t *testing.T) {
	r := setupRouter(t)
	headers := map[string]string{middlewares.HeaderIdempotencyKey: "shop-create-1"}

	w := do(t, r, http.MethodPost, "/shops", map[string]any{"name": "Corner Kiosk"}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	shopId := decodeID(t, w)

	manual := map[string]any{"item_name": "Milk", "metric": "l", "quantity": 5, "unit_cost": 40, "unit_price": 60}
	path := fmt.Sprintf("/shops/%d/manual-stock", shopId)
	w = do(t, r, http.MethodPost, path, manual, headers)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, r, http.MethodPost, path, manual, headers)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	apiErr := decodeError(t, w)
	require.Equal(t, "STATE_CONFLICT", apiErr.Error.Code)
	require.Equal(t, "shop-create-1", apiErr.Error.Details["idempotency_key"])

	w = do(t, r, http.MethodGet, fmt.Sprintf("/shops/%d/stock?item=Milk", shopId), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var entries []models.ShopStockEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	require.True(t, entries[0].Quantity.Equal(decimal.NewFromInt(5)), entries[0].Quantity.String())

	w = do(t, r, http.MethodPost, path, manual, map[string]string{middlewares.HeaderIdempotencyKey: strings.Repeat("k", 256)})
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
}

func TestLedgerAPI_RejectsBadInput(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodGet, "/batches/abc", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", decodeError(t, w).Error.Code)

	w = do(t, r, http.MethodGet, "/batches/42", nil, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "REFERENCE_NOT_FOUND", decodeError(t, w).Error.Code)

	w = do(t, r, http.MethodGet, "/journals?source_type=invoice&source_id=1", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "source_type", firstDetailKey(decodeError(t, w)))

	w = do(t, r, http.MethodGet, "/batches/availability", nil, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/batches", map[string]any{
		"item_name": "Eggs", "quantity": 1, "metric": "pcs", "unit_cost": 1,
		"supplier_name": "A", "supplier_location": "B", "intake_date": "yesterday",
	}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "DATE_FORMAT_ERROR", decodeError(t, w).Error.Code)

	req := httptest.NewRequest(http.MethodPost, "/consumptions", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCorrelationIdIsEchoed(t *testing.T) {
	r := setupRouter(t)

	w := do(t, r, http.MethodGet, "/accounts", nil, map[string]string{middlewares.HeaderCorrelationId: "req-123"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-123", w.Header().Get(middlewares.HeaderCorrelationId))

	var accounts []models.Account
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &accounts))
	require.Len(t, accounts, len(models.DefaultChartOfAccounts))

	w = do(t, r, http.MethodGet, "/accounts", nil, nil)
	require.NotEmpty(t, w.Header().Get(middlewares.HeaderCorrelationId))
}

func firstDetailKey(e apiError) string {
	for k := range e.Error.Details {
		return k
	}
	return ""
}
