package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/region23/tablebook/internal/bot"
	botservice "github.com/region23/tablebook/internal/bot/service"
	"github.com/region23/tablebook/internal/config"
	"github.com/region23/tablebook/internal/reservation"
	"github.com/region23/tablebook/internal/storage/models"
	"github.com/region23/tablebook/internal/storage/sqlite"
	"github.com/region23/tablebook/internal/tables"
	"github.com/region23/tablebook/internal/tokens/memory"
	"github.com/region23/tablebook/pkg/logger"
)

type nopSender struct {
	mu     sync.Mutex
	sent   []*tgbot.SendMessageParams
	edited []*tgbot.EditMessageTextParams
}

func (n *nopSender) SendMessage(_ context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, params)
	return &tgmodels.Message{ID: len(n.sent)}, nil
}

func (n *nopSender) EditMessageText(_ context.Context, params *tgbot.EditMessageTextParams) (*tgmodels.Message, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.edited = append(n.edited, params)
	return &tgmodels.Message{ID: params.MessageID}, nil
}

func (n *nopSender) AnswerCallbackQuery(context.Context, *tgbot.AnswerCallbackQueryParams) (bool, error) {
	return true, nil
}

type testServer struct {
	t      *testing.T
	srv    *Server
	store  *sqlite.SQLiteStorage
	sender *nopSender
}

func testConfig() *config.Config {
	return &config.Config{
		Telegram: config.TelegramConfig{
			SecretToken: "hook-secret",
			BotUsername: "tablebook_bot",
		},
		Server: config.ServerConfig{
			Port:            "0",
			AllowedOrigins:  []string{"*"},
			RateLimitPerMin: 6000,
			RateLimitBurst:  1000,
			GinMode:         gin.TestMode,
		},
		Reservation: config.ReservationConfig{SlotDuration: 2 * time.Hour},
		Tokens:      config.TokenConfig{TTL: time.Hour},
		Auth:        config.AuthConfig{JWTSecret: "test-secret"},
	}
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logger.Nop()
	cfg := testConfig()

	engine := tables.NewEngine(store, log)
	reservations := reservation.NewService(store, time.UTC, log)
	sender := &nopSender{}
	tokenStore := memory.NewStore()
	botSvc := botservice.NewService(sender, store, reservations, tokenStore, botservice.Options{
		BotUsername: cfg.Telegram.BotUsername,
		TokenTTL:    cfg.Tokens.TTL,
		Location:    time.UTC,
	}, log)

	srv, err := New(cfg, Deps{
		Storage:      store,
		Tables:       engine,
		Allocator:    reservation.NewAllocator(engine, store, cfg.Reservation.SlotDuration, time.UTC, log),
		Reservations: reservations,
		Bot:          botSvc,
		Dispatcher:   bot.NewDispatcher(botSvc, log),
		Tokens:       tokenStore,
	}, log)
	require.NoError(t, err)
	t.Cleanup(srv.rateLimiter.Close)

	return &testServer{t: t, srv: srv, store: store, sender: sender}
}

func (ts *testServer) do(method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	ts.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func (ts *testServer) restaurant() string {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/api/v1/restaurants", gin.H{"name": "Casa"})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())

	var r models.Restaurant
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &r))
	return r.ID
}

func (ts *testServer) table(restaurantID string, capacity int, location string) models.Table {
	ts.t.Helper()
	body := gin.H{"restaurant_id": restaurantID, "capacity": capacity}
	if location != "" {
		body["location"] = location
	}
	w := ts.do(http.MethodPost, "/api/v1/tables", body)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())

	var t models.Table
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &t))
	return t
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error errorBody `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body.Error.Code
}

func reservationBody(restaurantID string, party int, clock string) gin.H {
	return gin.H{
		"restaurant_id":    restaurantID,
		"client_name":      "Ana",
		"client_contact":   "+351900000000",
		"party_size":       party,
		"reservation_date": "2025-06-01",
		"reservation_time": clock,
		"customer_id":      "c-1",
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

	var report HealthReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, statusHealthy, report.Checks["database"].Status)
	assert.NotContains(t, report.Checks, "tokens")
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("down") }

func TestHealthChecker_Statuses(t *testing.T) {
	ctx := context.Background()

	report := NewHealthChecker(nil, "v1").Optional("tokens", failingPinger{}).Check(ctx)
	assert.Equal(t, statusDegraded, report.Status)
	assert.Equal(t, statusUnhealthy, report.Checks["tokens"].Status)

	report = NewHealthChecker(failingPinger{}, "v1").Check(ctx)
	assert.Equal(t, statusUnhealthy, report.Status)
	assert.Equal(t, "v1", report.Version)
}

func TestTables_CreateListJoinUnjoin(t *testing.T) {
	ts := newTestServer(t)
	rid := ts.restaurant()

	t1 := ts.table(rid, 4, "terrace")
	t2 := ts.table(rid, 2, "terrace")
	assert.Equal(t, "T1", t1.Name)
	assert.Equal(t, "T2", t2.Name)

	w := ts.do(http.MethodGet, "/api/v1/tables/next-name?restaurant_id="+rid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"T3"}`, w.Body.String())

	w = ts.do(http.MethodPost, "/api/v1/tables/join", gin.H{"restaurant_id": rid, "table_numbers": []string{"T2", "T1"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var group tables.JoinedGroup
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &group))
	assert.Equal(t, "T1-T2", group.ID)
	assert.Equal(t, 6, group.Capacity)
	require.NotNil(t, group.Location)
	assert.Equal(t, "terrace", *group.Location)

	w = ts.do(http.MethodGet, "/api/v1/tables?restaurant_id="+rid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var units []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &units))
	require.Len(t, units, 1)
	assert.Equal(t, tables.UnitJoined, units[0]["type"])

	w = ts.do(http.MethodPost, "/api/v1/tables/join", gin.H{"restaurant_id": rid, "table_numbers": []string{"T1", "T2"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ALREADY_JOINED", errorCode(t, w))

	w = ts.do(http.MethodPost, "/api/v1/tables/unjoin", gin.H{"restaurant_id": rid, "joined_group_id": group.ID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var released []models.Table
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &released))
	require.Len(t, released, 2)
	for _, tb := range released {
		assert.False(t, tb.IsJoined)
		assert.Nil(t, tb.JoinedGroupID)
	}

	w = ts.do(http.MethodPost, "/api/v1/tables/unjoin", gin.H{"restaurant_id": rid, "joined_group_id": group.ID})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "GROUP_NOT_FOUND", errorCode(t, w))
}

func TestTables_JoinValidation(t *testing.T) {
	ts := newTestServer(t)
	rid := ts.restaurant()
	ts.table(rid, 4, "terrace")
	ts.table(rid, 4, "hall")

	w := ts.do(http.MethodPost, "/api/v1/tables/join", gin.H{"restaurant_id": rid, "table_numbers": []string{"T1"}})
	assert.Equal(t, "INSUFFICIENT_TABLES", errorCode(t, w))

	w = ts.do(http.MethodPost, "/api/v1/tables/join", gin.H{"restaurant_id": rid, "table_numbers": []string{"T1", "T9"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "TABLE_NOT_FOUND", errorCode(t, w))

	w = ts.do(http.MethodPost, "/api/v1/tables/join", gin.H{"restaurant_id": rid, "table_numbers": []string{"T1", "T2"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "LOCATION_MISMATCH", errorCode(t, w))
}

func TestTables_UpdateAndDelete(t *testing.T) {
	ts := newTestServer(t)
	rid := ts.restaurant()
	t1 := ts.table(rid, 4, "")

	w := ts.do(http.MethodPatch, "/api/v1/tables/"+t1.ID, gin.H{"capacity": 6, "status": "maintenance"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated models.Table
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, 6, updated.Capacity)
	assert.Equal(t, models.TableMaintenance, updated.Status)

	w = ts.do(http.MethodPatch, "/api/v1/tables/"+t1.ID, gin.H{"status": "broken"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = ts.do(http.MethodPatch, "/api/v1/tables/"+t1.ID, gin.H{"name": "T1-T2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = ts.do(http.MethodPost, "/api/v1/tables", gin.H{"restaurant_id": rid, "name": "A-B", "capacity": 2})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = ts.do(http.MethodDelete, "/api/v1/tables/"+t1.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "message")

	w = ts.do(http.MethodDelete, "/api/v1/tables/"+t1.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestReservations_AllocateAndErrors(t *testing.T) {
	ts := newTestServer(t)
	rid := ts.restaurant()
	t1 := ts.table(rid, 2, "")
	ts.table(rid, 4, "")

	w := ts.do(http.MethodPost, "/api/v1/reservations", reservationBody(rid, 2, "19:00"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created createReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, t1.ID, created.TableID)
	assert.Equal(t, models.ReservationPending, created.Status)
	assert.Equal(t, "Reservation created", created.Message)

	w = ts.do(http.MethodPost, "/api/v1/reservations", reservationBody(rid, 8, "19:00"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_CAPACITY", errorCode(t, w))

	ts.do(http.MethodPost, "/api/v1/reservations", reservationBody(rid, 2, "20:00"))
	w = ts.do(http.MethodPost, "/api/v1/reservations", reservationBody(rid, 2, "20:30"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "NO_AVAILABILITY", errorCode(t, w))

	w = ts.do(http.MethodPost, "/api/v1/reservations", reservationBody(rid, 2, "7pm"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))

	w = ts.do(http.MethodGet, "/api/v1/reservations/pending?restaurant_id="+rid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending []models.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &pending))
	assert.Len(t, pending, 3)

	w = ts.do(http.MethodGet, "/api/v1/dashboard-status?date=2025-06-01&restaurant_id="+rid, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dashboard reservation.Dashboard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &dashboard))
	require.Len(t, dashboard.Tables, 2)
	assert.Equal(t, "pending", dashboard.Tables[0].Status)
	require.NotNil(t, dashboard.Tables[0].Reservation)
	assert.Equal(t, "Ana", dashboard.Tables[0].Reservation.CustomerName)
}

func TestRestaurantScopeRequired(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/tables", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, w))
}

func TestBearerIdentityScopesRestaurant(t *testing.T) {
	ts := newTestServer(t)
	own := ts.restaurant()
	other := ts.restaurant()
	ts.table(own, 4, "")

	token, err := ts.srv.Authenticator().Issue("admin-1", own, time.Hour)
	require.NoError(t, err)

	w := ts.do(http.MethodGet, "/api/v1/tables", nil, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "T1")

	w = ts.do(http.MethodGet, "/api/v1/reservations/pending?restaurant_id="+other, nil, "Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodGet, "/api/v1/tables", nil, "Authorization", "Bearer nope")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhook_SecretAndConfirm(t *testing.T) {
	ts := newTestServer(t)
	ctx := context.Background()
	rid := ts.restaurant()
	ts.table(rid, 4, "")

	w := ts.do(http.MethodPost, "/api/v1/restaurants/"+rid+"/admins", gin.H{"email": "Host@Casa.pt", "name": "Host"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var admin models.Admin
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &admin))
	assert.Equal(t, "host@casa.pt", admin.Email)
	require.NoError(t, ts.store.LinkAdminTelegram(ctx, admin.ID, 42, "host"))

	w = ts.do(http.MethodPost, "/api/v1/reservations", reservationBody(rid, 2, "19:00"))
	require.Equal(t, http.StatusCreated, w.Code)
	var created createReservationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	update := gin.H{
		"update_id": 1,
		"callback_query": gin.H{
			"id":   "cb",
			"from": gin.H{"id": 42, "is_bot": false, "first_name": "Host"},
			"data": "confirm:" + created.ReservationID,
			"message": gin.H{
				"message_id": 5,
				"date":       time.Now().Unix(),
				"chat":       gin.H{"id": 42, "type": "private"},
			},
		},
	}

	w = ts.do(http.MethodPost, "/api/v1/telegram/webhook", update)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/telegram/webhook", update, telegramSecretToken, "hook-secret")
	require.Equal(t, http.StatusOK, w.Code)

	r, err := ts.store.GetReservation(ctx, created.ReservationID)
	require.NoError(t, err)
	assert.Equal(t, models.ReservationConfirmed, r.Status)
	require.Len(t, ts.sender.edited, 1)
	assert.True(t, strings.HasSuffix(ts.sender.edited[0].Text, "confirmed by admin."))
}

func TestLinkTokenAndLanguage(t *testing.T) {
	ts := newTestServer(t)
	rid := ts.restaurant()

	w := ts.do(http.MethodPost, "/api/v1/restaurants/"+rid+"/admins", gin.H{"email": "host@casa.pt"})
	require.Equal(t, http.StatusCreated, w.Code)
	var admin models.Admin
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &admin))

	w = ts.do(http.MethodPost, "/api/v1/restaurants/"+rid+"/admins", gin.H{"email": "host@casa.pt"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "DUPLICATE_ADMIN", errorCode(t, w))

	w = ts.do(http.MethodPost, "/api/v1/telegram/link-token", gin.H{"admin_id": admin.ID})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	other, err := ts.srv.Authenticator().Issue("someone-else", rid, time.Hour)
	require.NoError(t, err)
	w = ts.do(http.MethodPost, "/api/v1/telegram/link-token", gin.H{"admin_id": admin.ID}, "Authorization", "Bearer "+other)
	assert.Equal(t, http.StatusForbidden, w.Code)

	token, err := ts.srv.Authenticator().Issue(admin.ID, rid, time.Hour)
	require.NoError(t, err)
	w = ts.do(http.MethodPost, "/api/v1/telegram/link-token", gin.H{"admin_id": admin.ID}, "Authorization", "Bearer "+token)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var link botservice.LinkToken
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &link))
	assert.Equal(t, "https://t.me/tablebook_bot?start="+link.Token, link.DeepLink)

	update := gin.H{
		"update_id": 2,
		"message": gin.H{
			"message_id": 1,
			"date":       time.Now().Unix(),
			"text":       "/start " + link.Token,
			"chat":       gin.H{"id": 77, "type": "private"},
			"from":       gin.H{"id": 77, "is_bot": false, "first_name": "Host", "username": "host"},
		},
	}
	w = ts.do(http.MethodPost, "/api/v1/telegram/webhook", update, telegramSecretToken, "hook-secret")
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, "/api/v1/telegram/language/77", gin.H{"language": "pt"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = ts.do(http.MethodGet, "/api/v1/telegram/language/77", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"chat_id":77,"language":"pt"}`, w.Body.String())

	w = ts.do(http.MethodPost, "/api/v1/telegram/language/77", gin.H{"language": "de"})
	assert.Equal(t, "INVALID_LANGUAGE", errorCode(t, w))

	w = ts.do(http.MethodGet, "/api/v1/telegram/language/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUnknownRestaurant(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodGet, "/api/v1/restaurants/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "RESTAURANT_NOT_FOUND", errorCode(t, w))
}
