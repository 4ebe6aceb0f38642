package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/P-juuny/tsp-prob/dispatch/handlers"
	"github.com/P-juuny/tsp-prob/dispatch/planner"
	"github.com/P-juuny/tsp-prob/dispatch/routing"
	"github.com/P-juuny/tsp-prob/dispatch/store"
	"github.com/P-juuny/tsp-prob/dispatch/storetest"
)

var (
	seoulTZ    = time.FixedZone("KST", 9*3600)
	testSecret = []byte("test-secret")
	hub        = planner.Stop{Lat: 37.5299, Lon: 126.9648, Name: "용산역"}
)

type stubRouter struct{}

func (stubRouter) Route(ctx context.Context, from, to routing.Location) (*routing.Route, error) {
	return routing.StraightLine(from, to), nil
}

func (stubRouter) TimeMatrix(ctx context.Context, locations []routing.Location) ([][]float64, error) {
	return nil, errors.New("matrix not stubbed")
}

type stubSolver struct{}

func (stubSolver) Solve(ctx context.Context, matrix [][]float64) ([]int, float64, error) {
	return nil, 0, errors.New("solver not stubbed")
}

type fixture struct {
	store *storetest.Store
	hubs  *planner.HubState
	ts    *httptest.Server
}

func newFixture(t *testing.T, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		store: storetest.New(),
		hubs:  planner.NewHubState(),
	}
	clock := clockwork.NewFakeClockAt(now)

	newSide := func(side planner.Side) *planner.Planner {
		p, err := planner.New(planner.Config{
			Logger:   slog.Default(),
			Clock:    clock,
			Store:    f.store,
			Router:   stubRouter{},
			Solver:   stubSolver{},
			Side:     side,
			HubState: f.hubs,
			Hub:      hub,
			Location: seoulTZ,
		})
		require.NoError(t, err)
		return p
	}

	srv, err := handlers.New(handlers.Config{
		Logger:    slog.Default(),
		Store:     f.store,
		Pickup:    newSide(planner.PickupSide),
		Delivery:  newSide(planner.DeliverySide),
		HubState:  f.hubs,
		JWTSecret: testSecret,
	})
	require.NoError(t, err)
	srv.SetTrigger(&handlers.InProcessTrigger{Server: srv})

	f.ts = httptest.NewServer(srv.Router())
	t.Cleanup(f.ts.Close)
	return f
}

func at(hour, minute int) time.Time {
	return time.Date(2026, 8, 24, hour, minute, 0, 0, seoulTZ)
}

func token(t *testing.T, driverID int) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": driverID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func (f *fixture) call(t *testing.T, method, path string, body any, driverID int) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if driverID > 0 {
		req.Header.Set("Authorization", "Bearer "+token(t, driverID))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func newParcel(id int64, addr string) store.Parcel {
	return store.Parcel{
		ID:            id,
		Status:        store.StatusPickupPending,
		ProductName:   "상품",
		RecipientAddr: addr,
		CreatedAt:     time.Date(2026, 8, 24, 8, 0, 0, int(id), seoulTZ),
	}
}

func TestWebhook_AssignsForToday(t *testing.T) {
	f := newFixture(t, at(9, 0))
	f.store.Put(newParcel(100, "서울 강남구 테헤란로 1"))

	resp, body := f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{"parcel_id": 100}, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "강남구", body["district"])
	assert.Equal(t, "강남동부", body["zone"])
	assert.Equal(t, 5.0, body["driverId"])
	assert.Equal(t, "today", body["scheduled_for"])

	saved, ok := f.store.Snapshot(100)
	require.True(t, ok)
	require.NotNil(t, saved.PickupDriverID)
	assert.Equal(t, 5, *saved.PickupDriverID)
	require.NotNil(t, saved.PickupScheduledDate)
	assert.Equal(t, at(0, 0), *saved.PickupScheduledDate)
}

func TestWebhook_CutoffBoundary(t *testing.T) {
	// 11:59 is still today.
	f := newFixture(t, at(11, 59))
	f.store.Put(newParcel(100, "서울 마포구 월드컵북로 400"))
	_, body := f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{"parcel_id": 100}, 0)
	assert.Equal(t, "success", body["status"])

	// 12:00 exactly rolls to tomorrow.
	f = newFixture(t, at(12, 0))
	f.store.Put(newParcel(101, "서울 마포구 월드컵북로 400"))
	_, body = f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{"parcel_id": 101}, 0)
	assert.Equal(t, "scheduled_tomorrow", body["status"])
	assert.Equal(t, "2026-08-25", body["scheduled_date"])
	assert.Equal(t, 1.0, body["driverId"])

	saved, _ := f.store.Snapshot(101)
	assert.Equal(t, at(0, 0).AddDate(0, 0, 1), *saved.PickupScheduledDate)
}

func TestWebhook_Idempotent(t *testing.T) {
	f := newFixture(t, at(9, 0))
	f.store.Put(newParcel(100, "서울 강남구 테헤란로 1"))

	resp, _ := f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{"parcel_id": 100}, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{"parcel_id": 100}, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "already_processed", body["status"])
}

func TestWebhook_CamelCaseParcelID(t *testing.T) {
	f := newFixture(t, at(9, 0))
	f.store.Put(newParcel(100, "서울 관악구 남부순환로 1"))

	_, body := f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{"parcelId": 100}, 0)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, 4.0, body["driverId"])
}

func TestWebhook_BadRequests(t *testing.T) {
	f := newFixture(t, at(9, 0))

	resp, _ := f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{}, 0)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{"parcel_id": 999}, 0)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.store.Put(newParcel(100, "부산 해운대구 우동 123"))
	resp, _ = f.call(t, http.MethodPost, "/pickup/webhook", map[string]any{"parcel_id": 100}, 0)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNext_RequiresToken(t *testing.T) {
	f := newFixture(t, at(9, 0))
	resp, body := f.call(t, http.MethodGet, "/pickup/next", nil, 0)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "토큰이 없습니다", body["error"])
}

func TestNext_WrongSideDriverForbidden(t *testing.T) {
	f := newFixture(t, at(9, 0))

	resp, body := f.call(t, http.MethodGet, "/pickup/next", nil, 7)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "권한이 없습니다", body["error"])

	resp, _ = f.call(t, http.MethodGet, "/delivery/next", nil, 3)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestNext_PickupResponseShape(t *testing.T) {
	f := newFixture(t, at(9, 0))
	parcel := newParcel(100, "서울 용산구 한강대로 23")
	driverID := 3
	scheduled := at(0, 0)
	parcel.PickupDriverID = &driverID
	parcel.PickupScheduledDate = &scheduled
	f.store.Put(parcel)

	resp, body := f.call(t, http.MethodGet, "/pickup/next", nil, 3)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "success", body["status"])
	assert.Equal(t, true, body["is_last"])
	assert.Equal(t, 1.0, body["remaining_pickups"])
	require.NotNil(t, body["next_destination"])
	require.NotNil(t, body["route"])
	dest := body["next_destination"].(map[string]any)
	assert.Equal(t, 100.0, dest["parcel_id"])
}

func TestNext_WaitingBeforeStart(t *testing.T) {
	f := newFixture(t, at(6, 0))
	_, body := f.call(t, http.MethodGet, "/pickup/next", nil, 3)
	assert.Equal(t, "waiting", body["status"])
	assert.Equal(t, "07:00", body["start_time"])
	assert.Equal(t, 60.0, body["remaining_minutes"])
}

func TestNext_WaitingForOrdersBeforeCutoff(t *testing.T) {
	f := newFixture(t, at(9, 0))
	_, body := f.call(t, http.MethodGet, "/pickup/next", nil, 3)
	assert.Equal(t, "waiting_for_orders", body["status"])
	assert.Equal(t, "12:00", body["cutoff_time"])
}

func TestComplete(t *testing.T) {
	f := newFixture(t, at(10, 0))
	parcel := newParcel(100, "서울 용산구 한강대로 23")
	driverID := 3
	scheduled := at(0, 0)
	parcel.PickupDriverID = &driverID
	parcel.PickupScheduledDate = &scheduled
	f.store.Put(parcel)

	// A different pickup driver cannot complete someone else's parcel.
	resp, body := f.call(t, http.MethodPost, "/pickup/complete", map[string]any{"parcel_id": 100}, 4)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "권한이 없습니다", body["error"])

	resp, body = f.call(t, http.MethodPost, "/pickup/complete", map[string]any{"parcel_id": 100}, 3)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", body["status"])

	saved, _ := f.store.Snapshot(100)
	assert.Equal(t, store.StatusPickupCompleted, saved.Status)
	require.NotNil(t, saved.PickupCompletedAt)

	// Completing twice conflicts.
	resp, _ = f.call(t, http.MethodPost, "/pickup/complete", map[string]any{"parcel_id": 100}, 3)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.call(t, http.MethodPost, "/pickup/complete", map[string]any{"parcel_id": 999}, 3)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubArrived(t *testing.T) {
	f := newFixture(t, at(13, 0))
	parcel := newParcel(100, "서울 용산구 한강대로 23")
	driverID := 3
	scheduled := at(0, 0)
	parcel.PickupDriverID = &driverID
	parcel.PickupScheduledDate = &scheduled
	f.store.Put(parcel)

	// Pending work blocks hub arrival.
	resp, body := f.call(t, http.MethodPost, "/pickup/hub-arrived", nil, 3)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 1.0, body["remaining"])

	_, _ = f.call(t, http.MethodPost, "/pickup/complete", map[string]any{"parcel_id": 100}, 3)

	resp, body = f.call(t, http.MethodPost, "/pickup/hub-arrived", nil, 3)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["at_hub"])

	// With the flag set and nothing pending, next answers at_hub.
	_, body = f.call(t, http.MethodGet, "/pickup/next", nil, 3)
	assert.Equal(t, "at_hub", body["status"])
}

func TestStatus(t *testing.T) {
	f := newFixture(t, at(9, 0))

	resp, body := f.call(t, http.MethodGet, "/pickup/status", nil, 0)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "pickup", body["side"])
	assert.Equal(t, []any{1.0, 5.0}, body["drivers"])

	_, body = f.call(t, http.MethodGet, "/delivery/status", nil, 0)
	assert.Equal(t, "delivery", body["side"])
	assert.Equal(t, []any{6.0, 10.0}, body["drivers"])
}
