package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xc9973/spinwheel-service/internal/model"
	"github.com/xc9973/spinwheel-service/internal/pkg/lock"
	"github.com/xc9973/spinwheel-service/internal/repository"
	"github.com/xc9973/spinwheel-service/internal/reward"
	"github.com/xc9973/spinwheel-service/internal/spin"
)

func newTestHandler(t *testing.T, rewards []reward.Reward) *SpinHandler {
	return newTestHandlerWithStore(t, rewards, repository.NewMemoryStore())
}

func newTestHandlerWithStore(t *testing.T, rewards []reward.Reward, store repository.Store) *SpinHandler {
	t.Helper()
	table, err := reward.NewTable(rewards)
	require.NoError(t, err)

	selector := reward.NewSelector(rand.New(rand.NewSource(1)).Float64, 6)
	svc := spin.NewService(store, table, selector, lock.NewUserLock(), time.UTC, 3)
	return NewSpinHandler(svc, 100)
}

// commitErrStore fails every commit with a fixed error.
type commitErrStore struct {
	repository.Store
	err error
}

func (s *commitErrStore) CommitSpin(ctx context.Context, commit repository.SpinCommit) (*model.Wallet, error) {
	return nil, s.err
}

func coinsOnlyTable() []reward.Reward {
	return []reward.Reward{{Type: reward.TypeCoins, Value: 10, Weight: 1, Label: "10 Coins"}}
}

func doRequest(t *testing.T, handler http.HandlerFunc, method, target, uid string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if uid != "" {
		req.Header.Set("X-User-Id", uid)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestSpinHandler_Status(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	rec, body := doRequest(t, h.Status, http.MethodGet, "/api/spin/status", "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, true, body["free_spin_available"])
	assert.Equal(t, float64(0), body["bonus_spins"])
	assert.Equal(t, float64(0), body["wallet_coins"])

	rewards, ok := body["rewards"].([]any)
	require.True(t, ok)
	assert.Len(t, rewards, 1)
}

func TestSpinHandler_Status_MissingUID(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	rec, body := doRequest(t, h.Status, http.MethodGet, "/api/spin/status", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "UID is required", body["message"])
}

func TestSpinHandler_Spin(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	rec, body := doRequest(t, h.Spin, http.MethodPost, "/api/spin", "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["sector"])
	assert.Equal(t, true, body["free_spin_used_today"])
	assert.Equal(t, float64(0), body["bonus_spins_left"])
	assert.Equal(t, float64(10), body["wallet_coins"])

	drawn, ok := body["reward"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "coins", drawn["type"])
	assert.Equal(t, float64(10), drawn["value"])
}

func TestSpinHandler_Spin_Rejected(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	rec, _ := doRequest(t, h.Spin, http.MethodPost, "/api/spin", "u1")
	require.Equal(t, http.StatusOK, rec.Code)

	// Same day, no spins left.
	rec, body := doRequest(t, h.Spin, http.MethodPost, "/api/spin", "u1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "No spins left", body["message"])
}

func TestSpinHandler_Spin_MissingUID(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	rec, body := doRequest(t, h.Spin, http.MethodPost, "/api/spin", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "UID is required", body["message"])
}

func TestSpinHandler_Bonus(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	rec, body := doRequest(t, h.Bonus, http.MethodPost, "/api/spin/bonus", "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Bonus spin added", body["message"])
	assert.Equal(t, float64(1), body["bonus_spins_left"])

	_, body = doRequest(t, h.Bonus, http.MethodPost, "/api/spin/bonus", "u1")
	assert.Equal(t, float64(2), body["bonus_spins_left"])
}

func TestSpinHandler_History(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	// Empty history comes back as an empty array, not null.
	rec, body := doRequest(t, h.History, http.MethodGet, "/api/spin/history", "u1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["total"])
	records, ok := body["history"].([]any)
	require.True(t, ok)
	assert.Empty(t, records)

	_, spinBody := doRequest(t, h.Spin, http.MethodPost, "/api/spin", "u1")
	require.Equal(t, true, spinBody["success"])

	_, body = doRequest(t, h.History, http.MethodGet, "/api/spin/history", "u1")
	assert.Equal(t, float64(1), body["total"])
	records, ok = body["history"].([]any)
	require.True(t, ok)
	require.Len(t, records, 1)

	record, ok := records[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "coins", record["reward_type"])
	assert.Equal(t, "free", record["spin_kind"])
}

func TestSpinHandler_Rewards(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	rec, body := doRequest(t, h.Rewards, http.MethodGet, "/api/spin/rewards", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rewards, ok := body["rewards"].([]any)
	require.True(t, ok)
	require.Len(t, rewards, 1)

	first, ok := rewards[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "coins", first["type"])
	assert.Equal(t, "10 Coins", first["label"])
}

func TestSpinHandler_Spin_ConflictMapsTo503(t *testing.T) {
	// Every commit conflicting exhausts the engine's bounded retries.
	store := &commitErrStore{Store: repository.NewMemoryStore(), err: repository.ErrVersionConflict}
	h := newTestHandlerWithStore(t, coinsOnlyTable(), store)

	rec, body := doRequest(t, h.Spin, http.MethodPost, "/api/spin", "u1")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Please try again", body["message"])
}

func TestSpinHandler_Spin_StorageErrorMapsTo500(t *testing.T) {
	store := &commitErrStore{Store: repository.NewMemoryStore(), err: errors.New("connection reset")}
	h := newTestHandlerWithStore(t, coinsOnlyTable(), store)

	rec, body := doRequest(t, h.Spin, http.MethodPost, "/api/spin", "u1")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Internal server error", body["message"])
}

func TestSpinHandler_ServiceErrorMapping(t *testing.T) {
	h := newTestHandler(t, coinsOnlyTable())

	// Whitespace-only uid passes the header check but fails service validation.
	req := httptest.NewRequest(http.MethodPost, "/api/spin", nil)
	req.Header.Set("X-User-Id", "   ")
	rec := httptest.NewRecorder()
	h.Spin(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UID is required", body["message"])
}
