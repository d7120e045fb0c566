package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	"hrleave/internal/domain/auth"
)

func TestRequestHashDeterministic(t *testing.T) {
	hash1 := RequestHash([]byte("payload"))
	hash2 := RequestHash([]byte("payload"))
	hash3 := RequestHash([]byte("other"))

	if hash1 != hash2 {
		t.Fatal("expected deterministic hash")
	}
	if hash1 == hash3 {
		t.Fatal("expected different hash for different payload")
	}
}

func idempotentRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", bytes.NewBufferString(body))
	req.Header.Set("Idempotency-Key", "k1")
	return req.WithContext(WithUser(req.Context(), auth.UserContext{EmployeeID: "emp-1", Role: auth.RoleEmployee}))
}

const (
	testCacheKey = "idemp:/api/v1/requests:emp-1:k1"
	testLockKey  = testCacheKey + ":lock"
)

func TestIdempotencyStoresFirstResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	body := `{"requestTypeId":"t1"}`

	stored, err := json.Marshal(idempotentResponse{
		Hash:        RequestHash([]byte(body)),
		Status:      http.StatusCreated,
		ContentType: "application/json",
		Body:        []byte(`{"id":"r1"}`),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	mock.ExpectGet(testCacheKey).RedisNil()
	mock.ExpectSetNX(testLockKey, "locked", idempotencyLockTTL).SetVal(true)
	mock.ExpectSet(testCacheKey, stored, time.Hour).SetVal("OK")
	mock.ExpectDel(testLockKey).SetVal(1)

	calls := 0
	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"r1"}`))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(body))
	if rec.Code != http.StatusCreated || calls != 1 {
		t.Fatalf("expected handler to run once with 201, got %d calls=%d", rec.Code, calls)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("redis expectations: %v", err)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	body := `{"requestTypeId":"t1"}`
	stored, _ := json.Marshal(idempotentResponse{
		Hash:        RequestHash([]byte(body)),
		Status:      http.StatusCreated,
		ContentType: "application/json",
		Body:        []byte(`{"id":"r1"}`),
	})
	mock.ExpectGet(testCacheKey).SetVal(string(stored))

	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run on replay")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", rec.Code)
	}
	if rec.Body.String() != `{"id":"r1"}` {
		t.Fatalf("unexpected replay body %q", rec.Body.String())
	}
	if rec.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("expected replay header")
	}
}

func TestIdempotencyRejectsDifferentPayload(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	stored, _ := json.Marshal(idempotentResponse{Hash: RequestHash([]byte(`{"a":1}`)), Status: http.StatusCreated})
	mock.ExpectGet(testCacheKey).SetVal(string(stored))

	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(`{"a":2}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestIdempotencyConcurrentDuplicate(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	mock.ExpectGet(testCacheKey).RedisNil()
	mock.ExpectSetNX(testLockKey, "locked", idempotencyLockTTL).SetVal(false)

	handler := Idempotency(rdb, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run while another request holds the key")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, idempotentRequest(`{}`))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestIdempotencyPassThroughWithoutKeyOrClient(t *testing.T) {
	calls := 0
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNoContent)
	})

	Idempotency(nil, time.Hour)(next).ServeHTTP(httptest.NewRecorder(), idempotentRequest(`{}`))

	rdb, _ := redismock.NewClientMock()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/requests", nil)
	Idempotency(rdb, time.Hour)(next).ServeHTTP(httptest.NewRecorder(), req)

	if calls != 2 {
		t.Fatalf("expected both requests to reach the handler, got %d", calls)
	}
}
