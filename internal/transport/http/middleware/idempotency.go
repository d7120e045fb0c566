package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"hrleave/internal/transport/http/api"
)

const idempotencyLockTTL = 30 * time.Second

type idempotentResponse struct {
	Hash        string `json:"hash"`
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

func RequestHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func idempotencyKeys(r *http.Request, key string) (string, string) {
	actor := clientIPKey(r)
	if user, ok := GetUser(r.Context()); ok {
		actor = user.EmployeeID
	}
	cacheKey := "idemp:" + r.URL.Path + ":" + actor + ":" + key
	return cacheKey, cacheKey + ":lock"
}

// Idempotency replays the stored response for a repeated POST carrying the
// same Idempotency-Key. A nil client disables it. Redis failures fall
// through to the handler.
func Idempotency(rdb *redis.Client, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if rdb == nil || key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			payload, err := io.ReadAll(r.Body)
			if err != nil {
				api.Fail(w, http.StatusBadRequest, "invalid_body", "request body could not be read", GetRequestID(r.Context()))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(payload))
			hash := RequestHash(payload)

			ctx := r.Context()
			cacheKey, lockKey := idempotencyKeys(r, key)

			cached, err := rdb.Get(ctx, cacheKey).Bytes()
			switch {
			case err == nil:
				replay(w, r, cached, hash)
				return
			case !errors.Is(err, redis.Nil):
				slog.Warn("idempotency lookup failed", "err", err, "key", cacheKey)
				next.ServeHTTP(w, r)
				return
			}

			acquired, err := rdb.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
			if err != nil {
				slog.Warn("idempotency lock failed", "err", err, "key", lockKey)
				next.ServeHTTP(w, r)
				return
			}
			if !acquired {
				api.Fail(w, http.StatusConflict, "request_in_progress", "a request with this idempotency key is still being processed", GetRequestID(ctx))
				return
			}
			defer func() {
				if err := rdb.Del(context.WithoutCancel(ctx), lockKey).Err(); err != nil {
					slog.Warn("idempotency unlock failed", "err", err, "key", lockKey)
				}
			}()

			capture := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(capture, r)

			if capture.status >= http.StatusInternalServerError {
				return
			}
			stored, err := json.Marshal(idempotentResponse{
				Hash:        hash,
				Status:      capture.status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if err != nil {
				return
			}
			if err := rdb.Set(context.WithoutCancel(ctx), cacheKey, stored, ttl).Err(); err != nil {
				slog.Warn("idempotency store failed", "err", err, "key", cacheKey)
			}
		})
	}
}

func replay(w http.ResponseWriter, r *http.Request, cached []byte, hash string) {
	var stored idempotentResponse
	if err := json.Unmarshal(cached, &stored); err != nil {
		api.Fail(w, http.StatusInternalServerError, "idempotency_error", "stored response is unreadable", GetRequestID(r.Context()))
		return
	}
	if stored.Hash != hash {
		api.Fail(w, http.StatusUnprocessableEntity, "idempotency_conflict", "idempotency key was used with a different payload", GetRequestID(r.Context()))
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (c *captureWriter) WriteHeader(code int) {
	c.status = code
	c.ResponseWriter.WriteHeader(code)
}

func (c *captureWriter) Write(p []byte) (int, error) {
	c.body.Write(p)
	return c.ResponseWriter.Write(p)
}
