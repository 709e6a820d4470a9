package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/supplyhub-backend/api/responses"
	pkgerrors "github.com/angelmondragon/supplyhub-backend/pkg/errors"
	"github.com/angelmondragon/supplyhub-backend/pkg/logger"
	"github.com/angelmondragon/supplyhub-backend/pkg/metrics"
)

// maxRateLimitPeek bounds how much of an auth body is buffered to find the email.
const maxRateLimitPeek = 64 << 10

type rateCounter interface {
	IncrWithTTL(context.Context, string, time.Duration) (int64, error)
	TTL(context.Context, string) (time.Duration, error)
	RateLimitKey(scope string) string
}

// AuthRateLimitPolicy names a throttled surface and its fixed-window limits.
// A zero limit switches that counter off.
type AuthRateLimitPolicy struct {
	name       string
	window     time.Duration
	ipLimit    int
	emailLimit int
}

func NewAuthRateLimitPolicy(name string, window time.Duration, ipLimit, emailLimit int) AuthRateLimitPolicy {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = "auth"
	}
	return AuthRateLimitPolicy{name: name, window: window, ipLimit: ipLimit, emailLimit: emailLimit}
}

func (p AuthRateLimitPolicy) active() bool {
	return p.window > 0 && (p.ipLimit > 0 || p.emailLimit > 0)
}

// bucket is one counter a request is charged against.
type bucket struct {
	kind  string
	scope string
	limit int64
}

// buckets lists the counters r is charged against. The body is buffered up
// to maxRateLimitPeek and restored for the next handler.
func (p AuthRateLimitPolicy) buckets(r *http.Request) ([]bucket, error) {
	var out []bucket
	if p.ipLimit > 0 {
		if ip := clientIP(r); ip != "" {
			out = append(out, bucket{kind: "ip", scope: "ip:" + p.name + ":" + ip, limit: int64(p.ipLimit)})
		}
	}
	if p.emailLimit > 0 && r.Body != nil {
		head, err := io.ReadAll(io.LimitReader(r.Body, maxRateLimitPeek))
		if err != nil {
			return nil, err
		}
		r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(head), r.Body))
		if email := emailFromBody(head); email != "" {
			out = append(out, bucket{kind: "email", scope: "email:" + p.name + ":" + digest(email), limit: int64(p.emailLimit)})
		}
	}
	return out, nil
}

// AuthRateLimit charges login and register calls against per-IP and
// per-email counters. The first exhausted counter answers 429 with a
// Retry-After taken from the counter's remaining TTL.
func AuthRateLimit(policy AuthRateLimitPolicy, store rateCounter, m *metrics.DomainMetrics, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !policy.active() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			buckets, err := policy.buckets(r)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
				return
			}
			for _, b := range buckets {
				key := store.RateLimitKey(b.scope)
				count, err := store.IncrWithTTL(ctx, key, policy.window)
				if err != nil {
					responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rate limiting"))
					return
				}
				if count > b.limit {
					m.RateLimited(policy.name + "_" + b.kind)
					w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(ctx, store, key, policy.window)))
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{
							"scope":    b.kind,
							"policy":   policy.name,
							"attempts": count,
							"limit":    b.limit,
						}), "auth.rate_limit.blocked")
					}
					responses.WriteError(ctx, nil, w, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(ctx context.Context, store rateCounter, key string, window time.Duration) int {
	wait := window
	if ttl, err := store.TTL(ctx, key); err == nil && ttl > 0 {
		wait = ttl
	}
	return max(1, int(wait.Round(time.Second)/time.Second))
}

// clientIP takes the first parseable X-Forwarded-For hop, then X-Real-IP,
// then the socket peer.
func clientIP(r *http.Request) string {
	for _, hop := range strings.Split(r.Header.Get("X-Forwarded-For"), ",") {
		if addr, err := netip.ParseAddr(strings.TrimSpace(hop)); err == nil {
			return addr.String()
		}
	}
	if addr, err := netip.ParseAddr(strings.TrimSpace(r.Header.Get("X-Real-IP"))); err == nil {
		return addr.String()
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func emailFromBody(payload []byte) string {
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(payload, &body) != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(body.Email))
}

func digest(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
