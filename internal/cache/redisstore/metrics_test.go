package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/geos/internal/core/observability"
	"github.com/mohammed-shakir/geos/internal/metrics"
)

func Test_RedisMetrics_SetGet(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer(), true)

	c, _ := newMini(t)
	ctx := context.Background()
	_ = c.Set(ctx, "k:hit", []byte("v"), time.Minute)
	_, _, _ = c.Get(ctx, "k:hit")
	_, _, _ = c.Get(ctx, "k:miss")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	body := rr.Body.String()

	for _, want := range []string{
		`cache_op_total{op="set",result="ok"}`,
		`cache_op_total{op="get",result="ok"}`,
		`redis_operation_duration_seconds_bucket{op="set"`,
		`redis_operation_duration_seconds_count{op="get"}`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %s\n%s", want, body)
		}
	}
}
