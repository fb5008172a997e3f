package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func ok(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }

func TestWrap_Order(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := Wrap(http.HandlerFunc(ok), mark("outer"), mark("middle"), mark("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"outer", "middle", "inner"}, order)
}

func TestMakeRouteFinder(t *testing.T) {
	api := chi.NewRouter()
	api.Get("/products/{key}", ok)
	api.Post("/checkout/create", ok)
	root := chi.NewRouter()
	root.Get("/livez", ok)
	root.Mount("/api", api)

	find := MakeRouteFinder(root)
	for _, tt := range []struct {
		method, path string
		want         string
		found        bool
	}{
		{http.MethodGet, "/api/products/rose-quartz", "/api/products/{key}", true},
		{http.MethodPost, "/api/checkout/create", "/api/checkout/create", true},
		{http.MethodGet, "/livez", "/livez", true},
		{http.MethodGet, "/api/checkout/create", "", false},
		{http.MethodGet, "/nope", "", false},
	} {
		route, found := find(httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.found, found, "%s %s", tt.method, tt.path)
		assert.Equal(t, tt.want, route, "%s %s", tt.method, tt.path)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	t.Run("generated", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})
	t.Run("reused", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set(RequestIDHeader, "upstream-42")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, "upstream-42", seen)
		assert.Equal(t, "upstream-42", w.Header().Get(RequestIDHeader))
	})
	t.Run("rejected", func(t *testing.T) {
		for _, bad := range []string{"line\nbreak", strings.Repeat("a", maxRequestIDLen+1)} {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.Header.Set(RequestIDHeader, bad)
			h.ServeHTTP(httptest.NewRecorder(), r)
			assert.NotEqual(t, bad, seen)
			assert.Len(t, seen, 36)
		}
	})
}

func TestInjectLogger_AndLogRequests(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	lg := zap.New(core)

	mux := chi.NewRouter()
	mux.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		zctx.From(r.Context()).Info("Handling")
		w.WriteHeader(http.StatusNotFound)
	})
	mux.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.Get("/fine", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	h := Wrap(mux, RequestID(), InjectLogger(lg), LogRequests(MakeRouteFinder(mux)))
	for _, path := range []string{"/orders/o1", "/boom", "/fine", "/missing"} {
		r := httptest.NewRequest(http.MethodGet, path, nil)
		r.Header.Set(RequestIDHeader, "rid-1")
		h.ServeHTTP(httptest.NewRecorder(), r)
	}

	handling := logs.FilterMessage("Handling").All()
	require.Len(t, handling, 1)
	assert.Equal(t, "rid-1", handling[0].ContextMap()["request_id"])

	requests := logs.FilterMessage("Request").All()
	require.Len(t, requests, 4)

	type line struct {
		level  zapcore.Level
		route  string
		status int64
	}
	var got []line
	for _, e := range requests {
		fields := e.ContextMap()
		got = append(got, line{e.Level, fields["route"].(string), fields["status"].(int64)})
	}
	assert.Equal(t, []line{
		{zapcore.WarnLevel, "/orders/{id}", 404},
		{zapcore.ErrorLevel, "/boom", 502},
		{zapcore.InfoLevel, "/fine", 200},
		{zapcore.WarnLevel, "unknown", 404},
	}, got)
}

func TestRecovery(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	h := Wrap(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("checkout exploded")
	}), InjectLogger(zap.New(core)), Recovery())

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/checkout/create", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"code":500,"message":"internal server error"}`, w.Body.String())
	require.Equal(t, 1, logs.FilterMessage("Panic recovered").Len())
}

func TestRecovery_AbortHandler(t *testing.T) {
	h := Recovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestCORS(t *testing.T) {
	preflight := func(h http.Handler, origin string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodOptions, "/api/checkout/create", nil)
		r.Header.Set("Origin", origin)
		r.Header.Set("Access-Control-Request-Method", http.MethodPost)
		r.Header.Set("Access-Control-Request-Headers", "Content-Type")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	t.Run("any origin", func(t *testing.T) {
		h := CORS(CORSConfig{MaxAge: 10 * time.Minute})(http.HandlerFunc(ok))
		w := preflight(h, "https://shop.example.com")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, PUT, DELETE, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
		assert.Equal(t, "Content-Type", w.Header().Get("Access-Control-Allow-Headers"))
		assert.Equal(t, "600", w.Header().Get("Access-Control-Max-Age"))
	})

	t.Run("listed origin", func(t *testing.T) {
		h := CORS(CORSConfig{Origins: []string{"https://Shop.Example.com/"}, Credentials: true})(http.HandlerFunc(ok))

		r := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		r.Header.Set("Origin", "https://shop.example.com")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "https://Shop.Example.com", w.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
		assert.Contains(t, w.Header().Values("Vary"), "Origin")

		w = preflight(h, "https://evil.example.com")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("credentials echo origin", func(t *testing.T) {
		h := CORS(CORSConfig{Credentials: true})(http.HandlerFunc(ok))
		w := preflight(h, "https://a.example.com")
		assert.Equal(t, "https://a.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	})
}
