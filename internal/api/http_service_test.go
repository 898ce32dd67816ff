package api

import (
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPService_StartStop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	svc := NewHTTPService("127.0.0.1:0", handler, time.Second, time.Second, time.Second, zerolog.Nop())

	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start(), "second start must fail")

	resp, err := http.Get("http://" + svc.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, "ok", string(body))

	require.NoError(t, svc.Stop())
	require.NoError(t, svc.Stop(), "stop is idempotent")
}

func TestHTTPService_BindFailure(t *testing.T) {
	first := NewHTTPService("127.0.0.1:0", http.NotFoundHandler(), time.Second, time.Second, time.Second, zerolog.Nop())
	require.NoError(t, first.Start())
	defer func() { _ = first.Stop() }()

	second := NewHTTPService(first.Addr(), http.NotFoundHandler(), time.Second, time.Second, time.Second, zerolog.Nop())
	assert.Error(t, second.Start())
}
