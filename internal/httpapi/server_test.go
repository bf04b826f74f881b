// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi_test

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/warden/internal/certs"
	"github.com/holomush/warden/internal/httpapi"
)

func TestServer_ServesUntilStopped(t *testing.T) {
	env := newAPIEnv(t)
	srv := httpapi.NewServer("127.0.0.1:0", env.router, slog.New(slog.DiscardHandler))

	errCh, err := srv.Start()
	require.NoError(t, err)
	assert.NotEmpty(t, srv.Addr())

	resp, err := http.Get("http://" + srv.Addr() + "/auth/me")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"data":null}`, string(body))

	_, err = srv.Start()
	assert.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))

	_, open := <-errCh
	assert.False(t, open)
}

func TestServer_ListenFailure(t *testing.T) {
	srv := httpapi.NewServer("256.0.0.1:0", http.NotFoundHandler(), nil)

	_, err := srv.Start()

	require.Error(t, err)
	assert.Empty(t, srv.Addr())
}

func TestServer_TLS(t *testing.T) {
	env := newAPIEnv(t)
	dir := t.TempDir()
	ca, err := certs.GenerateCA("test")
	require.NoError(t, err)
	pair, err := certs.GenerateServerCert(ca, "localhost", "127.0.0.1")
	require.NoError(t, err)
	require.NoError(t, certs.Save(dir, ca, pair))
	tlsCfg, err := certs.LoadServerTLS(filepath.Join(dir, certs.ServerCertFile), filepath.Join(dir, certs.ServerKeyFile))
	require.NoError(t, err)

	srv := httpapi.NewServer("127.0.0.1:0", env.router, nil, httpapi.WithTLS(tlsCfg))
	_, err = srv.Start()
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})

	pool := x509.NewCertPool()
	pool.AddCert(ca.Certificate)
	client := &http.Client{Transport: &http.Transport{
		TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12},
	}}
	t.Cleanup(client.CloseIdleConnections)

	resp, err := client.Get("https://" + srv.Addr() + "/auth/me")
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
