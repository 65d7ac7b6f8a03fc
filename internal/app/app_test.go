package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atvirokodosprendimai/caprepair/internal/adapters/events"
	"github.com/atvirokodosprendimai/caprepair/internal/core/domain"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestResourceCloserReturnsFirstError(t *testing.T) {
	first := errors.New("first")
	var closed int
	rc := resourceCloser{closers: []io.Closer{
		closerFunc(func() error { closed++; return first }),
		nil,
		closerFunc(func() error { closed++; return errors.New("second") }),
	}}

	assert.ErrorIs(t, rc.Close(), first)
	assert.Equal(t, 2, closed)
}

func TestNewServerSQLiteServesRecords(t *testing.T) {
	cfg := Config{
		Addr:     ":0",
		DBDriver: "sqlite",
		DSN:      filepath.Join(t.TempDir(), "registry.sqlite"),
	}
	server, closer, err := NewServer(context.Background(), cfg)
	require.NoError(t, err)
	defer closer.Close()

	body := `{"uid":"1234567890","fio":"Ivanov I.I.","ph_numb":"79001234567"}`
	rec := httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/records/owner", strings.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/changes?kind=owner", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"action":"insert"`)

	rec = httptest.NewRecorder()
	server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `caprepair_writes_total{action="insert",kind="owner",outcome="ok"} 1`)
}

func TestNewServerRejectsUnknownDriver(t *testing.T) {
	_, _, err := NewServer(context.Background(), Config{DBDriver: "mysql", DSN: "x"})
	assert.Error(t, err)
}

func TestMigrateIsRepeatable(t *testing.T) {
	cfg := Config{DBDriver: "sqlite", DSN: filepath.Join(t.TempDir(), "registry.sqlite")}

	require.NoError(t, Migrate(context.Background(), cfg))
	require.NoError(t, Migrate(context.Background(), cfg))
	require.NoError(t, Migrate(context.Background(), Config{DBDriver: DriverMemory}))
}

func TestNewRecordServiceMemory(t *testing.T) {
	records, closer, err := NewRecordService(context.Background(), Config{DBDriver: DriverMemory})
	require.NoError(t, err)
	defer closer.Close()

	err = records.Validate(context.Background(), domain.NewRecord(domain.KindOwner, domain.Fields{
		"uid": "1234567890", "fio": "Ivanov I.I.", "ph_numb": "79001234567",
	}), domain.ModeInsert)
	assert.NoError(t, err)
}

func TestNewPublisherAddsWebhookWhenConfigured(t *testing.T) {
	_, ok := newPublisher(Config{}).(*events.LogPublisher)
	assert.True(t, ok)

	fan, ok := newPublisher(Config{WebhookURL: "http://localhost:9"}).(events.Fanout)
	require.True(t, ok)
	assert.Len(t, fan, 2)
}
