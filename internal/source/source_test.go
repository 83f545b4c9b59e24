package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSendsDateAndToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-06-10", r.URL.Query().Get("data"))
		assert.Equal(t, "Bearer s3cret", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Timeout: time.Second, Token: "s3cret"}, nil)
	body, err := client.Fetch(context.Background(), Endpoint{URL: srv.URL + "/viagens"}, "2025-06-10")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[]}`, string(body))
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Timeout: time.Second, RetryMax: 2}, nil)
	client.http.RetryWaitMin = time.Millisecond
	client.http.RetryWaitMax = time.Millisecond

	_, err := client.Fetch(context.Background(), Endpoint{URL: srv.URL}, "2025-06-10")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetchRejectsNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{Timeout: time.Second}, nil)
	_, err := client.Fetch(context.Background(), Endpoint{URL: srv.URL}, "2025-06-10")
	assert.Error(t, err)

	_, err = client.Fetch(context.Background(), Endpoint{}, "2025-06-10")
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestTransdataRecordsMapsAliases(t *testing.T) {
	body := []byte(`{"resultado":{"viagens":[
		{"id": 991, "linha": "101", "servico": 12, "sentido": true, "inicioPrevisto": "08:00", "motorista": "Ana"},
		{"idViagem": "992", "codigoLinha": "101", "Servico": "013", "sentido": "V", "horarioPrevistoInicio": "2025-06-10 09:00:00", "veiculo": 4410}
	]}}`)

	rows, err := TransdataRecords(body, "resultado.viagens")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "991", string(rows[0].SourceID))
	assert.Equal(t, "12", string(rows[0].ServiceNumber))
	assert.Equal(t, "true", string(rows[0].Direction))
	assert.Equal(t, "Ana", rows[0].DriverName)
	assert.Equal(t, "992", string(rows[1].SourceID))
	assert.Equal(t, "013", string(rows[1].ServiceNumber))
	assert.Equal(t, "2025-06-10 09:00:00", rows[1].ScheduledStart)
	assert.Equal(t, "4410", string(rows[1].VehiclePrefix))
}

func TestGlobusRecordsTopLevelArray(t *testing.T) {
	rows, err := GlobusRecords([]byte(`[{"id":"7","linha":"202","setor":"TERMINAL NORTE","sentido":"IDA"}]`), "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "TERMINAL NORTE", rows[0].Sector)
	assert.Equal(t, "IDA", string(rows[0].Direction))

	_, err = GlobusRecords([]byte(`{"data":{}}`), "data")
	assert.True(t, errors.Is(err, ErrInvalidPayload))
	_, err = GlobusRecords([]byte(`not json`), "")
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}
