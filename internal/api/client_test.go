package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, zerolog.Nop()), server
}

func TestBearerHeaderAttachedWhenTokenPresent(t *testing.T) {
	var gotAuth string
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`[]`))
	})
	defer server.Close()

	client.SetToken("tok-123")
	_, err := client.ListBuses(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", gotAuth)

	client.SetToken("")
	_, err = client.ListBuses(context.Background())
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestEnvelopedResponseUnwrapped(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": [{"id": "b1", "bus_number": "42A"}]}`))
	})
	defer server.Close()

	buses, err := client.ListBuses(context.Background())
	require.NoError(t, err)
	require.Len(t, buses, 1)
	assert.Equal(t, "42A", buses[0].Number)
}

func TestBareResourceAccepted(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": "b1", "bus_number": "42A"}]`))
	})
	defer server.Close()

	buses, err := client.ListBuses(context.Background())
	require.NoError(t, err)
	require.Len(t, buses, 1)
}

func TestEnvelopeFailureSurfacesServerMessage(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "bus not found"}`))
	})
	defer server.Close()

	_, err := client.GetBooking(context.Background(), "x")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bus not found", apiErr.Message)
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantClass Class
		wantMsg   string
	}{
		{"unauthorized", 401, `{"error": "token expired"}`, ClassAuth, "token expired"},
		{"forbidden", 403, `{}`, ClassAuth, ""},
		{"rate limited", 429, `{}`, ClassExhausted, ""},
		{"server error", 500, `{"message": "db down"}`, ClassNetwork, "db down"},
		{"bad request", 400, `{"error": "seat taken"}`, ClassOther, "seat taken"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer server.Close()

			_, err := client.CurrentUser(context.Background())
			require.Error(t, err)

			var apiErr *Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantClass, apiErr.Class)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, apiErr.Message)
			}
		})
	}
}

func TestNotificationsBareArray(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/notifications/user/u1", r.URL.Path)
		w.Write([]byte(`[{"id": "n1", "is_read": false, "priority": "urgent"}]`))
	})
	defer server.Close()

	ns, err := client.ListNotifications(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, ns, 1)
	assert.Equal(t, "n1", ns[0].ID)
	assert.False(t, ns[0].Read)
}

func TestNotificationsWrappedObject(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"notifications": [{"id": "n1"}, {"id": "n2"}]}`))
	})
	defer server.Close()

	ns, err := client.ListNotifications(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, ns, 2)
}

func TestNotificationsEnvelopedAndWrapped(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": true, "data": {"notifications": [{"id": "n1"}]}}`))
	})
	defer server.Close()

	ns, err := client.ListNotifications(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, ns, 1)
}

func TestNotificationsMalformedShape(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected": 42}`))
	})
	defer server.Close()

	_, err := client.ListNotifications(context.Background(), "u1")
	require.Error(t, err)

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, ClassMalformed, apiErr.Class)
	assert.Equal(t, "object{unexpected}", apiErr.Shape)
}

func TestMalformedErrorsAreNotRetryable(t *testing.T) {
	assert.False(t, IsRetryable(&Error{Class: ClassMalformed}))
	assert.False(t, IsRetryable(&Error{Class: ClassExhausted}))
	assert.False(t, IsRetryable(&Error{Class: ClassAuth}))
	assert.True(t, IsRetryable(&Error{Class: ClassNetwork}))
	assert.True(t, IsRetryable(&Error{Class: ClassOther}))
}

func TestConnectionRefusedClassifiedAsExhaustion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	client := NewClient(server.URL, zerolog.Nop())
	server.Close()

	_, err := client.ListBuses(context.Background())
	require.Error(t, err)
	assert.Equal(t, ClassExhausted, ClassOf(err))
}

func TestDescribeShape(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"object", `{"b": 1, "a": 2}`, "object{a,b}"},
		{"array", `[1, 2, 3]`, "array[3]"},
		{"string", `"hello"`, "string"},
		{"bool", `true`, "bool"},
		{"null", `null`, "null"},
		{"number", `42`, "number"},
		{"empty", ``, "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeShape([]byte(tt.payload)))
		})
	}
}
