package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pact-foundation/pact-go/pkg/pact"
)

func TestStateHandlerFunc2ReceivesStateActionAndParams(t *testing.T) {
	var gotState string
	var gotAction StateAction
	var gotParams map[string]any

	h := StateHandlerFunc2(func(ctx context.Context, state string, action StateAction, params map[string]any) error {
		gotState, gotAction, gotParams = state, action, params
		return nil
	})

	err := h.Invoke(context.Background(), http.DefaultClient, "user exists", ActionSetup, map[string]any{"id": 42})
	require.NoError(t, err)
	assert.Equal(t, "user exists", gotState)
	assert.Equal(t, ActionSetup, gotAction)
	assert.Equal(t, map[string]any{"id": 42}, gotParams)
}

func TestStateHandlerFunc0ErrorWrappedAsHandlerError(t *testing.T) {
	h := StateHandlerFunc0(func(ctx context.Context, params map[string]any) error {
		return assert.AnError
	})
	err := h.Invoke(context.Background(), http.DefaultClient, "broken state", ActionSetup, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken state")
}

func TestStateHandlerURLPostsJSONBody(t *testing.T) {
	var gotBody stateRequestBody
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := StateHandlerURL(srv.URL, true)
	err := h.Invoke(context.Background(), srv.Client(), "user exists", ActionSetup, map[string]any{"id": float64(1)})
	require.NoError(t, err)
	assert.Equal(t, "user exists", gotBody.State)
	assert.Equal(t, ActionSetup, gotBody.Action)
}

func TestStateHandlerURLGetUsesQueryParams(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		gotQuery = map[string][]string(r.URL.Query())
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := StateHandlerURL(srv.URL, false)
	err := h.Invoke(context.Background(), srv.Client(), "user exists", ActionTeardown, map[string]any{"id": "7"})
	require.NoError(t, err)
	assert.Equal(t, []string{"user exists"}, gotQuery["state"])
	assert.Equal(t, []string{"teardown"}, gotQuery["action"])
	assert.Equal(t, []string{"7"}, gotQuery["id"])
}

func TestMessageHandlerFuncProducesContents(t *testing.T) {
	h := MessageHandlerFunc(func(ctx context.Context, description string, metadata map[string]any) (*pact.MessageContents, error) {
		return &pact.MessageContents{Contents: []byte(`{"ok":true}`), ContentType: "application/json"}, nil
	})
	contents, err := h.Produce(context.Background(), http.DefaultClient, "order created", nil)
	require.NoError(t, err)
	assert.Equal(t, "application/json", contents.ContentType)
	assert.JSONEq(t, `{"ok":true}`, string(contents.Contents))
}

func TestMessageHandlerURLParsesMetadataHeader(t *testing.T) {
	metaJSON, err := json.Marshal(map[string]any{"eventId": "abc123"})
	require.NoError(t, err)
	encodedMeta := base64.StdEncoding.EncodeToString(metaJSON)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body messageRequestBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "order created", body.Description)
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Pact-Message-Metadata", encodedMeta)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"orderId":42}`))
	}))
	defer srv.Close()

	h := MessageHandlerURL(srv.URL)
	contents, err := h.Produce(context.Background(), srv.Client(), "order created", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "application/json", contents.ContentType)
	assert.JSONEq(t, `{"orderId":42}`, string(contents.Contents))
	assert.Equal(t, "abc123", contents.Metadata["eventId"])
}
