package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendText(t *testing.T) {
	var gotReq sendTextRequest
	var gotPath, gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"messages":[{"id":"wamid.123"}]}`))
	}))
	defer ts.Close()

	client := NewClient("token-abc", "phone-1", WithBaseURL(ts.URL))
	err := client.SendText(context.Background(), "919876543210", "hello")

	require.NoError(t, err)
	assert.Equal(t, "/phone-1/messages", gotPath)
	assert.Equal(t, "Bearer token-abc", gotAuth)
	assert.Equal(t, "whatsapp", gotReq.MessagingProduct)
	assert.Equal(t, "919876543210", gotReq.To)
	assert.Equal(t, "text", gotReq.Type)
	assert.Equal(t, "hello", gotReq.Text.Body)
}

func TestSendText_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"invalid recipient"}}`))
	}))
	defer ts.Close()

	client := NewClient("t", "p", WithBaseURL(ts.URL))
	err := client.SendText(context.Background(), "bad", "hello")

	var dErr *DeliveryError
	require.ErrorAs(t, err, &dErr)
	assert.Contains(t, err.Error(), "invalid recipient")
}

func TestMediaURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/media-55", r.URL.Path)
		json.NewEncoder(w).Encode(mediaResponse{URL: "https://lookaside.example/media-55", MimeType: "image/jpeg"})
	}))
	defer ts.Close()

	client := NewClient("t", "p", WithBaseURL(ts.URL))
	url, err := client.MediaURL(context.Background(), "media-55")

	require.NoError(t, err)
	assert.Equal(t, "https://lookaside.example/media-55", url)
}

func TestMediaURL_MissingURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	client := NewClient("t", "p", WithBaseURL(ts.URL))
	_, err := client.MediaURL(context.Background(), "media-55")

	assert.Error(t, err)
}

func TestDownloadMedia(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write(payload)
	}))
	defer ts.Close()

	client := NewClient("t", "p")
	data, mimeType, err := client.DownloadMedia(context.Background(), ts.URL)

	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "image/jpeg", mimeType)
}

func TestDownloadMedia_ErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	client := NewClient("t", "p")
	_, _, err := client.DownloadMedia(context.Background(), ts.URL)

	assert.Error(t, err)
}
