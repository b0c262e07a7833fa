package app

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePinService mimics the NFT.Storage upload endpoint: it derives the cid
// from the file content, so identical bytes produce identical cids.
func fakePinService(t *testing.T, status int, requests *[]receivedPin) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		content, err := io.ReadAll(file)
		require.NoError(t, err)
		*requests = append(*requests, receivedPin{
			auth:        auth,
			filename:    header.Filename,
			contentType: header.Header.Get("Content-Type"),
			content:     content,
		})
		if status != http.StatusOK {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"ok":false,"error":{"message":"maintenance"}}`)
			return
		}
		cid := fmt.Sprintf("bafy%x", sha256.Sum256(content))[:36]
		fmt.Fprintf(w, `{"ok":true,"value":{"cid":"%s"}}`, cid)
	}))
}

type receivedPin struct {
	auth        string
	filename    string
	contentType string
	content     []byte
}

func TestPinFile(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		var requests []receivedPin
		service := fakePinService(t, http.StatusOK, &requests)
		defer service.Close()

		client := NewPinClient(service.URL, "pin-secret", time.Second)
		cid, err := client.PinFile(context.Background(), "cat.png", "image/png", bytes.NewReader([]byte("png-bytes")))
		require.NoError(t, err)
		assert.NotEmpty(t, cid)

		require.Len(t, requests, 1)
		assert.Equal(t, "Bearer pin-secret", requests[0].auth)
		assert.Equal(t, "cat.png", requests[0].filename)
		assert.Equal(t, "image/png", requests[0].contentType)
		assert.Equal(t, []byte("png-bytes"), requests[0].content)
	})

	t.Run("IdenticalContentIdenticalCid", func(t *testing.T) {
		var requests []receivedPin
		service := fakePinService(t, http.StatusOK, &requests)
		defer service.Close()

		client := NewPinClient(service.URL, "pin-secret", time.Second)
		first, err := client.PinFile(context.Background(), "a.png", "image/png", bytes.NewReader([]byte("same")))
		require.NoError(t, err)
		second, err := client.PinFile(context.Background(), "b.png", "image/png", bytes.NewReader([]byte("same")))
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("UpstreamError", func(t *testing.T) {
		var requests []receivedPin
		service := fakePinService(t, http.StatusServiceUnavailable, &requests)
		defer service.Close()

		client := NewPinClient(service.URL, "pin-secret", time.Second)
		_, err := client.PinFile(context.Background(), "cat.png", "image/png", bytes.NewReader([]byte("png-bytes")))
		assert.ErrorContains(t, err, "503")
	})

	t.Run("NoCidInResponse", func(t *testing.T) {
		service := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"ok":true,"value":{}}`)
		}))
		defer service.Close()

		client := NewPinClient(service.URL, "pin-secret", time.Second)
		_, err := client.PinFile(context.Background(), "cat.png", "image/png", bytes.NewReader([]byte("png-bytes")))
		assert.ErrorContains(t, err, "no cid")
	})
}

func TestPinJSON(t *testing.T) {
	var requests []receivedPin
	service := fakePinService(t, http.StatusOK, &requests)
	defer service.Close()

	metadata := NewMetadata("Whiskers", "", "cat.png", "ipfs://bafyasset")
	client := NewPinClient(service.URL, "pin-secret", time.Second)
	cid, err := client.PinJSON(context.Background(), "metadata.json", metadata)
	require.NoError(t, err)
	assert.NotEmpty(t, cid)

	require.Len(t, requests, 1)
	assert.Equal(t, "metadata.json", requests[0].filename)
	assert.Equal(t, "application/json", requests[0].contentType)

	var roundTripped Metadata
	require.NoError(t, json.Unmarshal(requests[0].content, &roundTripped))
	assert.Equal(t, metadata, roundTripped)
}
