package server

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	app "vibemint/src/app"
	cfg "vibemint/src/configuration"
	db "vibemint/src/repository"
)

type fakePinner struct {
	fileCalls    int
	jsonCalls    int
	failFile     bool
	failJSON     bool
	lastFilename string
	lastPayload  any
}

func (f *fakePinner) PinFile(ctx context.Context, filename, contentType string, content io.Reader) (string, error) {
	f.fileCalls++
	f.lastFilename = filename
	if f.failFile {
		return "", fmt.Errorf("pinning service returned status 503")
	}
	raw, err := io.ReadAll(content)
	if err != nil {
		return "", err
	}
	return contentCid(raw), nil
}

func (f *fakePinner) PinJSON(ctx context.Context, filename string, payload any) (string, error) {
	f.jsonCalls++
	f.lastPayload = payload
	if f.failJSON {
		return "", fmt.Errorf("pinning service returned status 503")
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return contentCid(raw), nil
}

// contentCid derives a deterministic cid from content, like the real
// content-addressed service does.
func contentCid(content []byte) string {
	return fmt.Sprintf("bafy%x", sha256.Sum256(content))[:36]
}

type fakeArchiver struct {
	assetCids    []string
	metadataCids []string
	listed       []string
	listErr      error
}

func (f *fakeArchiver) ArchiveAsset(ctx context.Context, cid, contentType string, content io.Reader, size int64) error {
	f.assetCids = append(f.assetCids, cid)
	return nil
}

func (f *fakeArchiver) ArchiveMetadata(ctx context.Context, cid string, serialized []byte) error {
	f.metadataCids = append(f.metadataCids, cid)
	return nil
}

func (f *fakeArchiver) ListArchived(prefix string) ([]*url.URL, error) {
	f.listed = append(f.listed, prefix)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return []*url.URL{
		{Scheme: "https", Host: "example.com", Path: "/vibemint/" + prefix + "bafya"},
		{Scheme: "https", Host: "example.com", Path: "/vibemint/" + prefix + "bafyb"},
	}, nil
}

func testProperties(key string) *cfg.Properties {
	config := &cfg.Properties{}
	config.Pin.Key = key
	config.Pin.MaxFileSize = app.MaxAssetSize
	return config
}

func newTestRouter(handler *UploadHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/upload", handler.PostUpload)
	router.GET("/uploads", handler.GetUploads)
	router.GET("/archive", handler.GetArchive)
	return router
}

func multipartBody(t *testing.T, filename, contentType string, content []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)
	for field, value := range fields {
		require.NoError(t, writer.WriteField(field, value))
	}
	if filename != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
		header.Set("Content-Type", contentType)
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func postUpload(router *gin.Engine, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", contentType)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func errorBody(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var parsed map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &parsed))
	return parsed["error"]
}

func TestPostUploadValidation(t *testing.T) {
	t.Run("NoFile", func(t *testing.T) {
		pinner := &fakePinner{}
		router := newTestRouter(NewUploadHandler(testProperties("secret"), pinner, nil, nil))
		body, contentType := multipartBody(t, "", "", nil, map[string]string{"name": "cat"})
		recorder := postUpload(router, body, contentType)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "No file provided", errorBody(t, recorder))
		assert.Zero(t, pinner.fileCalls)
		assert.Zero(t, pinner.jsonCalls)
	})

	t.Run("UnsupportedType", func(t *testing.T) {
		pinner := &fakePinner{}
		router := newTestRouter(NewUploadHandler(testProperties("secret"), pinner, nil, nil))
		body, contentType := multipartBody(t, "notes.txt", "text/plain", []byte("hello"), nil)
		recorder := postUpload(router, body, contentType)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "Invalid file type. Only JPEG, PNG, GIF, and WebP are allowed.", errorBody(t, recorder))
		assert.Zero(t, pinner.fileCalls)
	})

	t.Run("TooLarge", func(t *testing.T) {
		pinner := &fakePinner{}
		config := testProperties("secret")
		config.Pin.MaxFileSize = 16
		router := newTestRouter(NewUploadHandler(config, pinner, nil, nil))
		body, contentType := multipartBody(t, "big.jpg", "image/jpeg", bytes.Repeat([]byte("x"), 64), nil)
		recorder := postUpload(router, body, contentType)
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Equal(t, "File too large. Maximum size is 10MB.", errorBody(t, recorder))
		assert.Zero(t, pinner.fileCalls)
	})

	t.Run("MissingKey", func(t *testing.T) {
		pinner := &fakePinner{}
		router := newTestRouter(NewUploadHandler(testProperties(""), pinner, nil, nil))
		body, contentType := multipartBody(t, "cat.png", "image/png", []byte("png-bytes"), nil)
		recorder := postUpload(router, body, contentType)
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.Equal(t, "NFT Storage API key not configured", errorBody(t, recorder))
		assert.Zero(t, pinner.fileCalls)
	})
}

func TestPostUploadUpstreamFailures(t *testing.T) {
	t.Run("AssetPinFails", func(t *testing.T) {
		pinner := &fakePinner{failFile: true}
		router := newTestRouter(NewUploadHandler(testProperties("secret"), pinner, nil, nil))
		body, contentType := multipartBody(t, "cat.png", "image/png", []byte("png-bytes"), nil)
		recorder := postUpload(router, body, contentType)
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.Equal(t, "Failed to upload image to IPFS", errorBody(t, recorder))
		assert.Equal(t, 1, pinner.fileCalls)
		assert.Zero(t, pinner.jsonCalls, "metadata must not be pinned without its asset")
	})

	t.Run("MetadataPinFails", func(t *testing.T) {
		pinner := &fakePinner{failJSON: true}
		router := newTestRouter(NewUploadHandler(testProperties("secret"), pinner, nil, nil))
		body, contentType := multipartBody(t, "cat.png", "image/png", []byte("png-bytes"), nil)
		recorder := postUpload(router, body, contentType)
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.Equal(t, "Failed to upload metadata to IPFS", errorBody(t, recorder))
		assert.Equal(t, 1, pinner.fileCalls)
		assert.Equal(t, 1, pinner.jsonCalls)
	})
}

func TestPostUploadSuccess(t *testing.T) {
	pinner := &fakePinner{}
	ledger, err := db.NewPinLedger(testProperties("secret"))
	require.NoError(t, err)
	require.True(t, ledger.Connect())
	router := newTestRouter(NewUploadHandler(testProperties("secret"), pinner, nil, ledger))

	body, contentType := multipartBody(t, "cat.png", "image/png", []byte("png-bytes"), map[string]string{"description": ""})
	recorder := postUpload(router, body, contentType)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))

	assert.Equal(t, 1, pinner.fileCalls)
	assert.Equal(t, 1, pinner.jsonCalls)
	assert.True(t, len(resp.TokenURI) > len(app.IPFSScheme))
	assert.Contains(t, resp.TokenURI, app.IPFSScheme)
	assert.Contains(t, resp.ImageURL, app.IPFSScheme)
	assert.Equal(t, resp.ImageURL, resp.Metadata.Image, "metadata image must equal the asset locator")
	assert.Equal(t, "cat", resp.Metadata.Name, "name defaults to the filename stem")
	assert.Equal(t, app.DefaultDescription, resp.Metadata.Description)
	require.Len(t, resp.Metadata.Attributes, 2)
	assert.Equal(t, "Created with", resp.Metadata.Attributes[0].TraitType)
	assert.Equal(t, "Network", resp.Metadata.Attributes[1].TraitType)

	t.Run("LedgerRecorded", func(t *testing.T) {
		records := ledger.Recent(10)
		require.Len(t, records, 1)
		assert.Equal(t, resp.TokenURI, records[0].TokenURI)
		assert.Equal(t, "cat", records[0].Name)
	})

	t.Run("UploadsEndpoint", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/uploads?limit=5", nil)
		listRecorder := httptest.NewRecorder()
		router.ServeHTTP(listRecorder, req)
		assert.Equal(t, http.StatusOK, listRecorder.Code)
		assert.Contains(t, listRecorder.Body.String(), resp.TokenURI)
	})
}

func TestPostUploadIdempotentLocators(t *testing.T) {
	pinner := &fakePinner{}
	router := newTestRouter(NewUploadHandler(testProperties("secret"), pinner, nil, nil))

	var locators []string
	for i := 0; i < 2; i++ {
		body, contentType := multipartBody(t, "cat.png", "image/png", []byte("identical-bytes"), nil)
		recorder := postUpload(router, body, contentType)
		require.Equal(t, http.StatusOK, recorder.Code)
		var resp UploadResponse
		require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
		locators = append(locators, resp.ImageURL)
	}
	assert.Equal(t, locators[0], locators[1], "identical content must yield identical asset locators")
}

func TestPostUploadNameProvided(t *testing.T) {
	pinner := &fakePinner{}
	router := newTestRouter(NewUploadHandler(testProperties("secret"), pinner, nil, nil))
	body, contentType := multipartBody(t, "cat.png", "image/png", []byte("png-bytes"),
		map[string]string{"name": "Whiskers", "description": "a cat"})
	recorder := postUpload(router, body, contentType)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	assert.Equal(t, "Whiskers", resp.Metadata.Name)
	assert.Equal(t, "a cat", resp.Metadata.Description)
}

func TestGetUploadsWithoutLedger(t *testing.T) {
	router := newTestRouter(NewUploadHandler(testProperties("secret"), &fakePinner{}, nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/uploads", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	require.Equal(t, http.StatusOK, recorder.Code)
	var parsed struct {
		Status  string         `json:"status"`
		Payload []db.PinRecord `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &parsed))
	assert.Equal(t, "success", parsed.Status)
	assert.Empty(t, parsed.Payload)
}

func TestPostUploadArchives(t *testing.T) {
	pinner := &fakePinner{}
	archive := &fakeArchiver{}
	router := newTestRouter(NewUploadHandler(testProperties("secret"), pinner, archive, nil))

	body, contentType := multipartBody(t, "cat.png", "image/png", []byte("png-bytes"), nil)
	recorder := postUpload(router, body, contentType)
	require.Equal(t, http.StatusOK, recorder.Code)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	require.Len(t, archive.assetCids, 1)
	require.Len(t, archive.metadataCids, 1)
	assert.Equal(t, "ipfs://"+archive.assetCids[0], resp.ImageURL)
	assert.Equal(t, "ipfs://"+archive.metadataCids[0], resp.TokenURI)
}

func TestGetArchive(t *testing.T) {
	getArchive := func(router *gin.Engine, query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/archive"+query, nil)
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, req)
		return recorder
	}

	t.Run("NotConfigured", func(t *testing.T) {
		router := newTestRouter(NewUploadHandler(testProperties("secret"), &fakePinner{}, nil, nil))
		recorder := getArchive(router, "")
		assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
		assert.Equal(t, "archive storage is not configured", errorBody(t, recorder))
	})

	t.Run("ListsAssetsByDefault", func(t *testing.T) {
		archive := &fakeArchiver{}
		router := newTestRouter(NewUploadHandler(testProperties("secret"), &fakePinner{}, archive, nil))
		recorder := getArchive(router, "")
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, []string{"asset/"}, archive.listed)
		assert.Contains(t, recorder.Body.String(), "https://example.com/vibemint/asset/bafya")
		assert.Contains(t, recorder.Body.String(), "https://example.com/vibemint/asset/bafyb")
	})

	t.Run("MetadataKind", func(t *testing.T) {
		archive := &fakeArchiver{}
		router := newTestRouter(NewUploadHandler(testProperties("secret"), &fakePinner{}, archive, nil))
		recorder := getArchive(router, "?kind=metadata")
		require.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, []string{"metadata/"}, archive.listed)
	})

	t.Run("BadKind", func(t *testing.T) {
		archive := &fakeArchiver{}
		router := newTestRouter(NewUploadHandler(testProperties("secret"), &fakePinner{}, archive, nil))
		recorder := getArchive(router, "?kind=everything")
		assert.Equal(t, http.StatusBadRequest, recorder.Code)
		assert.Empty(t, archive.listed)
	})

	t.Run("ListFailure", func(t *testing.T) {
		archive := &fakeArchiver{listErr: fmt.Errorf("bucket gone")}
		router := newTestRouter(NewUploadHandler(testProperties("secret"), &fakePinner{}, archive, nil))
		recorder := getArchive(router, "")
		assert.Equal(t, http.StatusInternalServerError, recorder.Code)
		assert.Contains(t, errorBody(t, recorder), "bucket gone")
	})
}
