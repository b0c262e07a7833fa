package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// Pinner submits content to the pinning network and returns its CID.
type Pinner interface {
	PinFile(ctx context.Context, filename, contentType string, content io.Reader) (string, error)
	PinJSON(ctx context.Context, filename string, payload any) (string, error)
}

// PinClient talks to an NFT.Storage compatible upload endpoint. One POST per
// pinned file, bearer-authenticated with the service key.
type PinClient struct {
	endpoint string
	key      string
	client   *http.Client
}

type pinResponse struct {
	Ok    bool `json:"ok"`
	Value struct {
		Cid string `json:"cid"`
	} `json:"value"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewPinClient(endpoint, key string, timeout time.Duration) *PinClient {
	tr := &http.Transport{
		MaxIdleConns:       10,
		IdleConnTimeout:    600 * time.Second,
		DisableCompression: true,
	}
	return &PinClient{
		endpoint: endpoint,
		key:      key,
		client:   &http.Client{Transport: tr, Timeout: timeout},
	}
}

// PinFile uploads one file and returns the CID assigned by the service.
func (p *PinClient) PinFile(ctx context.Context, filename, contentType string, content io.Reader) (string, error) {
	bodyReader := new(bytes.Buffer)
	writer := multipart.NewWriter(bodyReader)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("can not prepare upload body: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", fmt.Errorf("can not prepare upload body: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bodyReader)
	if err != nil {
		return "", fmt.Errorf("can not prepare upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", p.key))

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("can not reach pinning service: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("can not read pinning response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		log.Printf("pinning service returned %d: %s", resp.StatusCode, respBytes)
		return "", fmt.Errorf("pinning service returned status %d", resp.StatusCode)
	}

	var parsed pinResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return "", fmt.Errorf("can not parse pinning response: %w", err)
	}
	if parsed.Value.Cid == "" {
		return "", fmt.Errorf("pinning response carries no cid")
	}
	return parsed.Value.Cid, nil
}

// PinJSON serializes payload and pins it as an application/json file.
func (p *PinClient) PinJSON(ctx context.Context, filename string, payload any) (string, error) {
	serialized, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("can not marshall payload: %w", err)
	}
	return p.PinFile(ctx, filename, "application/json", bytes.NewReader(serialized))
}
