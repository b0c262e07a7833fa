package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	app "vibemint/src/app"
)

// Client is the HTTP uploader used by the pipeline to reach the serve
// binary's /upload endpoint.
type Client struct {
	url    string
	client *http.Client
}

type uploadResponse struct {
	TokenURI string       `json:"tokenURI"`
	ImageURL string       `json:"imageUrl"`
	Metadata app.Metadata `json:"metadata"`
	Error    string       `json:"error"`
}

func NewClient(url string, timeout time.Duration) *Client {
	tr := &http.Transport{
		MaxIdleConns:       10,
		IdleConnTimeout:    600 * time.Second,
		DisableCompression: true,
	}
	return &Client{
		url:    url,
		client: &http.Client{Transport: tr, Timeout: timeout},
	}
}

// Upload posts the asset and display fields as one multipart request and
// decodes the token locator response.
func (c *Client) Upload(ctx context.Context, asset Asset, name, description string) (*UploadResult, error) {
	bodyReader := new(bytes.Buffer)
	writer := multipart.NewWriter(bodyReader)
	for field, value := range map[string]string{"name": name, "description": description} {
		fw, err := writer.CreateFormField(field)
		if err != nil {
			return nil, fmt.Errorf("can not prepare upload body: %w", err)
		}
		if _, err := io.Copy(fw, strings.NewReader(value)); err != nil {
			return nil, fmt.Errorf("can not prepare upload body: %w", err)
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, asset.Filename))
	header.Set("Content-Type", asset.ContentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("can not prepare upload body: %w", err)
	}
	if _, err := part.Write(asset.Content); err != nil {
		return nil, fmt.Errorf("can not prepare upload body: %w", err)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("can not prepare upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("can not reach upload service: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("can not read upload response: %w", err)
	}
	var parsed uploadResponse
	if err := json.Unmarshal(respBytes, &parsed); err != nil {
		return nil, fmt.Errorf("can not parse upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != "" {
			return nil, fmt.Errorf("upload service: %s", parsed.Error)
		}
		return nil, fmt.Errorf("upload service returned status %d", resp.StatusCode)
	}
	if parsed.TokenURI == "" {
		return nil, fmt.Errorf("upload response carries no token locator")
	}
	return &UploadResult{
		TokenURI: parsed.TokenURI,
		ImageURL: parsed.ImageURL,
		Metadata: parsed.Metadata,
	}, nil
}
