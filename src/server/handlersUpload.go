package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	app "vibemint/src/app"
	cfg "vibemint/src/configuration"
	db "vibemint/src/repository"
)

type (
	// Archiver mirrors pinned content into secondary storage. Optional; a nil
	// Archiver disables mirroring and the listing endpoint.
	Archiver interface {
		ArchiveAsset(ctx context.Context, cid, contentType string, content io.Reader, size int64) error
		ArchiveMetadata(ctx context.Context, cid string, serialized []byte) error
		ListArchived(prefix string) ([]*url.URL, error)
	}

	// UploadHandler implements the pin-and-compose endpoint: validate the
	// file, pin it, compose the metadata document, pin that too.
	UploadHandler struct {
		pinner      app.Pinner
		archive     Archiver
		ledger      db.PinLedger
		hasKey      bool
		maxFileSize int64
	}

	UploadResponse struct {
		TokenURI string       `json:"tokenURI"`
		ImageURL string       `json:"imageUrl"`
		Metadata app.Metadata `json:"metadata"`
	}
)

const (
	uploadFileField = "file"

	archiveKindParam      = "kind"
	archiveAssetPrefix    = "asset/"
	archiveMetadataPrefix = "metadata/"

	errNoFile      = "No file provided"
	errBadType     = "Invalid file type. Only JPEG, PNG, GIF, and WebP are allowed."
	errTooLarge    = "File too large. Maximum size is 10MB."
	errNoKey       = "NFT Storage API key not configured"
	errImagePin    = "Failed to upload image to IPFS"
	errMetadataPin = "Failed to upload metadata to IPFS"
)

func NewUploadHandler(config *cfg.Properties, pinner app.Pinner, archive Archiver, ledger db.PinLedger) *UploadHandler {
	return &UploadHandler{
		pinner:      pinner,
		archive:     archive,
		ledger:      ledger,
		hasKey:      config.Pin.Key != "",
		maxFileSize: config.Pin.MaxFileSize,
	}
}

func (u *UploadHandler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "success"})
}

// PostUpload handles one mint-preparation request. Validation happens in full
// before the first outbound call; the metadata pin never runs unless the
// asset pin succeeded.
func (u *UploadHandler) PostUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile(uploadFileField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errNoFile})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !app.AllowedImageType(contentType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadType})
		return
	}
	if header.Size > u.maxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": errTooLarge})
		return
	}
	if !u.hasKey {
		c.JSON(http.StatusInternalServerError, gin.H{"error": errNoKey})
		return
	}

	// Read the file into a buffer
	var buffer bytes.Buffer
	if _, err := io.Copy(&buffer, file); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read file"})
		return
	}
	if int64(buffer.Len()) > u.maxFileSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": errTooLarge})
		return
	}

	ctx := c.Request.Context()
	assetCid, err := u.pinner.PinFile(ctx, header.Filename, contentType, bytes.NewReader(buffer.Bytes()))
	if err != nil {
		log.Printf("asset pin failed for %s: %v", header.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errImagePin})
		return
	}
	imageURL := app.Locator(assetCid)

	metadata := app.NewMetadata(c.PostForm("name"), c.PostForm("description"), header.Filename, imageURL)
	metadataCid, err := u.pinner.PinJSON(ctx, "metadata.json", metadata)
	if err != nil {
		// The asset pin stays in place: content-addressed, so an orphan is
		// harmless and a retry converges on the same cid.
		log.Printf("metadata pin failed for %s: %v", header.Filename, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errMetadataPin})
		return
	}
	tokenURI := app.Locator(metadataCid)

	u.mirror(ctx, assetCid, metadataCid, contentType, buffer.Bytes(), metadata)
	u.remember(tokenURI, imageURL, metadata.Name, header.Size)

	c.JSON(http.StatusOK, UploadResponse{
		TokenURI: tokenURI,
		ImageURL: imageURL,
		Metadata: metadata,
	})
}

// GetUploads lists the most recent successful uploads recorded by this
// instance.
func (u *UploadHandler) GetUploads(c *gin.Context) {
	limit := 20
	if raw, ok := c.GetQuery("limit"); ok {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "error", "error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if u.ledger == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "payload": []db.PinRecord{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "payload": u.ledger.Recent(limit)})
}

// GetArchive lists presigned download URLs for archived pins. kind selects
// the asset copies (default) or the metadata copies.
func (u *UploadHandler) GetArchive(c *gin.Context) {
	if u.archive == nil {
		c.IndentedJSON(http.StatusServiceUnavailable, gin.H{"message": "error", "error": "archive storage is not configured"})
		return
	}
	prefix := archiveAssetPrefix
	if kind, ok := c.GetQuery(archiveKindParam); ok {
		switch kind {
		case "asset":
			prefix = archiveAssetPrefix
		case "metadata":
			prefix = archiveMetadataPrefix
		default:
			c.IndentedJSON(http.StatusBadRequest, gin.H{"message": "error", "error": "kind must be asset or metadata"})
			return
		}
	}
	result := []string{}
	links, err := u.archive.ListArchived(prefix)
	if err != nil {
		c.IndentedJSON(http.StatusInternalServerError,
			gin.H{"message": "error", "error": fmt.Errorf("can not list archived pins: %w", err).Error()})
		return
	}
	for _, link := range links {
		result = append(result, link.String())
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "payload": result})
}

// mirror writes best-effort archive copies. Failures are logged and never
// surface to the caller.
func (u *UploadHandler) mirror(ctx context.Context, assetCid, metadataCid, contentType string, asset []byte, metadata app.Metadata) {
	if u.archive == nil {
		return
	}
	if err := u.archive.ArchiveAsset(ctx, assetCid, contentType, bytes.NewReader(asset), int64(len(asset))); err != nil {
		log.Printf("can not archive asset %s: %v", assetCid, err)
	}
	serialized, err := json.Marshal(metadata)
	if err != nil {
		log.Printf("can not marshall metadata for archive: %v", err)
		return
	}
	if err := u.archive.ArchiveMetadata(ctx, metadataCid, serialized); err != nil {
		log.Printf("can not archive metadata %s: %v", metadataCid, err)
	}
}

func (u *UploadHandler) remember(tokenURI, imageURL, name string, size int64) {
	if u.ledger == nil {
		return
	}
	if err := u.ledger.Record(db.PinRecord{
		TokenURI: tokenURI,
		ImageURL: imageURL,
		Name:     name,
		Size:     size,
		PinnedAt: time.Now(),
	}); err != nil {
		log.Printf("can not record pin %s: %v", tokenURI, err)
	}
}
