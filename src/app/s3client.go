package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ClientMinio is the subset of the minio client the archive relies on.
type ClientMinio interface {
	ListObjects(ctx context.Context, bucketName string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	PresignedGetObject(ctx context.Context, bucketName, objectName string, expires time.Duration, reqParams url.Values) (*url.URL, error)
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (info minio.UploadInfo, err error)
}

// ArchiveClient mirrors pinned content into an S3 bucket so an origin copy
// exists outside the pinning network. Every write is keyed by CID, which makes
// repeated archives of identical content overwrite in place.
type ArchiveClient struct {
	endpoint   string
	bucketName string
	client     ClientMinio
}

const (
	assetPrefix    = "asset/"
	metadataPrefix = "metadata/"
)

// NewArchiveClient creates a new ArchiveClient instance.
func NewArchiveClient(endpoint, accessKeyID, secretAccessKey, bucketName string, useSSL bool) (*ArchiveClient, error) {
	minioClient, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKeyID, secretAccessKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		log.Printf("can not create minio client %v for endpoint %s", err, endpoint)
		return nil, fmt.Errorf("failed to create archive client: %w", err)
	}

	return &ArchiveClient{
		endpoint:   endpoint,
		bucketName: bucketName,
		client:     minioClient,
	}, nil
}

// ArchiveAsset stores the raw asset bytes under asset/<cid>.
func (a *ArchiveClient) ArchiveAsset(ctx context.Context, cid, contentType string, content io.Reader, size int64) error {
	_, err := a.client.PutObject(ctx,
		a.bucketName,
		assetPrefix+cid,
		content,
		size,
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("can not archive asset %s: %w", cid, err)
	}
	return nil
}

// ArchiveMetadata stores the serialized metadata document under metadata/<cid>.
func (a *ArchiveClient) ArchiveMetadata(ctx context.Context, cid string, serialized []byte) error {
	_, err := a.client.PutObject(ctx,
		a.bucketName,
		metadataPrefix+cid,
		bytes.NewReader(serialized),
		int64(len(serialized)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("can not archive metadata %s: %w", cid, err)
	}
	return nil
}

// ListArchived returns presigned download URLs for archived objects under the
// given prefix ("asset/" or "metadata/").
func (a *ArchiveClient) ListArchived(prefix string) ([]*url.URL, error) {
	ctx, cancel := context.WithCancel(context.Background())
	result := make([]*url.URL, 0)
	defer cancel()

	objectCh := a.client.ListObjects(ctx, a.bucketName, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for object := range objectCh {
		if object.Err != nil {
			log.Printf("%v", object.Err)
			return result, object.Err
		}
		reqParams := make(url.Values)
		reqParams.Set("response-content-disposition",
			fmt.Sprintf("attachment; filename=\"%s\"", objectBase(object.Key)))
		presignedURL, err := a.client.PresignedGetObject(context.Background(),
			a.bucketName,
			object.Key,
			time.Second*24*60*60*7,
			reqParams)
		if err != nil {
			log.Printf("%v", err)
			return result, err
		}
		result = append(result, presignedURL)
	}
	return result, nil
}

func objectBase(key string) string {
	parsed := strings.Split(key, "/")
	return parsed[len(parsed)-1]
}
