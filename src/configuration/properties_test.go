package configuration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReadPropertiesDefaults(t *testing.T) {
	config := ReadProperties()

	assert.Equal(t, "8088", config.Server.Port)
	assert.Equal(t, "https://api.nft.storage/upload", config.Pin.Endpoint)
	assert.Equal(t, "https://ipfs.io/ipfs/", config.Pin.Gateway)
	assert.Equal(t, int64(10485760), config.Pin.MaxFileSize)
	assert.Equal(t, "https://sepolia.base.org", config.Chain.RPCURL)
	assert.Equal(t, int64(84532), config.Chain.ID)
	assert.Equal(t, 120*time.Second, config.Chain.ConfirmTimeout)
	assert.Equal(t, "http://localhost:8088/upload", config.Client.UploaderURL)
	assert.False(t, config.ArchiveEnabled())
}

func TestReadPropertiesFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("PIN_KEY", "secret")
	t.Setenv("PIN_MAX_FILE_SIZE", "1024")
	t.Setenv("CHAIN_ID", "1")
	t.Setenv("S3_HOST", "minio.local:9000")
	t.Setenv("S3_ACCESS_KEY", "minio")

	config := ReadProperties()

	assert.Equal(t, "9000", config.Server.Port)
	assert.Equal(t, "secret", config.Pin.Key)
	assert.Equal(t, int64(1024), config.Pin.MaxFileSize)
	assert.Equal(t, int64(1), config.Chain.ID)
	assert.True(t, config.ArchiveEnabled())
}
