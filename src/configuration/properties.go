package configuration

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

type (
	Properties struct {
		LogLevel string `env:"LOG_LEVEL" envDefault:"DEBUG"`

		Auth   AuthProperties       `envPrefix:"AUTH_"`
		Chain  ChainProperties      `envPrefix:"CHAIN_"`
		Client ClientProperties     `envPrefix:"CLIENT_"`
		Pin    PinProperties        `envPrefix:"PIN_"`
		S3     S3Properties         `envPrefix:"S3_"`
		Server HttpServerProperties `envPrefix:"HTTP_"`
	}

	HttpServerProperties struct {
		Name        string        `env:"NAME" envDefault:"vibemint"`
		Port        string        `env:"PORT" envDefault:"8088"`
		ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	}

	// PinProperties configures the upstream pinning service. Key is the only
	// secret and never leaves the server side.
	PinProperties struct {
		Endpoint    string        `env:"ENDPOINT" envDefault:"https://api.nft.storage/upload"`
		Key         string        `env:"KEY"`
		Gateway     string        `env:"GATEWAY" envDefault:"https://ipfs.io/ipfs/"`
		MaxFileSize int64         `env:"MAX_FILE_SIZE" envDefault:"10485760"`
		ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"60s"`
	}

	ChainProperties struct {
		RPCURL          string        `env:"RPC_URL" envDefault:"https://sepolia.base.org"`
		ID              int64         `env:"ID" envDefault:"84532"`
		ContractAddress string        `env:"CONTRACT_ADDRESS"`
		PrivateKey      string        `env:"PRIVATE_KEY"`
		ConfirmTimeout  time.Duration `env:"CONFIRM_TIMEOUT" envDefault:"120s"`
	}

	// ClientProperties is used by the mint subcommand to reach the serve binary.
	ClientProperties struct {
		UploaderURL string        `env:"UPLOADER_URL" envDefault:"http://localhost:8088/upload"`
		ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"120s"`
	}

	S3Properties struct {
		Host        string        `env:"HOST"`
		AccessKey   string        `env:"ACCESS_KEY"`
		SecretKey   string        `env:"SECRET_KEY"`
		Bucket      string        `env:"BUCKET" envDefault:"vibemint"`
		UseSSL      bool          `env:"USE_SSL" envDefault:"true"`
		ReadTimeout time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	}

	AuthProperties struct {
		Issuer   string `env:"ISSUER"`
		ClientID string `env:"CLIENT_ID"`
	}
)

func ReadProperties() *Properties {
	config := &Properties{}

	if err := env.Parse(config); err != nil {
		panic(fmt.Errorf("read config error: %w", err))
	}
	return config
}

// ArchiveEnabled reports whether the optional S3 mirror is configured.
func (p *Properties) ArchiveEnabled() bool {
	return p.S3.Host != "" && p.S3.AccessKey != ""
}
