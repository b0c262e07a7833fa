package app

import (
	"fmt"
	"strings"
)

const (
	// IPFSScheme prefixes every content-addressed locator produced by the
	// pinning service.
	IPFSScheme = "ipfs://"

	DefaultGateway = "https://ipfs.io/ipfs/"

	DefaultDescription = "NFT created with Vibe NFT Minter"

	creatorTraitType  = "Created with"
	creatorTraitValue = "Vibe NFT Minter"
	networkTraitType  = "Network"
	networkTraitValue = "Base Sepolia"
)

type (
	// Attribute is one ordered trait entry of a metadata document.
	Attribute struct {
		TraitType string `json:"trait_type"`
		Value     string `json:"value"`
	}

	// Metadata is the JSON document pinned alongside every asset and resolved
	// again by the gallery. The shape is fixed; consumers reject documents
	// that do not carry the required fields.
	Metadata struct {
		Name        string      `json:"name"`
		Description string      `json:"description"`
		Image       string      `json:"image"`
		Attributes  []Attribute `json:"attributes"`
	}
)

// NewMetadata composes the document for a freshly pinned asset. Empty name
// falls back to the filename stem, empty description to the fixed placeholder.
func NewMetadata(name, description, filename, imageLocator string) Metadata {
	if name == "" {
		name = FilenameStem(filename)
	}
	if description == "" {
		description = DefaultDescription
	}
	return Metadata{
		Name:        name,
		Description: description,
		Image:       imageLocator,
		Attributes: []Attribute{
			{TraitType: creatorTraitType, Value: creatorTraitValue},
			{TraitType: networkTraitType, Value: networkTraitValue},
		},
	}
}

// Validate checks the fixed shape on the consumption side.
func (m *Metadata) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("metadata has no name")
	}
	if m.Image == "" {
		return fmt.Errorf("metadata has no image locator")
	}
	return nil
}

// Locator renders a CID as an ipfs:// locator string.
func Locator(cid string) string {
	return IPFSScheme + cid
}

// ToGatewayURL translates an ipfs:// locator to the single fetchable HTTP URL
// behind the given gateway prefix. Non-ipfs locators pass through unchanged.
func ToGatewayURL(gateway, locator string) string {
	if gateway == "" {
		gateway = DefaultGateway
	}
	if !strings.HasPrefix(locator, IPFSScheme) {
		return locator
	}
	return gateway + strings.TrimPrefix(locator, IPFSScheme)
}

// FilenameStem returns the part of a filename before its first dot.
func FilenameStem(filename string) string {
	return strings.SplitN(filename, ".", 2)[0]
}

// MaxAssetSize is the upload size ceiling, mirrored by client and server.
const MaxAssetSize int64 = 10 * 1024 * 1024

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AllowedImageType reports whether a declared MIME type may be minted.
func AllowedImageType(contentType string) bool {
	return allowedImageTypes[contentType]
}
