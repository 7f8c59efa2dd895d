package core

import "io"

// Vault stores version file blobs, content-addressed by SHA-256 checksum.
// All operations stream through io.Reader/io.Writer so large workbooks are
// never loaded twice.
type Vault interface {
	// PutContent stores content identified by its checksum.
	// Idempotent: storing the same checksum multiple times is safe.
	// size is the number of bytes that will be read from r.
	PutContent(checksum string, r io.Reader, size int64) error

	// GetContent retrieves content by checksum and writes it to w.
	GetContent(checksum string, w io.Writer) error

	// ValidateSetup verifies that the vault is accessible and properly
	// configured.
	ValidateSetup() error
}

// Encryptor encrypts version file blobs at rest. Setup generates key
// material protected by the passphrase; Unlock returns a context able to
// decrypt previously stored blobs.
type Encryptor interface {
	Setup(passphrase string) error
	Encrypt(r io.Reader, w io.Writer) error
	Unlock(passphrase string) (DecryptionContext, error)
	IsConfigured() bool
}

// DecryptionContext holds unlocked key material for decrypting blobs.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
