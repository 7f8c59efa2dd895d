package testutil

import (
	"gridvault/internal/core"
	"gridvault/internal/encryption"
)

// NewTestEncryptor creates a new test encryptor for testing.
func NewTestEncryptor() core.Encryptor {
	return encryption.NewTestEncryptor()
}
