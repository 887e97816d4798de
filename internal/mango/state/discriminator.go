package state

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
)

// Sighash derives an 8-byte anchor discriminator. Accounts use the
// "account" namespace with the struct name, instructions use "global"
// with the snake_case method name.
func Sighash(namespace, name string) []byte {
	h := sha256.Sum256([]byte(namespace + ":" + name))
	return h[0:8]
}

// Account discriminators of the mango-v4 program.
var (
	GroupDiscriminator        = Sighash("account", "Group")
	BankDiscriminator         = Sighash("account", "Bank")
	MintInfoDiscriminator     = Sighash("account", "MintInfo")
	Serum3MarketDiscriminator = Sighash("account", "Serum3Market")
	MangoAccountDiscriminator = Sighash("account", "MangoAccount")
)

var (
	ErrBadDiscriminator = errors.New("account discriminator mismatch")
	ErrShortAccountData = errors.New("account data too short")
)

// checkDiscriminator validates the 8-byte prefix and returns the payload
// that follows it.
func checkDiscriminator(data, want []byte) ([]byte, error) {
	if len(data) < 8 {
		return nil, fmt.Errorf("%w: %d bytes", ErrShortAccountData, len(data))
	}
	if !bytes.Equal(data[:8], want) {
		return nil, ErrBadDiscriminator
	}
	return data[8:], nil
}
