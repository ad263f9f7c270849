package groups

import (
	"crypto/rand"
	"math/big"
)

const (
	joinCodeLength   = 4
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// CodeProvider issues short join codes for new groups.
type CodeProvider interface {
	NewJoinCode() (string, error)
}

type randomCodeProvider struct{}

// NewRandomCodeProvider returns a CodeProvider backed by crypto/rand. The
// alphabet skips 0/O and 1/I to keep codes readable when shared aloud.
func NewRandomCodeProvider() CodeProvider {
	return &randomCodeProvider{}
}

func (p *randomCodeProvider) NewJoinCode() (string, error) {
	code := make([]byte, joinCodeLength)
	alphabetSize := big.NewInt(int64(len(joinCodeAlphabet)))
	for i := range code {
		index, err := rand.Int(rand.Reader, alphabetSize)
		if err != nil {
			return "", err
		}
		code[i] = joinCodeAlphabet[index.Int64()]
	}
	return string(code), nil
}
