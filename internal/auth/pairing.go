package auth

import (
	"crypto/rand"
	"math/big"
)

// pairingAlphabet omits visually ambiguous characters: no 0/O/1/I.
const pairingAlphabet = "23456789ABCDEFGHJKLMNPQRSTUVWXYZ"

const pairingCodeLength = 8

// GeneratePairingCode draws a random 8-character code from the
// unambiguous alphabet. Callers retry on a storage-layer collision; this
// function itself never fails except on an exhausted entropy source.
func GeneratePairingCode() (string, error) {
	out := make([]byte, pairingCodeLength)
	max := big.NewInt(int64(len(pairingAlphabet)))
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = pairingAlphabet[n.Int64()]
	}
	return string(out), nil
}
