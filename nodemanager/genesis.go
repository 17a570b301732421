package nodemanager

import (
	"bytes"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// GenesisVerifier decides whether a probed node serves the expected chain.
// trusted is true for internal build flavors.
type GenesisVerifier func(expected, actual string, trusted bool) bool

// VerifyGenesis accepts any hash in a trusted environment. Otherwise hashes
// are compared as bytes, or as case-insensitive strings when either one is
// not valid hex.
func VerifyGenesis(expected, actual string, trusted bool) bool {
	if trusted {
		return true
	}
	if actual == "" {
		return false
	}

	expectedBytes, errExpected := hexutil.Decode(expected)
	actualBytes, errActual := hexutil.Decode(actual)
	if errExpected == nil && errActual == nil {
		return bytes.Equal(expectedBytes, actualBytes)
	}
	return strings.EqualFold(expected, actual)
}
