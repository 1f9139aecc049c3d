package validation

import (
	"errors"
	"regexp"
)

const (
	// AddressPrefix is the fixed prefix of an EVM account address.
	AddressPrefix = "0x"
	// AddressHexLength is the number of hex digits after the prefix.
	AddressHexLength = 40
)

var (
	addressRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	txHashRegex  = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)
	urlRegex     = regexp.MustCompile(`^(https?|wss?)://[^\s/$.?#].[^\s]*$`)
)

var (
	ErrEmptyAddress   = errors.New("address cannot be empty")
	ErrAddressPrefix  = errors.New("address must start with 0x")
	ErrAddressLength  = errors.New("address must have 40 hex digits after 0x")
	ErrAddressCharset = errors.New("address contains non-hex characters")
)

// IsValidAddress reports whether text is exactly 0x followed by 40 hex
// digits. Case is not checked against the EIP-55 checksum and no
// surrounding whitespace is tolerated.
func IsValidAddress(text string) bool {
	return addressRegex.MatchString(text)
}

// ValidateAddress is IsValidAddress with a reason attached.
func ValidateAddress(text string) error {
	if IsValidAddress(text) {
		return nil
	}
	switch {
	case text == "":
		return ErrEmptyAddress
	case len(text) < len(AddressPrefix) || text[:len(AddressPrefix)] != AddressPrefix:
		return ErrAddressPrefix
	case len(text) != len(AddressPrefix)+AddressHexLength:
		return ErrAddressLength
	default:
		return ErrAddressCharset
	}
}

// ValidateTxHash validates transaction hash format
func ValidateTxHash(txHash string) error {
	if txHash == "" {
		return errors.New("transaction hash cannot be empty")
	}
	if !txHashRegex.MatchString(txHash) {
		return errors.New("invalid transaction hash")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(url string) error {
	if url == "" {
		return errors.New("URL cannot be empty")
	}

	if !urlRegex.MatchString(url) {
		return errors.New("invalid URL format")
	}

	return nil
}
