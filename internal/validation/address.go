// Package validation provides Bitcoin address and extended key validation.
package validation

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/types"
)

// ValidateAddress checks that addr is a well-formed mainnet Bitcoin address
// (base58check or bech32, checksum included).
func ValidateAddress(addr string) error {
	if addr == "" {
		return apperrors.NewValidationError("address", "address cannot be empty")
	}

	decoded, err := btcutil.DecodeAddress(addr, &chaincfg.MainNetParams)
	if err != nil {
		return apperrors.NewValidationError("address", err.Error())
	}
	if !decoded.IsForNet(&chaincfg.MainNetParams) {
		return apperrors.NewValidationError("address", "address is not a mainnet address")
	}

	return nil
}

// ValidateXpub checks that xpub is a well-formed extended public key.
// Private extended keys are rejected: the ledger must never store spend keys.
func ValidateXpub(xpub string) error {
	if xpub == "" {
		return apperrors.NewValidationError("xpub", "extended key cannot be empty")
	}

	key, err := hdkeychain.NewKeyFromString(strings.TrimSpace(xpub))
	if err != nil {
		return apperrors.NewValidationError("xpub", err.Error())
	}
	if key.IsPrivate() {
		return apperrors.NewValidationError("xpub", "extended private keys are not accepted")
	}

	return nil
}

// ValidateWalletHandle dispatches on the wallet type tag.
func ValidateWalletHandle(walletType types.WalletType, value string) error {
	switch walletType {
	case types.WalletAddress:
		return ValidateAddress(value)
	case types.WalletXpub:
		return ValidateXpub(value)
	default:
		return apperrors.NewValidationError("wallet_type", "must be 'address' or 'xpub'")
	}
}
