// internal/services/errors.go
package services

import "errors"

// Purchase-flow error taxonomy. Configuration errors (unsupported chain,
// unknown tier) fail fast; wallet errors are recoverable by the user;
// monitoring errors are terminal for the attempt but the whole flow can
// be retried from the estimation step.
var (
	ErrUnknownLicenseTier  = errors.New("unknown license tier")
	ErrWalletRejected      = errors.New("transaction rejected in wallet")
	ErrWrongNetwork        = errors.New("wallet is connected to the wrong network")
	ErrTransactionReverted = errors.New("source chain transaction reverted")
	ErrOrderFailed         = errors.New("bridge order failed")
	ErrMonitorTimeout      = errors.New("bridge order unconfirmed within the monitoring budget")
	ErrPurchaseInFlight    = errors.New("a purchase for this asset and buyer is already in flight")
	ErrAssetNotFound       = errors.New("asset not found")
	ErrAssetNotVerified    = errors.New("asset has not cleared authenticity checks")
	ErrFileTooLarge        = errors.New("file exceeds the size limit for its category")
	ErrUnsupportedFileType = errors.New("unsupported file type")
)
