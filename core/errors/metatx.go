package errors

import stderrors "errors"

var (
	ErrInvalidSignatureLength = stderrors.New("metatx: invalid signature length")
	ErrInvalidRecoveryID      = stderrors.New("metatx: invalid signature recovery id")
	ErrSignerMismatch         = stderrors.New("metatx: recovered signer does not match claimed signer")
	ErrZeroFlip               = stderrors.New("metatx: signer must flip at least one bit")
	ErrAlreadyFlipped         = stderrors.New("metatx: nonce already flipped")
	ErrBucketTooFarAhead      = stderrors.New("metatx: bucket too far ahead of current window")
	ErrSequenceNotIncreasing  = stderrors.New("metatx: sequence not increasing")

	// ErrTargetMismatch is returned when a request names a different gateway
	// instance than the one processing it.
	ErrTargetMismatch = stderrors.New("metatx: request target does not match gateway instance")
	// ErrQueryUnsupported is returned when the configured replay policy has no
	// state for the requested query.
	ErrQueryUnsupported = stderrors.New("metatx: query not supported by replay policy")
)

// CodeInternal labels failures outside the replay-protection taxonomy, such as
// storage errors.
const CodeInternal = "Internal"

var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidSignatureLength, "InvalidSignatureLength"},
	{ErrInvalidRecoveryID, "InvalidRecoveryId"},
	{ErrSignerMismatch, "SignerMismatch"},
	{ErrZeroFlip, "ZeroFlip"},
	{ErrAlreadyFlipped, "AlreadyFlipped"},
	{ErrBucketTooFarAhead, "BucketTooFarAhead"},
	{ErrSequenceNotIncreasing, "SequenceNotIncreasing"},
	{ErrTargetMismatch, "TargetMismatch"},
	{ErrQueryUnsupported, "QueryUnsupported"},
}

// Code returns the stable taxonomy name for err. Nil maps to the empty string
// and unknown errors to CodeInternal.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range codes {
		if stderrors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}

// IsRejection reports whether err is a deterministic rejection of the request
// itself rather than an infrastructure failure.
func IsRejection(err error) bool {
	code := Code(err)
	return code != "" && code != CodeInternal
}
