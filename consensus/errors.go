package consensus

import "fmt"

// ErrorCode classifies a consensus-layer failure the way the validator's failure
// taxonomy expects: a rule violation is always a peer fault, never ours.
type ErrorCode string

const (
	ErrParse        ErrorCode = "PARSE"
	ErrPowInvalid   ErrorCode = "POW_INVALID"
	ErrTargetRange  ErrorCode = "TARGET_RANGE"
	ErrMerkle       ErrorCode = "MERKLE_INVALID"
	ErrCoinbase     ErrorCode = "COINBASE_INVALID"
	ErrSigOps       ErrorCode = "SIGOPS_EXCEEDED"
	ErrScript       ErrorCode = "SCRIPT_INVALID"
	ErrMissingUTXO  ErrorCode = "MISSING_UTXO"
	ErrDoubleSpend  ErrorCode = "DOUBLE_SPEND"
	ErrImmature     ErrorCode = "COINBASE_IMMATURE"
	ErrValueRange   ErrorCode = "VALUE_RANGE"
	ErrNotFinal     ErrorCode = "NOT_FINAL"
	ErrSubsidyRange ErrorCode = "SUBSIDY_EXCEEDED"
)

// RuleError is a consensus-rule violation: it always maps to the validator's BAD
// status, never to ERROR.
type RuleError struct {
	Code ErrorCode
	Msg  string
}

func (e *RuleError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

func ruleErr(code ErrorCode, msg string) error {
	return &RuleError{Code: code, Msg: msg}
}

// IsRuleError reports whether err is a consensus-rule violation (peer fault) as
// opposed to an internal/IO failure.
func IsRuleError(err error) bool {
	_, ok := err.(*RuleError)
	return ok
}
