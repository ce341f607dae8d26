package errortypes

// Timeout should be used to flag that a bidder failed to return a response because the
// auction deadline expired before a result was received.
//
// Timeouts will not be written to the app log, since they are not an actionable item for
// the exchange hosts.
type Timeout struct {
	Message string
}

func (err *Timeout) Error() string {
	return err.Message
}

func (err *Timeout) Code() int {
	return TimeoutErrorCode
}

func (err *Timeout) Severity() Severity {
	return SeverityFatal
}

// BadInput should be used when returning errors which are caused by bad input.
// It should _not_ be used if the error is a server-side issue (e.g. failed to send the
// external request).
//
// BadInputs will not be written to the app log, since they are not an actionable item for
// the exchange hosts.
type BadInput struct {
	Message string
}

func (err *BadInput) Error() string {
	return err.Message
}

func (err *BadInput) Code() int {
	return BadInputErrorCode
}

func (err *BadInput) Severity() Severity {
	return SeverityFatal
}

// BadServerResponse should be used when returning errors which are caused by bad or
// unexpected behavior on the remote bidder's server.
//
// For example:
//
//   - The external server responded with a 500
//   - The external server gave a malformed or unexpected response.
//
// These should not be used to log _connection_ errors (e.g. "couldn't find host"),
// which may indicate config issues for the host company.
type BadServerResponse struct {
	Message string
}

func (err *BadServerResponse) Error() string {
	return err.Message
}

func (err *BadServerResponse) Code() int {
	return BadServerResponseErrorCode
}

func (err *BadServerResponse) Severity() Severity {
	return SeverityFatal
}

// FailedToRequestBids covers the case where an adapter failed to generate any wire
// requests to get bids, but did not generate any error messages either. This should not
// happen in practice and signals that an adapter is poorly coded. If there was something
// wrong with a request such that an adapter could not generate a bid, then it should
// generate an error explaining the deficiency.
type FailedToRequestBids struct {
	Message string
}

func (err *FailedToRequestBids) Error() string {
	return err.Message
}

func (err *FailedToRequestBids) Code() int {
	return FailedToRequestBidsErrorCode
}

func (err *FailedToRequestBids) Severity() Severity {
	return SeverityFatal
}

// BidderParam should be used when a bidder's request params fail schema validation.
// The bidder is isolated from the auction; sibling bidders are unaffected.
type BidderParam struct {
	Message string
}

func (err *BidderParam) Error() string {
	return err.Message
}

func (err *BidderParam) Code() int {
	return BidderParamErrorCode
}

func (err *BidderParam) Severity() Severity {
	return SeverityFatal
}

// CacheError should be used when the creative cache round-trip failed or timed out.
// Winning bids are still returned, without cache ids.
type CacheError struct {
	Message string
}

func (err *CacheError) Error() string {
	return err.Message
}

func (err *CacheError) Code() int {
	return CacheErrorCode
}

func (err *CacheError) Severity() Severity {
	return SeverityWarning
}

// Warning is a generic non-fatal error.
type Warning struct {
	Message     string
	WarningCode int
}

func (err *Warning) Error() string {
	return err.Message
}

func (err *Warning) Code() int {
	return err.WarningCode
}

func (err *Warning) Severity() Severity {
	return SeverityWarning
}
