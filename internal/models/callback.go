package models

import "net/url"

// CallbackRequest is everything a gateway return or a status re-check
// carries into the resolver.
type CallbackRequest struct {
	// Processor is the configured processor variant name from the route,
	// e.g. "hyperpay" or "hyperpay_mada".
	Processor string

	// ResourcePath is the gateway resource to poll. For a submit callback
	// it arrives in the query string; for a status re-check it has already
	// been recovered from the opaque token.
	ResourcePath string

	// Query is the full callback query string, audited verbatim.
	Query url.Values

	// User is the authenticated requester. Zero when unauthenticated.
	User UserSnapshot

	// SessionID keys the one-shot skip-status-check flag.
	SessionID string
}

// DispositionKind enumerates what the HTTP layer should do with a resolved
// callback.
type DispositionKind int

const (
	// DispositionErrorRedirect sends the payer to the generic payment
	// error page.
	DispositionErrorRedirect DispositionKind = iota

	// DispositionStatusCheckRedirect sends the payer to the tokenized
	// status re-check URL.
	DispositionStatusCheckRedirect

	// DispositionPendingPage renders the self-refreshing pending page.
	DispositionPendingPage

	// DispositionReceiptRedirect sends the payer to the receipt page of a
	// finalized order.
	DispositionReceiptRedirect
)

// Resolution is the resolver's verdict on one callback.
type Resolution struct {
	Kind DispositionKind

	// OrderNumber accompanies DispositionReceiptRedirect.
	OrderNumber string

	// Token accompanies DispositionStatusCheckRedirect.
	Token string

	// PollIntervalSeconds accompanies DispositionPendingPage.
	PollIntervalSeconds int

	// Outcome and ErrorKind describe how the callback resolved, for
	// metrics and the outcome event.
	Outcome   Outcome
	ErrorKind ErrorKind
}

// CheckoutPage carries everything the payment page template needs after a
// checkout has been registered with the gateway.
type CheckoutPage struct {
	CheckoutID   string
	Integrity    string
	WidgetJSURL  string
	ReturnURL    string
	Brands       []string
	CheckoutText string
	OrderNumber  string
	Amount       string
	Currency     string
}
