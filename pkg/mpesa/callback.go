package mpesa

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CallbackEnvelope is the provider's STK push result payload, POSTed
// to our callback URL after the payer approves or declines the prompt.
type CallbackEnvelope struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback carries the result code and, on success, a metadata item
// list describing the completed payment.
type STKCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        int    `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  struct {
		Item []MetadataItem `json:"Item"`
	} `json:"CallbackMetadata"`
}

// MetadataItem is one name/value pair from the callback metadata. The
// value may be a JSON number or string depending on the item.
type MetadataItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value"`
}

// PaymentDetails is the typed view of the callback metadata. Items
// with unrecognized names are ignored rather than rejected.
type PaymentDetails struct {
	Amount           decimal.Decimal
	ReceiptNumber    string
	Phone            string
	TransactionDate  string
	AccountReference string
}

// PaymentDetails extracts the known metadata items from the callback.
func (c *STKCallback) PaymentDetails() (PaymentDetails, error) {
	var d PaymentDetails
	for _, item := range c.CallbackMetadata.Item {
		switch item.Name {
		case "Amount":
			var amount decimal.Decimal
			if err := json.Unmarshal(item.Value, &amount); err != nil {
				return d, fmt.Errorf("malformed Amount item: %w", err)
			}
			d.Amount = amount
		case "MpesaReceiptNumber":
			if err := json.Unmarshal(item.Value, &d.ReceiptNumber); err != nil {
				return d, fmt.Errorf("malformed MpesaReceiptNumber item: %w", err)
			}
		case "PhoneNumber":
			d.Phone = rawToString(item.Value)
		case "TransactionDate":
			d.TransactionDate = rawToString(item.Value)
		case "AccountReference":
			if err := json.Unmarshal(item.Value, &d.AccountReference); err != nil {
				return d, fmt.Errorf("malformed AccountReference item: %w", err)
			}
		}
	}
	return d, nil
}

// rawToString renders a JSON string or number value as a plain string.
// Anything else (object, array, bool, null) yields an empty string.
func rawToString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

const referencePrefix = "Loan-"

// FormatReference builds the account reference tying an STK push to a
// loan, later echoed back in the callback metadata.
func FormatReference(loanID uuid.UUID) string {
	return referencePrefix + loanID.String()
}

// ParseReference extracts the loan ID from a "Loan-<id>" account
// reference.
func ParseReference(ref string) (uuid.UUID, error) {
	if !strings.HasPrefix(ref, referencePrefix) {
		return uuid.Nil, fmt.Errorf("reference %q does not start with %q", ref, referencePrefix)
	}
	id, err := uuid.Parse(strings.TrimPrefix(ref, referencePrefix))
	if err != nil {
		return uuid.Nil, fmt.Errorf("reference %q has unparseable loan id: %w", ref, err)
	}
	return id, nil
}
