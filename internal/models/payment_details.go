package models

// PaymentDetails is the slice of a successful status payload recorded on the
// order: what receipts and support tooling need, nothing more.
type PaymentDetails struct {
	TransactionID string
	Total         string
	Currency      string
	CardNumber    string
	CardType      string
}

// PaymentDetailsFromResponse extracts payment details from a raw status
// payload. Absent card fields degrade to masked placeholders rather than
// failing: the payload shape varies per payment brand.
func PaymentDetailsFromResponse(response map[string]any) PaymentDetails {
	card, _ := response["card"].(map[string]any)
	bin := stringField(card, "bin")
	if bin == "" {
		bin = "XXXXXX"
	}
	last4 := stringField(card, "last4Digits")
	if last4 == "" {
		last4 = "XXXX"
	}
	brand := stringField(response, "paymentBrand")
	if brand == "" {
		brand = "Unknown"
	}
	return PaymentDetails{
		TransactionID: stringField(response, "id"),
		Total:         stringField(response, "amount"),
		Currency:      stringField(response, "currency"),
		CardNumber:    bin + "XXXXXX" + last4,
		CardType:      brand,
	}
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
