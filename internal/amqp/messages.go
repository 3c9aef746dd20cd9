package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// PaymentRegisteredMessage announces an accepted payment. It carries ids only;
// consumers reload the quotation from storage.
type PaymentRegisteredMessage struct {
	QuotationID string    `json:"quotationId"`
	PaymentID   string    `json:"paymentId"`
	Amount      int64     `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewPaymentRegisteredMessage(quotationID, paymentID string, amount int64) *PaymentRegisteredMessage {
	return &PaymentRegisteredMessage{
		QuotationID: quotationID,
		PaymentID:   paymentID,
		Amount:      amount,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *PaymentRegisteredMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PaymentRegisteredMessageFromJSON decodes a message, rejecting bodies that
// lack the ids a consumer needs.
func PaymentRegisteredMessageFromJSON(data []byte) (*PaymentRegisteredMessage, error) {
	var msg PaymentRegisteredMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.QuotationID == "" || msg.PaymentID == "" {
		return nil, errors.New("payment message without quotation or payment id")
	}
	return &msg, nil
}
