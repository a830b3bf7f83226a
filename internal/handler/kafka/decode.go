package kafka

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/finflow/payment-stream-engine/internal/domain/model"
)

var errMissingTransactionID = errors.New("missing transactionId")

// decodeRawEvent deserializes a topic message into a RawEvent. Unknown
// fields are ignored; a missing transaction id rejects the message, so a
// malformed payload never becomes a RawEvent.
func decodeRawEvent(payload []byte) (model.RawEvent, error) {
	var ev model.RawEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return model.RawEvent{}, fmt.Errorf("decode transaction: %w", err)
	}
	if ev.TransactionID == "" {
		return model.RawEvent{}, errMissingTransactionID
	}
	return ev, nil
}
