package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRawEvent(t *testing.T) {
	payload := []byte(`{
		"transactionId": "t1",
		"productId": "p1",
		"productName": "Phone",
		"productCategory": "electronics",
		"productPrice": 199.5,
		"productQuantity": 1,
		"productBrand": "mi",
		"currency": "USD",
		"customerId": "c1",
		"transactionDate": "2024-01-01T10:00:00Z",
		"paymentMethod": "card",
		"totalAmount": 199.5
	}`)

	ev, err := decodeRawEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, "t1", ev.TransactionID)
	require.NotNil(t, ev.ProductBrand)
	assert.Equal(t, "mi", *ev.ProductBrand)
	assert.Equal(t, 199.5, ev.TotalAmount)
}

func TestDecodeRawEventAbsentBrand(t *testing.T) {
	ev, err := decodeRawEvent([]byte(`{"transactionId": "t1"}`))
	require.NoError(t, err)
	// Absent stays nil; an explicit null does too. The normalizer treats
	// both as missing.
	assert.Nil(t, ev.ProductBrand)

	ev, err = decodeRawEvent([]byte(`{"transactionId": "t1", "productBrand": null}`))
	require.NoError(t, err)
	assert.Nil(t, ev.ProductBrand)

	ev, err = decodeRawEvent([]byte(`{"transactionId": "t1", "productBrand": ""}`))
	require.NoError(t, err)
	require.NotNil(t, ev.ProductBrand)
	assert.Equal(t, "", *ev.ProductBrand)
}

func TestDecodeRawEventIgnoresUnknownFields(t *testing.T) {
	ev, err := decodeRawEvent([]byte(`{"transactionId": "t1", "futureField": 42}`))
	require.NoError(t, err)
	assert.Equal(t, "t1", ev.TransactionID)
}

func TestDecodeRawEventRejectsMalformed(t *testing.T) {
	_, err := decodeRawEvent([]byte(`{not json`))
	assert.Error(t, err)
}

func TestDecodeRawEventRequiresTransactionID(t *testing.T) {
	_, err := decodeRawEvent([]byte(`{"totalAmount": 10}`))
	assert.ErrorIs(t, err, errMissingTransactionID)
}
