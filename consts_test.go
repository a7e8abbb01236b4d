package usb

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointAddress(t *testing.T) {
	assert.Equal(t, uint8(0x81), endpointAddress(1, DirectionIn))
	assert.Equal(t, uint8(0x02), endpointAddress(2, DirectionOut))
	// direction bit never leaks into the number when masking a >7-bit value.
	assert.Equal(t, uint8(0x8f), endpointAddress(0xff, DirectionIn))
}

func TestPackSetupLayout(t *testing.T) {
	buf := make([]byte, controlSetupSize)
	setup := ControlSetup{
		Recipient: RecipientInterface,
		Type:      RequestTypeClass,
		Request:   0x22,
		Value:     0x0001,
		Index:     0x0003,
	}
	packSetup(buf, DirectionOut, setup, 0x0100)

	assert.Equal(t, uint8(0x00|uint8(RequestTypeClass)|uint8(RecipientInterface)), buf[0])
	assert.Equal(t, uint8(0x22), buf[1])
	assert.Equal(t, uint8(0x01), buf[2]) // value low
	assert.Equal(t, uint8(0x00), buf[3]) // value high
	assert.Equal(t, uint8(0x03), buf[4]) // index low
	assert.Equal(t, uint8(0x00), buf[5]) // index high
	assert.Equal(t, uint8(0x00), buf[6]) // length low
	assert.Equal(t, uint8(0x01), buf[7]) // length high
}

func TestPackSetupDirectionIn(t *testing.T) {
	buf := make([]byte, controlSetupSize)
	packSetup(buf, DirectionIn, ControlSetup{Recipient: RecipientDevice}, 8)
	assert.Equal(t, uint8(0x80), buf[0])
}
