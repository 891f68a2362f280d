package txpipe

import (
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/altuslabsxyz/walletkit/internal/lcd"
)

// PickRawLog returns the log of the message at index.
func PickRawLog(info *lcd.TxInfo, index int) (*sdk.ABCIMessageLog, bool) {
	if info == nil || index < 0 || index >= len(info.Logs) {
		return nil, false
	}
	return &info.Logs[index], true
}

// PickEvent returns the first event of the given type.
func PickEvent(log *sdk.ABCIMessageLog, eventType string) (*sdk.StringEvent, bool) {
	if log == nil {
		return nil, false
	}
	for i := range log.Events {
		if log.Events[i].Type == eventType {
			return &log.Events[i], true
		}
	}
	return nil, false
}

// PickAttributeValue returns the value of the attribute at index.
func PickAttributeValue(event *sdk.StringEvent, index int) (string, bool) {
	if event == nil || index < 0 || index >= len(event.Attributes) {
		return "", false
	}
	return event.Attributes[index].Value, true
}

// AttributePicker selects one attribute among those sharing a key.
type AttributePicker func(attrs []sdk.Attribute) (sdk.Attribute, bool)

// FromEnd picks the i-th attribute counting from the last one.
func FromEnd(i int) AttributePicker {
	return func(attrs []sdk.Attribute) (sdk.Attribute, bool) {
		if i < 0 || i >= len(attrs) {
			return sdk.Attribute{}, false
		}
		return attrs[len(attrs)-1-i], true
	}
}

func first(attrs []sdk.Attribute) (sdk.Attribute, bool) {
	if len(attrs) == 0 {
		return sdk.Attribute{}, false
	}
	return attrs[0], true
}

// PickAttributeValueByKey returns the value of an attribute with key. When
// several match, pick chooses; by default the first wins.
func PickAttributeValueByKey(event *sdk.StringEvent, key string, pick ...AttributePicker) (string, bool) {
	if event == nil {
		return "", false
	}

	var attrs []sdk.Attribute
	for _, a := range event.Attributes {
		if a.Key == key {
			attrs = append(attrs, a)
		}
	}

	picker := AttributePicker(first)
	if len(pick) > 0 && pick[0] != nil {
		picker = pick[0]
	}

	a, ok := picker(attrs)
	if !ok {
		return "", false
	}
	return a.Value, true
}
