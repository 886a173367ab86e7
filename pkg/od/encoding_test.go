package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw      string
		datatype uint16
		want     Value
	}{
		{"true", BOOLEAN, true},
		{"FALSE", BOOLEAN, false},
		{"1", BOOLEAN, true},
		{"0", BOOLEAN, false},
		{"", BOOLEAN, false},
		{"0x10", UNSIGNED8, int64(16)},
		{"-5", INTEGER16, int64(-5)},
		{"", UNSIGNED32, int64(0)},
		{"1.5", REAL32, float64(1.5)},
		{"abc", VISIBLE_STRING, "abc"},
		{"$NODEID+0x80", UNSIGNED32, "$NODEID+0x80"},
	}
	for _, test := range tests {
		value, err := ParseValue(test.raw, test.datatype)
		assert.Nil(t, err, test.raw)
		assert.Equal(t, test.want, value, test.raw)
	}

	_, err := ParseValue("2", BOOLEAN)
	assert.NotNil(t, err)
	_, err = ParseValue("0x100", UNSIGNED8)
	assert.NotNil(t, err)
}
