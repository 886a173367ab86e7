package od

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatName(t *testing.T) {
	tests := []struct {
		template string
		idx      int
		sub      int
		expected string
	}{
		{"Receive PDO %d Parameter[(idx)]", 3, 0, "Receive PDO 3 Parameter"},
		{"PDO %d Mapping for an application object %d[(idx,sub)]", 2, 5, "PDO 2 Mapping for an application object 5"},
		{"Save Manufacturer Parameters %d[(sub - 3)]", 1, 5, "Save Manufacturer Parameters 2"},
		{"Module %d[(sub)]", 1, 12, "Module 12"},
		{"Entry 0x%02X[(sub + 0x10)]", 1, 1, "Entry 0x11"},
		{"Device Type", 1, 0, "Device Type"},
	}
	for _, test := range tests {
		t.Run(test.template, func(t *testing.T) {
			name, err := FormatName(test.template, test.idx, test.sub)
			assert.Nil(t, err)
			assert.Equal(t, test.expected, name)
		})
	}
}

func TestFormatNameErrors(t *testing.T) {
	_, err := FormatName("Bad %d[(unknown)]", 1, 1)
	assert.ErrorIs(t, err, ErrFormula)

	_, err = FormatName("Too many %d[(idx,sub)]", 1, 1)
	assert.ErrorIs(t, err, ErrFormula)

	_, err = FormatName("Not a number %d[('text')]", 1, 1)
	assert.ErrorIs(t, err, ErrFormula)
}

func TestEvaluateFormula(t *testing.T) {
	tests := []struct {
		expr     string
		expected any
	}{
		{"1 + 2 * 3", int64(7)},
		{"(1 + 2) * 3", int64(9)},
		{"-7 % 3", int64(2)},
		{"0x10 - 1", int64(15)},
		{"base < 4", true},
		{"base == 1", true},
		{`"a" + 'b'`, "ab"},
		{`"%d-%X" % (10, 255)`, "10-FF"},
		{`{True:1,False:2}[base>3]`, int64(2)},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			value, err := EvaluateFormula(test.expr, map[string]int64{"base": 1})
			assert.Nil(t, err)
			assert.Equal(t, test.expected, value)
		})
	}
}

func TestEvaluateFormulaClosedGrammar(t *testing.T) {
	for _, expr := range []string{
		`__import__("os")`,
		"1 +",
		"open('file')",
		"idx.real",
		"1 % 0",
		"lambda: 0",
		"$NODEID+1",
	} {
		_, err := EvaluateFormula(expr, map[string]int64{"idx": 1})
		assert.ErrorIs(t, err, ErrFormula, expr)
	}
}

func TestCompileValue(t *testing.T) {
	rpdo := `{True:"$NODEID+0x%X00"%(base+2),False:0x80000000}[base<4]`

	value, err := CompileValue(rpdo, 1, 5, true)
	assert.Nil(t, err)
	assert.Equal(t, int64(0x305), value)

	value, err = CompileValue(rpdo, 1, 5, false)
	assert.Nil(t, err)
	assert.Equal(t, "$NODEID+0x300", value)

	value, err = CompileValue(rpdo, 4, 5, true)
	assert.Nil(t, err)
	assert.Equal(t, int64(0x80000000), value)

	value, err = CompileValue(`"$NODEID+0x80"`, 0, 5, true)
	assert.Nil(t, err)
	assert.Equal(t, int64(0x85), value)

	value, err = CompileValue(`"$nodeid+0x600"`, 0, 0x10, true)
	assert.Nil(t, err)
	assert.Equal(t, int64(0x610), value)

	// Values without the node id are never evaluated
	value, err = CompileValue("1 + 1", 0, 5, true)
	assert.Nil(t, err)
	assert.Equal(t, "1 + 1", value)
	value, err = CompileValue(int64(12), 0, 5, true)
	assert.Nil(t, err)
	assert.Equal(t, int64(12), value)

	_, err = CompileValue("$NODEID+", 0, 5, true)
	assert.ErrorIs(t, err, ErrFormula)
	_, err = CompileValue(`"$NODEID+"`, 0, 5, true)
	assert.ErrorIs(t, err, ErrFormula)
}
