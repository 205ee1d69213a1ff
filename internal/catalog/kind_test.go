package catalog

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFormat(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		value  string
		want   string
		wantOK bool
	}{
		{"text is quoted", KindText, "Node1", `ADVERT_NAME='"Node1"'`, true},
		{"secret is quoted", KindSecret, "secret", `ADVERT_NAME='"secret"'`, true},
		{"number is bare", KindNumber, "1.0", "ADVERT_NAME=1.0", true},
		{"select is bare", KindSelect, "250", "ADVERT_NAME=250", true},
		{"boolean true", KindBoolean, "true", "ADVERT_NAME=1", true},
		{"boolean one", KindBoolean, "1", "ADVERT_NAME=1", true},
		{"boolean false is omitted", KindBoolean, "false", "", false},
		{"boolean garbage is omitted", KindBoolean, "yes please", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.kind.Format("ADVERT_NAME", tt.value)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKindValidate(t *testing.T) {
	lo, hi := 1.0, 30.0
	power := FlagDef{Key: "LORA_TX_POWER", Kind: KindNumber, Min: &lo, Max: &hi}
	bw := FlagDef{Key: "LORA_BANDWIDTH", Kind: KindSelect, Options: []string{"125", "250", "500"}}

	assert.NoError(t, power.Validate("20"))
	assert.NoError(t, power.Validate(""))
	assert.Error(t, power.Validate("0"))
	assert.Error(t, power.Validate("31"))
	assert.Error(t, power.Validate("loud"))

	assert.NoError(t, bw.Validate("500"))
	assert.Error(t, bw.Validate("300"))
}

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(name)
		assert.NoError(t, err)
		assert.Equal(t, k, got)
		assert.Equal(t, name, k.String())
	}
	_, err := ParseKind("checkbox")
	assert.Error(t, err)
}

func TestKindMarshalsName(t *testing.T) {
	data, err := json.Marshal(FlagDef{Key: "WIFI_PWD", Kind: KindSecret})
	assert.NoError(t, err)
	assert.Contains(t, string(data), `"Kind":"secret"`)
}
