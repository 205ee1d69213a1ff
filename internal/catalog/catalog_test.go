package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedCatalog(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.NotEmpty(t, c.Boards())
	assert.Len(t, c.Variants(), 6)
	assert.NoError(t, c.Validate())
}

func TestEveryAdvertisedPairHasEnvironment(t *testing.T) {
	c := MustLoad()
	for _, b := range c.Boards() {
		for _, vid := range b.Variants {
			env, err := c.EnvironmentName(b.ID, vid)
			if assert.NoError(t, err, "board %s variant %s", b.ID, vid) {
				assert.NotEmpty(t, env)
			}
		}
	}
}

func TestEnvironmentName(t *testing.T) {
	c := MustLoad()

	tests := []struct {
		name    string
		board   string
		variant string
		want    string
		wantErr error
	}{
		{"heltec v3 repeater", "heltec_v3", "repeater", "Heltec_v3_repeater", nil},
		{"rak companion ble", "rak4631", "companion_ble", "RAK_4631_companion_radio_ble", nil},
		{"xiao s3 usb uses serial env", "xiao_s3_wio", "companion_usb", "Xiao_S3_WIO_companion_radio_serial", nil},
		{"unsupported pair", "xiao_c3", "companion_ble", "", ErrConfigurationMissing},
		{"unknown board", "nope", "repeater", "", ErrConfigurationMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.EnvironmentName(tt.board, tt.variant)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBoardAndVariantLookup(t *testing.T) {
	c := MustLoad()

	b, err := c.Board("rak4631")
	require.NoError(t, err)
	assert.Equal(t, "nordicnrf52", b.Platform)
	assert.Equal(t, "hex_to_uf2", b.PostProcess)

	_, err = c.Board("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	v, err := c.Variant("repeater")
	require.NoError(t, err)
	assert.Equal(t, []string{"ADVERT_NAME", "ADVERT_LAT", "ADVERT_LON", "ADMIN_PASSWORD", "MAX_NEIGHBOURS"}, v.RequiredFlags)

	_, err = c.Variant("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVariantsForBoard(t *testing.T) {
	c := MustLoad()

	vs := c.VariantsForBoard("lilygo_tbeam_SX1262")
	require.Len(t, vs, 2)
	assert.Equal(t, "companion_ble", vs[0].ID)
	assert.Equal(t, "repeater", vs[1].ID)

	assert.Empty(t, c.VariantsForBoard("unknown_board"))
}

func TestBoardsForVariant(t *testing.T) {
	c := MustLoad()

	boards := c.BoardsForVariant("companion_wifi")
	require.Len(t, boards, 1)
	assert.Equal(t, "heltec_v3", boards[0].ID)
}

func TestCommonFlags(t *testing.T) {
	c := MustLoad()
	common := c.CommonFlags()
	require.Len(t, common, 2)
	assert.Equal(t, "MESH_DEBUG", common[0].Key)
	assert.Equal(t, KindBoolean, common[0].Kind)
}

func TestPresets(t *testing.T) {
	c := MustLoad()

	p, err := c.Preset("uk_eu")
	require.NoError(t, err)
	assert.Equal(t, "LORA_FREQ=869.525 LORA_BW=250 LORA_SF=11", p.CustomFlags())

	_, err = c.Preset("mars")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestParseRejectsDanglingReferences(t *testing.T) {
	tests := []struct {
		name        string
		doc         string
		errContains string
	}{
		{
			name: "unknown variant",
			doc: `
boards:
  - {id: b1, name: B1, variants: [ghost]}
`,
			errContains: "unknown variant ghost",
		},
		{
			name: "missing environment",
			doc: `
boards:
  - {id: b1, name: B1, variants: [v1]}
variants:
  - {id: v1, name: V1, required: [], optional: []}
`,
			errContains: "no environment mapping for board b1",
		},
		{
			name: "unknown flag",
			doc: `
variants:
  - {id: v1, name: V1, required: [NOPE]}
`,
			errContains: "unknown flag NOPE",
		},
		{
			name: "bad kind",
			doc: `
flags:
  - {key: X, kind: colour}
`,
			errContains: `unknown flag kind "colour"`,
		},
		{
			name: "duplicate flag",
			doc: `
flags:
  - {key: X, kind: text}
  - {key: X, kind: text}
`,
			errContains: `duplicate flag "X"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidateValues(t *testing.T) {
	c := MustLoad()
	repeater, err := c.Variant("repeater")
	require.NoError(t, err)

	assert.NoError(t, c.ValidateValues(repeater, map[string]string{
		"ADVERT_NAME":    "Node1",
		"ADVERT_LAT":     "51.5",
		"PERSISTANT_GPS": "true",
		"MESH_DEBUG":     "false",
		"UNRELATED":      "whatever",
	}))

	err = c.ValidateValues(repeater, map[string]string{
		"ADVERT_LAT":     "north",
		"ADVERT_NAME":    `bad "quote"`,
		"PERSISTANT_GPS": "maybe",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADVERT_LAT")
	assert.Contains(t, err.Error(), "ADVERT_NAME")
	assert.Contains(t, err.Error(), "PERSISTANT_GPS")
}
