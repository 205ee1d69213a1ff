package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func groupNames(groups []FieldGroup) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Name
	}
	return names
}

func fieldKeys(g FieldGroup) []string {
	keys := make([]string, len(g.Fields))
	for i, f := range g.Fields {
		keys[i] = f.Key
	}
	return keys
}

func TestFieldGroupsRepeater(t *testing.T) {
	c := MustLoad()
	v, err := c.Variant("repeater")
	require.NoError(t, err)

	groups := c.FieldGroups(v)
	assert.Equal(t, []string{
		"Device Settings",
		"Location Settings",
		"Security Settings",
		"Capacity Settings",
		"GPS Settings",
	}, groupNames(groups))

	security := groups[2]
	assert.Equal(t, []string{"ADMIN_PASSWORD", "GUEST_PASSWORD"}, fieldKeys(security))
	assert.True(t, security.Fields[0].Required)
	assert.False(t, security.Fields[1].Required)
	assert.Equal(t, "password", security.Fields[0].DefaultValue)

	location := groups[1]
	assert.Equal(t, []string{"ADVERT_LAT", "ADVERT_LON"}, fieldKeys(location))
}

func TestFieldGroupsDefaultGroupNames(t *testing.T) {
	c := MustLoad()
	v, err := c.Variant("companion_ble")
	require.NoError(t, err)

	groups := c.FieldGroups(v)
	names := groupNames(groups)
	assert.Contains(t, names, GroupOptional)

	for _, g := range groups {
		if g.Name == GroupOptional {
			assert.Equal(t, []string{"BLE_DEBUG_LOGGING"}, fieldKeys(g))
		}
		if g.Name == "BLE Settings" {
			assert.Equal(t, []string{"BLE_PIN_CODE", "BLE_NAME_PREFIX"}, fieldKeys(g))
		}
	}
}

func TestFieldGroupsRequiredBeforeOrder(t *testing.T) {
	doc := `
variants:
  - {id: v, name: V, required: [C, D], optional: [A, B]}
flags:
  - {key: A, kind: text, group: G, order: 1}
  - {key: B, kind: text, group: G}
  - {key: C, kind: text, group: G, order: 9}
  - {key: D, kind: text, group: G}
`
	c, err := Parse([]byte(doc))
	require.NoError(t, err)
	v, err := c.Variant("v")
	require.NoError(t, err)

	groups := c.FieldGroups(v)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"C", "D", "A", "B"}, fieldKeys(groups[0]))
}
