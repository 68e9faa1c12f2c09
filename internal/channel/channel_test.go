package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/internal/permission"
)

func TestString_Parse_RoundTrip(t *testing.T) {
	cases := []Channel{
		AllTables(),
		AllQueries(),
		AllScripts(),
		Table("widgets"),
		Query("top_widgets"),
		Script("rebuild_index"),
		TableData("widgets"),
		Subscribers(Table("widgets")),
	}
	for _, c := range cases {
		encoded := c.String()
		got, err := Parse(encoded)
		require.NoError(t, err, encoded)
		assert.Equal(t, c, got, encoded)
	}
}

func TestParse_Unknown(t *testing.T) {
	_, err := Parse("bogus:nonsense")
	assert.Error(t, err)
}

func TestRequiredPermission(t *testing.T) {
	assert.Equal(t, permission.CreateEntity(permission.EntityTable), AllTables().RequiredPermission())
	assert.Equal(t, permission.GetEntity(permission.EntityTable, "widgets"), Table("widgets").RequiredPermission())
	assert.Equal(t, permission.GetTableData("widgets"), TableData("widgets").RequiredPermission())
	assert.Equal(t, Table("widgets").RequiredPermission(), Subscribers(Table("widgets")).RequiredPermission())
}
