package zones

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/equivet/moverisk/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestReadDeclarations(t *testing.T) {
	input := strings.Join([]string{
		"zone_id,date,category",
		"SVA-01,2019-04-01,low",
		"SVA-02,2019-04-01,HIGH",
		"SVA-01,2019-04-02,partial",
	}, "\n")

	decls, err := ReadDeclarations(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, decls, 3)

	assert.Equal(t, "SVA-01", decls[0].ZoneID)
	assert.Equal(t, time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), decls[0].Date)
	assert.Equal(t, model.CategoryLow, decls[0].Category)
	assert.Equal(t, model.CategoryHigh, decls[1].Category)
	assert.Equal(t, model.CategoryPartial, decls[2].Category)
}

func TestReadDeclarationsNoHeader(t *testing.T) {
	decls, err := ReadDeclarations(strings.NewReader("SVA-01,2019-04-01,low\n"))
	require.NoError(t, err)
	assert.Len(t, decls, 1)
}

func TestReadDeclarationsRejectsBadRows(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "unknown is not declarable", input: "SVA-01,2019-04-01,unknown"},
		{name: "invalid category", input: "SVA-01,2019-04-01,severe"},
		{name: "malformed date", input: "SVA-01,01/04/2019,low"},
		{name: "empty zone id", input: ",2019-04-01,low"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadDeclarations(strings.NewReader(tt.input))
			assert.Error(t, err)
		})
	}
}

func TestDeclarationsByDay(t *testing.T) {
	decls := []model.StatusDeclaration{
		{ZoneID: "A", Date: time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), Category: model.CategoryLow},
		{ZoneID: "B", Date: time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), Category: model.CategoryHigh},
		{ZoneID: "A", Date: time.Date(2019, 4, 2, 0, 0, 0, 0, time.UTC), Category: model.CategoryPartial},
		// Amendment on the same day: last row wins.
		{ZoneID: "B", Date: time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC), Category: model.CategoryPartial},
	}

	byDay := DeclarationsByDay(decls)
	require.Len(t, byDay, 2)

	day1 := byDay["2019-04-01"]
	assert.Equal(t, model.CategoryLow, day1["A"])
	assert.Equal(t, model.CategoryPartial, day1["B"])
	assert.Equal(t, model.CategoryPartial, byDay["2019-04-02"]["A"])
}

func TestDayKey(t *testing.T) {
	assert.Equal(t, "2019-04-01", DayKey(time.Date(2019, 4, 1, 17, 30, 0, 0, time.UTC)))
}
