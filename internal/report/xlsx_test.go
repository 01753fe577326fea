package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dealdesk/internal/model"
)

func writeTemp(t *testing.T, records []model.Record, columns []string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, WriteDealsXLSX(&buf, records, columns))
	path := filepath.Join(t.TempDir(), "deals.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestWriteDealsXLSX(t *testing.T) {
	records := []model.Record{
		{ID: "1", Properties: map[string]string{"dealname": "Acme", "amount": "1000"}},
		{ID: "2", Properties: map[string]string{"dealname": "Globex"}},
	}
	path := writeTemp(t, records, []string{"dealname", "amount"})

	rows, err := ReadXLSX(path, DealsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"id", "dealname", "amount"}, rows[0])
	assert.Equal(t, []string{"1", "Acme", "1000"}, rows[1])
	assert.Equal(t, "Globex", rows[2][1])
}

func TestWriteDealsXLSX_DefaultColumns(t *testing.T) {
	path := writeTemp(t, nil, nil)

	rows, err := ReadXLSX(path, "")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, append([]string{"id"}, DefaultDealColumns...), rows[0])
}

func TestReadXLSX_Errors(t *testing.T) {
	path := writeTemp(t, nil, nil)

	_, err := ReadXLSX(path, "Missing")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = ReadXLSX(filepath.Join(t.TempDir(), "nope.xlsx"), "")
	assert.Error(t, err)
}
