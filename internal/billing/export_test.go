package billing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/bher20/wattscope/internal/tariff"
)

func TestExports(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, tariff.CategoryResidential)
	_, err := svc.SaveUsage(ctx, "u1", UsageInput{ApplianceID: "fridge", Hours: 10})
	require.NoError(t, err)
	_, err = svc.SaveUsage(ctx, "u1", UsageInput{ApplianceID: "tv", Hours: 3, Minutes: 30})
	require.NoError(t, err)

	st, err := svc.Statement(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, st.Events, 2)

	pdfBytes, err := ExportPDF(st)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdfBytes, []byte("%PDF")))

	xlsxBytes, err := ExportXLSX(st)
	require.NoError(t, err)
	f, err := excelize.OpenReader(bytes.NewReader(xlsxBytes))
	require.NoError(t, err)
	defer f.Close()

	cat, err := f.GetCellValue("Summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "LT-I", cat)

	rows, err := f.GetRows("Usage")
	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, "Appliance", rows[0][1])
}
