package riskmatrix

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentra-security/sentra-engine/pkg/models"
)

func TestWriteReport(t *testing.T) {
	g := NewGrid(340, 280)
	entities := []*models.MatrixEntity{
		entity("Warehouse", models.LikelihoodHigh, models.ImpactHigh),
		entity("S3 exports", models.LikelihoodLow, models.ImpactMedium),
	}
	placed, _ := g.Layout(entities)

	var buf bytes.Buffer
	err := WriteReport(&buf, "Risk Matrix - acme", g, placed)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(buf.String(), "%PDF-"), "output must be a PDF document")
	assert.Greater(t, buf.Len(), 1000)
}

func TestWriteReport_NoEntities(t *testing.T) {
	g := NewGrid(340, 280)

	var buf bytes.Buffer
	err := WriteReport(&buf, "Risk Matrix", g, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(buf.String(), "%PDF-"))
}
