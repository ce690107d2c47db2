package ai

import (
	"testing"
	"time"

	"github.com/avetrano/matrixflow/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExtraction(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		provider string
		utype    model.UtilityType
	}{
		{"plain json", `{"provider": "Enel", "type": "Luce"}`, "Enel", model.UtilityTypePower},
		{"fenced json", "```json\n{\"provider\": \"Eni\", \"type\": \"Gas\"}\n```", "Eni", model.UtilityTypeGas},
		{"english spelling", `{"provider": "Edison", "type": "electricity"}`, "Edison", model.UtilityTypePower},
		{"unknown type left empty", `{"provider": "A2A", "type": "acqua"}`, "A2A", ""},
		{"empty fields", `{"provider": "", "type": ""}`, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := parseExtraction(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.provider, e.Provider)
			assert.Equal(t, tt.utype, e.Type)
		})
	}
}

func TestParseExtraction_Garbage(t *testing.T) {
	_, err := parseExtraction("I could not read the document, sorry.")
	assert.Error(t, err)
}

func TestNetworkDigest_PrunesDepthKeepsCounters(t *testing.T) {
	joined := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	leaf := &model.MatrixNode{
		Member: model.Member{Username: "leaf", Level: 2, JoinedAt: joined},
	}
	child := &model.MatrixNode{
		Member:        model.Member{Username: "child", Level: 1, JoinedAt: joined},
		Children:      []*model.MatrixNode{leaf},
		TotalDownline: 1,
	}
	root := &model.MatrixNode{
		Member: model.Member{
			Username: "admin",
			Level:    0,
			JoinedAt: joined,
			Utilities: []model.Utility{
				{Type: model.UtilityTypeGas, Provider: "Eni", Status: model.UtilityStatusActive},
			},
		},
		Children:       []*model.MatrixNode{child},
		TotalDownline:  2,
		TotalUtilities: 0,
	}

	d := networkDigest(root, 1)
	require.NotNil(t, d)
	assert.Equal(t, "admin", d.Username)
	assert.Equal(t, []string{"Gas/Eni (Active)"}, d.Utilities)
	require.Len(t, d.Children, 1)
	assert.Empty(t, d.Children[0].Children, "grandchildren pruned at the depth cap")
	assert.Equal(t, 1, d.Children[0].TotalDownline, "counters survive the cut")
	assert.Equal(t, 2, d.TotalDownline)
}

func TestNetworkDigest_Nil(t *testing.T) {
	assert.Nil(t, networkDigest(nil, 3))
}

func TestDisabled(t *testing.T) {
	var d Disabled
	_, err := d.ExtractBill(t.Context(), nil, "application/pdf")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = d.Summarize(t.Context(), nil)
	assert.ErrorIs(t, err, ErrDisabled)
}
