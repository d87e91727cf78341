package advisory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTableKnownLabels(t *testing.T) {
	table := Default()

	scab := table.Lookup("Apple___Apple_scab")
	assert.Equal(t, Record{
		PlantType:   "Apple",
		DiseaseType: "Apple Scab",
		Precautions: []string{"Prune trees", "Remove debris", "Use resistant varieties"},
		Fertilizers: []string{"Mancozeb", "Captan"},
	}, scab)

	blight := table.Lookup("Potato___Early_blight")
	assert.Equal(t, Record{
		PlantType:   "Potato",
		DiseaseType: "Early Blight",
		Precautions: []string{"Crop rotation", "Avoid overhead irrigation"},
		Fertilizers: []string{"Chlorothalonil", "Mancozeb"},
	}, blight)
}

func TestLookupFallsBackToUnknown(t *testing.T) {
	r := Default().Lookup("Blueberry___healthy")

	assert.Equal(t, Unknown, r)
	assert.True(t, r.IsUnknown())
	assert.Equal(t, []string{"No data available."}, r.Precautions)
	assert.Equal(t, []string{"No data available."}, r.Fertilizers)
}

func TestLookupIsTotalForArbitraryLabels(t *testing.T) {
	table := Default()
	for _, label := range []string{"", "___", "Apple___apple_scab", "Tomato___Late_blight", "\x00"} {
		r := table.Lookup(label)
		assert.NotEmpty(t, r.PlantType, label)
		assert.Equal(t, table.Has(label), !r.IsUnknown(), label)
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	table := Default()
	r := table.Lookup("Apple___Apple_scab")
	r.Precautions[0] = "mutated"

	unknown := table.Lookup("nope")
	unknown.Fertilizers[0] = "mutated"

	assert.Equal(t, "Prune trees", table.Lookup("Apple___Apple_scab").Precautions[0])
	assert.Equal(t, "No data available.", Unknown.Fertilizers[0])
}

func TestLabelsSorted(t *testing.T) {
	labels := Default().Labels()
	require.NotEmpty(t, labels)
	assert.IsNonDecreasing(t, labels)
	assert.Contains(t, labels, "Apple___Apple_scab")
	assert.Contains(t, labels, "Potato___Early_blight")
}

func TestParseRejectsIncompleteRecords(t *testing.T) {
	_, err := Parse([]byte("X:\n  plant_type: Apple\n"))
	require.Error(t, err)

	_, err = Parse([]byte("- not a map"))
	require.Error(t, err)
}

func TestParseEmpty(t *testing.T) {
	table, err := Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, table.Labels())
	assert.Equal(t, Unknown, table.Lookup("anything"))
}
