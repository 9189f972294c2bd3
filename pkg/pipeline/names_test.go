package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mlengine/pkg/faults"
)

func TestStageVocabulary(t *testing.T) {
	names := AllStages()
	require.Len(t, names, 9)
	assert.Equal(t, DataIngestion, names[0])
	assert.Equal(t, ModelTesting, names[8])

	for _, name := range names {
		parsed, err := ParseStageName(string(name))
		require.NoError(t, err)
		assert.Equal(t, name, parsed)
		assert.NotEmpty(t, name.Label())
		assert.Contains(t, table, name, "no constructor for %s", name)
	}
	assert.Len(t, table, len(names))
}

func TestAllStagesReturnsCopy(t *testing.T) {
	names := AllStages()
	names[0] = "mutated"
	assert.Equal(t, DataIngestion, AllStages()[0])
}

func TestParseStageNameRejectsUnknown(t *testing.T) {
	for _, bad := range []string{"", "Data_Ingestion", "training", "data_ingestion "} {
		_, err := ParseStageName(bad)
		require.ErrorIs(t, err, faults.ErrInvalidOption, bad)
	}
	_, err := ParseStageName("foo")
	assert.EqualError(t, err, "invalid option: Incorrect option: foo.")
}
