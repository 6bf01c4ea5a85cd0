package db_models_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/schema"

	"clubhouse/internal/infra"
	"clubhouse/internal/models/db_models"
)

func TestEveryModelParses(t *testing.T) {
	cache := &sync.Map{}
	for _, model := range infra.Models() {
		_, err := schema.Parse(model, cache, schema.NamingStrategy{})
		assert.NoError(t, err, "%T", model)
	}
}

func TestStringListColumns(t *testing.T) {
	s, err := schema.Parse(&db_models.Event{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)

	for _, name := range []string{"Tags", "RSVPs"} {
		field := s.LookUpField(name)
		require.NotNil(t, field, name)
		assert.Equal(t, schema.DataType("text"), field.DataType, name)
	}
}

func TestStringListScansItsOwnValue(t *testing.T) {
	in := db_models.StringList{"kayak", "river, float", `say "hi"`}
	v, err := in.Value()
	require.NoError(t, err)

	var out db_models.StringList
	require.NoError(t, out.Scan(v))
	assert.Equal(t, in, out)
	assert.True(t, out.Contains("kayak"))
	assert.Equal(t, db_models.StringList{"kayak", `say "hi"`}, out.Without("river, float"))
}
