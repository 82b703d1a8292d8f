package schema_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/niksmo/inventory/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSchemaIdentifier struct {
	mock.Mock
}

func (c *MockSchemaIdentifier) DetermineID(
	ctx context.Context, subject string, avroSchemaText string,
) (id int, err error) {
	args := c.Called(ctx, subject, avroSchemaText)
	return args.Int(0), args.Error(1)
}

func TestSerdeProductChangeV1(t *testing.T) {
	t.Run("NoOpts", func(t *testing.T) {
		_, err := schema.NewSerdeProductChangeV1(t.Context())
		require.Error(t, err)
		assert.ErrorIs(t, err, schema.ErrTooFewOpts)
	})

	t.Run("OneOpt", func(t *testing.T) {
		_, err := schema.NewSerdeProductChangeV1(
			t.Context(),
			schema.SchemaIdentifierOpt(new(MockSchemaIdentifier)),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, schema.ErrTooFewOpts)
	})

	t.Run("IdentifierFails", func(t *testing.T) {
		schemaIdentifier := new(MockSchemaIdentifier)
		subject := "product-changes-value"
		registryErr := errors.New("registry unavailable")

		schemaIdentifier.On(
			"DetermineID", t.Context(), subject, schema.ProductChangeSchemaTextV1,
		).Return(0, registryErr)

		_, err := schema.NewSerdeProductChangeV1(
			t.Context(),
			schema.SubjectOpt(subject),
			schema.SchemaIdentifierOpt(schemaIdentifier),
		)
		require.Error(t, err)
		assert.ErrorIs(t, err, registryErr)
	})

	t.Run("EncodeDecode", func(t *testing.T) {
		schemaIdentifier := new(MockSchemaIdentifier)
		schemaID := 1
		subject := "product-changes-value"

		schemaIdentifier.On(
			"DetermineID", t.Context(), subject, schema.ProductChangeSchemaTextV1,
		).Return(schemaID, nil)

		serde, err := schema.NewSerdeProductChangeV1(
			t.Context(),
			schema.SubjectOpt(subject),
			schema.SchemaIdentifierOpt(schemaIdentifier),
		)
		require.NoError(t, err)
		schemaIdentifier.AssertExpectations(t)

		v1 := schema.ProductChangeV1{
			Action:     "updated",
			ProductID:  3,
			Title:      "testTitle",
			Price:      55.5,
			Category:   "jewelery",
			OccurredAt: time.UnixMilli(1700000000000).UTC(),
		}

		encodedData, err := serde.Encode(v1)
		require.NoError(t, err)
		require.Greater(t, len(encodedData), 5)
		assert.Equal(t, byte(0), encodedData[0], "registry magic byte")

		var v2 schema.ProductChangeV1
		err = serde.Decode(encodedData, &v2)
		require.NoError(t, err)

		assert.Equal(t, v1.Action, v2.Action)
		assert.Equal(t, v1.ProductID, v2.ProductID)
		assert.Equal(t, v1.Title, v2.Title)
		assert.Equal(t, v1.Price, v2.Price)
		assert.Equal(t, v1.Category, v2.Category)
	})
}

func TestPlainSerde(t *testing.T) {
	serde := schema.NewPlainSerde(schema.ProductV1Avro())

	v1 := schema.ProductV1{ID: 1, Title: "A", Price: 10, Category: "x"}
	data, err := serde.Encode(v1)
	require.NoError(t, err)

	var v2 schema.ProductV1
	require.NoError(t, serde.Decode(data, &v2))
	assert.Equal(t, v1, v2)
}
