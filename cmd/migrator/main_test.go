package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseURL(t *testing.T) {
	got, err := databaseURL("postgres://u:p@localhost:5432/inventory?sslmode=disable")
	require.NoError(t, err)
	assert.Equal(t, "pgx5://u:p@localhost:5432/inventory?sslmode=disable", got)

	_, err = databaseURL("mysql://localhost/db")
	assert.Error(t, err)
}
