package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/trip-control-api/pkg/errors"
)

func TestDescribeFlattensFieldErrors(t *testing.T) {
	err := describe(appErrors.Validation("invalid trips",
		appErrors.FieldError{Field: "viagens[0].idOrigem", Message: "required"},
		appErrors.FieldError{Field: "viagens[2].sentido", Message: "unknown direction"},
	))
	assert.EqualError(t, err, "invalid trips\n  viagens[0].idOrigem: required\n  viagens[2].sentido: unknown direction")

	plain := errors.New("boom")
	assert.Same(t, plain, describe(plain))
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"migrate", "up"},
		{"migrate", "status"},
		{"user", "create"},
		{"user", "disable"},
		{"user", "enable"},
		{"user", "list"},
		{"reconcile"},
		{"import", "transdata"},
		{"import", "globus"},
		{"archive", "prune"},
		{"archive", "list"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	flag := importGlobusCmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, "f", flag.Shorthand)
}
