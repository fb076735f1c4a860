package graph

import (
	"context"
	"log"
	"testing"

	"github.com/siherrmann/recaller/database"
	"github.com/siherrmann/recaller/helper"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

var dbPort string

func TestMain(m *testing.M) {
	var teardown func(ctx context.Context, opts ...testcontainers.TerminateOption) error
	var err error
	teardown, dbPort, err = helper.MustStartPostgresContainer()
	if err != nil {
		log.Fatalf("error starting postgres container: %v", err)
	}

	m.Run()

	if teardown != nil && teardown(context.Background()) != nil {
		log.Fatalf("error tearing down postgres container: %v", err)
	}
}

// initStore creates a clean store standing in for the authoritative tier.
func initStore(t *testing.T) *database.Store {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	store, err := database.NewStore(helper.NewTestDatabase(dbConfig), 384, false)
	require.NoError(t, err, "Expected NewStore to not return an error")

	err = store.Maintenance.WipeStore(context.Background())
	require.NoError(t, err, "Expected WipeStore to not return an error")

	return store
}
