package cache

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

// initStores creates a clean long-term and short-term store on the shared
// container, mirroring the two tier setup of production.
func initStores(t *testing.T) (*database.Store, *database.Store) {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")

	longTerm, err := database.NewStore(helper.NewTestDatabase(dbConfig.WithDatabase("recaller_longterm")), 384, false)
	require.NoError(t, err, "failed to create long-term store")
	shortTerm, err := database.NewStore(helper.NewTestDatabase(dbConfig.WithDatabase("recaller_shortterm")), 384, false)
	require.NoError(t, err, "failed to create short-term store")

	ctx := context.Background()
	require.NoError(t, longTerm.Maintenance.WipeStore(ctx), "failed to wipe long-term store")
	require.NoError(t, shortTerm.Maintenance.WipeStore(ctx), "failed to wipe short-term store")

	return longTerm, shortTerm
}
