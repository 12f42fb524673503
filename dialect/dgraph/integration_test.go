//go:build integration

package dgraph_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/syssam/velograph"
	"github.com/syssam/velograph/client"
	"github.com/syssam/velograph/compiler"
	"github.com/syssam/velograph/dialect"
	"github.com/syssam/velograph/dialect/dgraph"
	"github.com/syssam/velograph/internal/testschema"
	"github.com/syssam/velograph/migrate"
)

const image = "dgraph/standalone:v23.1.1"

// startDgraph runs a standalone alpha and returns a driver connected to it.
func startDgraph(t *testing.T) *dgraph.Driver {
	t.Helper()
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{"9080/tcp", "8080/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("9080/tcp"),
				wait.ForHTTP("/health").WithPort("8080/tcp").WithStartupTimeout(2*time.Minute),
			),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9080")
	require.NoError(t, err)
	drv, err := dgraph.Open(ctx, fmt.Sprintf("%s:%s", host, port.Port()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	require.NoError(t, drv.Alter(ctx, dialect.Operation{DropAll: true}))
	return drv
}

func TestIntegration(t *testing.T) {
	drv := startDgraph(t)
	ctx := context.Background()
	reg := testschema.MustNew()

	c, err := client.New(drv, reg)
	require.NoError(t, err)
	require.NoError(t, c.ApplySchema(ctx))

	t.Run("PullMatchesCompiled", func(t *testing.T) {
		pulled, err := compiler.Pull(ctx, drv)
		require.NoError(t, err)
		compiled := compiler.MustCompile(reg)
		assert.Equal(t, compiled.StoreText(), pulled.Text())
	})

	t.Run("SaveGet", func(t *testing.T) {
		acme := &testschema.Company{Name: "Acme"}
		alice := &testschema.Person{Name: "Alice", Age: 30, WorksFor: acme}
		require.NoError(t, c.Save(ctx, alice))
		require.True(t, alice.UID.IsConcrete())
		require.True(t, acme.UID.IsConcrete())

		var got testschema.Person
		require.NoError(t, c.Get(ctx, alice.UID, &got))
		assert.Equal(t, "Alice", got.Name)
		require.NotNil(t, got.WorksFor)
		assert.Equal(t, acme.UID, got.WorksFor.UID)

		require.NoError(t, c.Delete(ctx, alice.UID))
		assert.True(t, velograph.IsNotFound(c.Get(ctx, alice.UID, &got)))
	})

	t.Run("Migrate", func(t *testing.T) {
		eng, err := migrate.NewEngine(drv, reg)
		require.NoError(t, err)
		set := migrate.NewSet(&migrate.Migration{
			Name:        "20240101000000_people",
			GeneratedAt: time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
			Up:          func(b *migrate.Builder) { migrate.SetType[testschema.Person](b) },
		})
		applied, err := eng.Apply(ctx, set)
		require.NoError(t, err)
		assert.Equal(t, []string{"20240101000000_people"}, applied)
		st, err := eng.Status(ctx, set)
		require.NoError(t, err)
		assert.Equal(t, migrate.Applied, st[0].State)
	})
}
