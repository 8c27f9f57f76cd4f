package driver

import (
	"context"
	"fmt"
	"log"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/config"
)

type MemgraphDriver struct {
	Driver neo4j.DriverWithContext
}

// NewMemgraphDriver connects over bolt. maxConns bounds the driver's
// connection pool; zero keeps the driver default.
func NewMemgraphDriver(ctx context.Context, uri, username, password string, maxConns int) (*MemgraphDriver, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""), func(c *config.Config) {
		if maxConns > 0 {
			c.MaxConnectionPoolSize = maxConns
		}
	})
	if err != nil {
		return nil, err
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}

	log.Printf("connected to memgraph uri=%s max_connections=%d", uri, maxConns)
	return &MemgraphDriver{Driver: driver}, nil
}

func (d *MemgraphDriver) Close(ctx context.Context) error {
	return d.Driver.Close(ctx)
}

func (d *MemgraphDriver) ExecuteQuery(ctx context.Context, query string, params map[string]interface{}) (neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, d.Driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return neo4j.EagerResult{}, fmt.Errorf("failed to execute query: %w", err)
	}
	return *result, nil
}

func (d *MemgraphDriver) BuildIndices(ctx context.Context) error {
	queries := []string{
		"CREATE CONSTRAINT ON (n:TimeNode) ASSERT n.id IS UNIQUE;",
		"CREATE CONSTRAINT ON (s:Scenario) ASSERT s.id IS UNIQUE;",
		"CREATE INDEX ON :TimeNode(id);",
		"CREATE INDEX ON :TimeNode(scenario_id);",
		"CREATE INDEX ON :Scenario(id);",
	}

	for _, q := range queries {
		if _, err := d.ExecuteQuery(ctx, q, nil); err != nil {
			// Already existing constraints and indices report an error.
			log.Printf("Warning: failed to create index '%s': %v", q, err)
		}
	}
	return nil
}
