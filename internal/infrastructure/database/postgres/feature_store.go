package postgres

import (
	"github.com/turtacn/padel-featurizer/internal/infrastructure/store"
)

// NewFeatureStore stores rows in padel_features.  Closing the store closes
// the connection.
func NewFeatureStore(conn *Connection) *store.SQLStore {
	return store.NewSQLStore(conn.DB(), store.PostgresDialect, conn, conn.logger)
}

//Personal.AI order the ending
