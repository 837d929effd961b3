// Package migrations embeds the SQL migration files for the order-intake
// schema so both cmd/migrate and testutil's integration test harness can
// discover them without relying on a filesystem path at runtime.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
