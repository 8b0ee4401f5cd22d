// Package migrations embeds battlescope's forward-only SQL migration files
// for pkg/migrations.Runner to load and apply in filename order.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
