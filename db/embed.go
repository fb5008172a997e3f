// Package db provides the embedded ledger schema and the demo catalog.
package db

import _ "embed"

// Schema contains the DDL statements for the order ledger tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// Catalog is the demo catalog loaded by the seed endpoint and shopctl.
//
//go:embed seed/catalog.json
var Catalog []byte
