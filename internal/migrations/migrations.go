package migrations

import (
	"fmt"
	"os"
	"path/filepath"
)

const initialSchemaFile = "001_initial_schema.sql"

// MigrationsDir locates the SQL schema files relative to the working
// directory. Package tests run two levels below the repo root, so lookups
// also climb upward; the main binary may override this with an absolute path.
var MigrationsDir = filepath.Join("scripts", "migrations")

// GetInitialSchema reads the initial schema, trying the configured directory
// first and then its parent locations.
func GetInitialSchema() (string, error) {
	for _, dir := range searchDirs() {
		content, err := os.ReadFile(filepath.Join(dir, initialSchemaFile))
		if err == nil {
			return string(content), nil
		}
	}
	return "", fmt.Errorf("schema file %s not found under %s or parent directories", initialSchemaFile, MigrationsDir)
}

func searchDirs() []string {
	return []string{
		MigrationsDir,
		filepath.Join("..", "..", MigrationsDir),
		filepath.Join("..", MigrationsDir),
	}
}
