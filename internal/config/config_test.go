package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  driver: postgres
  host: db
  port: 5432
  user: dosage
  password: secret
  name: dosage
  ssl_mode: disable
`))
	require.NoError(t, err)

	assert.Equal(t, "BIZ_", cfg.Import.TablePrefix)
	assert.Equal(t, "DailyDosage", cfg.Import.DailyTable)
	assert.Equal(t, "usp_cleanBizTable", cfg.Import.CleanupProcedure)
	assert.Equal(t, "usp_initBizData", cfg.Import.PostLoadProcedure)
	assert.Equal(t, 1, cfg.Workers.Ingestion.Count)
	assert.Equal(t, 24*time.Hour, cfg.Workers.Export.Lookback)
	assert.Equal(t, "postgres://dosage:secret@db:5432/dosage?sslmode=disable", cfg.DatabaseDSN())
}

func TestParseMySQLDSN(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  driver: mysql
  host: localhost
  port: 3306
  user: root
  password: pw
  name: dosage
redis:
  host: cache
  port: 6379
`))
	require.NoError(t, err)

	assert.Equal(t, "root:pw@tcp(localhost:3306)/dosage?charset=utf8mb4&parseTime=true&loc=Local&multiStatements=true", cfg.DatabaseDSN())
	assert.Equal(t, "cache:6379", cfg.RedisAddr())
}

func TestParseSQLiteProcedures(t *testing.T) {
	cfg, err := Parse([]byte(`
database:
  driver: sqlite
  path: /var/lib/dosage.db
  procedures:
    usp_initBizData: "INSERT INTO audit (n) VALUES (1)"
`))
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/dosage.db", cfg.DatabaseDSN())
	assert.Contains(t, cfg.Database.Procedures, "usp_initBizData")
}

func TestParseRejectsInvalidSettings(t *testing.T) {
	_, err := Parse([]byte("database:\n  driver: oracle\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("workers:\n  export:\n    run_at: \"25:99\"\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("import:\n  daily_table: \"\"\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("database: [unterminated"))
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("DOSAGE_DB_PASSWORD", "from-env")
	t.Setenv("DOSAGE_MAPPING_PATH", "/etc/dosage/mapping.yaml")

	cfg, err := Parse([]byte("database:\n  password: from-file\n"))
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Password)
	assert.Equal(t, "/etc/dosage/mapping.yaml", cfg.Import.MappingPath)
}

func TestLoadReadsConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: dosage-test\n"), 0o644))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(wd) })

	t.Setenv("CONFIG_PATH", path)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dosage-test", cfg.App.Name)
}
