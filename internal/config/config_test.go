package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleYAML = `
server:
  port: 8080
app:
  baseUrl: https://app.example.com
database:
  driver: postgres
  host: db.internal
  port: 5432
  user: temukan
  password: secret
  name: temukan
minio:
  endpoint: minio.internal:9000
  accessKey: ak
  secretKey: sk
  bucketName: evidence
  region: ap-southeast-1
  useSSL: true
reid:
  endpoint: http://reid.internal:8000
  threshold: 0.7
  topN: 10
  requestTimeoutSeconds: 300
mail:
  apiKey: SG.test
  fromEmail: noreply@example.com
  fromName: Temukan
ai:
  apiKey: sk-test
  model: gpt-4o-mini
auth:
  apiKeys:
    dashboard: key-123
`

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Fatalf("server port = %d", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" {
		t.Fatalf("driver = %q", cfg.Database.Driver)
	}
	if cfg.Reid.Endpoint != "http://reid.internal:8000" || cfg.Reid.TopN != 10 {
		t.Fatalf("reid section decoded wrong: %+v", cfg.Reid)
	}
	if cfg.Reid.Threshold != 0.7 {
		t.Fatalf("threshold = %v", cfg.Reid.Threshold)
	}
	if cfg.Auth.APIKeys["dashboard"] != "key-123" {
		t.Fatalf("api keys decoded wrong: %v", cfg.Auth.APIKeys)
	}
	if cfg.App.BaseURL != "https://app.example.com" {
		t.Fatalf("base url = %q", cfg.App.BaseURL)
	}
}

func TestLoadDefaultsDriver(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, "server:\n  port: 9000\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Driver != "mysql" {
		t.Fatalf("driver should default to mysql, got %q", cfg.Database.Driver)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDSNHelpers(t *testing.T) {
	cfg, err := Load(writeTempConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	mysql := cfg.MySQLDSN()
	if mysql != "temukan:secret@tcp(db.internal:5432)/temukan?parseTime=true&charset=utf8mb4&loc=UTC" {
		t.Fatalf("mysql dsn = %q", mysql)
	}

	pg := cfg.PostgresDSN()
	if pg != "host=db.internal port=5432 user=temukan password=secret dbname=temukan sslmode=disable" {
		t.Fatalf("postgres dsn = %q", pg)
	}
}
