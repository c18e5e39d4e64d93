package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const defaultConfigYAML = `# tasktimer config
# Priority: CLI flag > TASKTIMER_* env var > this file > default.

server:
  host: "0.0.0.0"
  port: 8080
  read_timeout: 15s
  write_timeout: 15s
  idle_timeout: 60s
  shutdown_timeout: 30s

database:
  driver: "postgres"        # postgres | sqlite
  host: "localhost"
  port: 5432
  user: "tasktimer"
  password: "tasktimer"
  name: "tasktimer"
  sslmode: "disable"
  sqlite_path: "tasktimer.db"

logger:
  level: "info"             # debug | info | warn | error
  encoding: "console"       # console | json
  output_paths: ["stdout"]
  error_output_paths: ["stderr"]

session:
  store: "memory"           # memory | redis
  ttl: 24h

redis:
  addr: "localhost:6379"
  db: 0

events:
  enabled: false
  brokers: ["localhost:9092"]
  topic: "task.transitions"

telemetry:
  service_name: "tasktimer"
  # otel_endpoint: "localhost:4318"  # uncomment to enable OpenTelemetry tracing

features:
  enable_locks: true
  request_id_header: "X-Request-ID"
  enable_request_logging: true
  enable_metrics: true

auth:
  api_key: ""
  user_header: "X-User-ID"
  allowed_origins: ["http://localhost:3000"]
`

// newInitCmd returns an "init" subcommand that writes a default config file
// to --config, or to ./config/config.yaml.
func newInitCmd(defaultYAML string) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write the default configuration.

If --config is given the file is written to that path.
Otherwise it is written to ./config/config.yaml.
Fails if the file already exists unless --force is passed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest := cfgFile
			if dest == "" {
				dest = defaultConfigPaths[0]
			}

			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("mkdir: %w", err)
			}

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", dest, err)
				}
			}

			if err := os.WriteFile(dest, []byte(defaultYAML), 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}
