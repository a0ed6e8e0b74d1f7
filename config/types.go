package config

import "time"

type AppConfig struct {
	DBDriver   string          `yaml:"db_driver" env:"KESTREL_DB_DRIVER" env-default:"sqlite"`
	DBURL      string          `yaml:"db_url" env:"KESTREL_DB_URL" env-default:"data/kestrel.db"`
	ListenAddr string          `yaml:"listen_addr" env:"KESTREL_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	AppEnv     string          `yaml:"app_env" env:"KESTREL_APP_ENV"`
	Reporting  ReportingConfig `yaml:"reporting"`
	Scheduler  SchedulerConfig `yaml:"scheduler"`
}

type ReportingConfig struct {
	TopCostLimit       int           `yaml:"top_cost_limit" env:"KESTREL_REPORTING_TOP_COST_LIMIT" env-default:"20"`
	AnalystMinResolved int           `yaml:"analyst_min_resolved" env:"KESTREL_REPORTING_ANALYST_MIN_RESOLVED" env-default:"5"`
	OpenIncidentPolicy string        `yaml:"open_incident_policy" env:"KESTREL_REPORTING_OPEN_INCIDENT_POLICY" env-default:"exclude"`
	Deadline           time.Duration `yaml:"deadline" env:"KESTREL_REPORTING_DEADLINE" env-default:"30s"`
}

type SchedulerConfig struct {
	Enabled  bool   `yaml:"enabled" env:"KESTREL_SCHEDULER_ENABLED" env-default:"true"`
	CronSpec string `yaml:"cron_spec" env:"KESTREL_SCHEDULER_CRON_SPEC" env-default:"@every 15m"`
}
