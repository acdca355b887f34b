package config

// ScheduleConfig names a graph file to run on a cron schedule. The serve
// command registers one robfig/cron/v3 entry per ScheduleConfig.
type ScheduleConfig struct {
	ID         string `yaml:"id"`
	Cron       string `yaml:"cron"`
	GraphPath  string `yaml:"graph"`
	Provider   string `yaml:"provider"`
	Checkpoint bool   `yaml:"checkpoint"`
}
