package config

// ServerConfig configures the "serve" command's HTTP façade.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}
