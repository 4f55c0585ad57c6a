package config

// Watcher is implemented by anything that can supply live configuration
// revisions to the server.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}
