package credentials

// File is the on-disk shape of credentials.toml.
type File struct {
	Version   int                `toml:"version"`
	Providers map[string]APIKey `toml:"providers"`
}

// APIKey is one provider's stored secret.
type APIKey struct {
	Key string `toml:"api_key"`
}
