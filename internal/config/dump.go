package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

const redacted = "<redacted>"

// WriteYAML writes cfg as a YAML config file that Load accepts. The bot
// token and storage URI are redacted.
func WriteYAML(w io.Writer, cfg *Config) error {
	c := *cfg
	if c.Bot.Token != "" {
		c.Bot.Token = redacted
	}
	if c.Storage.URI != "" {
		c.Storage.URI = redacted
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}
