package config

import (
	"path"
	"strings"

	"git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// Validate checks structural invariants the rest of the system relies on.
//
// The critical one: every source owns a distinct destination subtree, so
// concurrent runs for different sources never write to the same paths.
func (c *Config) Validate() error {
	if c.Site.URL == "" {
		return errors.ConfigError("site.url is required").Build()
	}

	if len(c.Sources) == 0 {
		return errors.ConfigError("at least one source is required").Build()
	}

	names := make(map[string]bool, len(c.Sources))
	dests := make(map[string]string, len(c.Sources))

	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Name == "" {
			return errors.ConfigError("source name is required").Build()
		}
		if names[src.Name] {
			return errors.ConfigError("duplicate source name").
				WithContext("name", src.Name).Build()
		}
		names[src.Name] = true

		if src.URL == "" {
			return errors.ConfigError("source url is required").
				WithContext("name", src.Name).Build()
		}

		if err := validateDestination(src); err != nil {
			return err
		}

		switch src.Forge.Type {
		case ForgeGitHub, ForgeGitLab, ForgeForgejo:
			if src.Forge.FullName == "" {
				return errors.ConfigError("forge.full_name is required").
					WithContext("name", src.Name).Build()
			}
		case "":
			if src.Forge.WebhookSecret != "" {
				return errors.ConfigError("forge.type is required when a webhook secret is set").
					WithContext("name", src.Name).Build()
			}
		default:
			return errors.ConfigError("unsupported forge type").
				WithContext("name", src.Name).
				WithContext("type", string(src.Forge.Type)).Build()
		}

		// Destination nesting would let one source's cleanup delete
		// another source's files.
		for otherName, other := range dests {
			if isSubPath(src.Destination, other) || isSubPath(other, src.Destination) {
				return errors.ConfigError("source destinations overlap").
					WithContext("source_a", otherName).
					WithContext("source_b", src.Name).Build()
			}
		}
		dests[src.Name] = src.Destination
	}

	return nil
}

func validateDestination(src *Source) error {
	dest := src.Destination
	if dest == "" {
		return errors.ConfigError("source destination is required").
			WithContext("name", src.Name).Build()
	}
	if path.IsAbs(dest) {
		return errors.ConfigError("source destination must be relative").
			WithContext("name", src.Name).
			WithContext("destination", dest).Build()
	}
	clean := path.Clean(dest)
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return errors.ConfigError("source destination escapes the docs root").
			WithContext("name", src.Name).
			WithContext("destination", dest).Build()
	}
	return nil
}

func isSubPath(p, base string) bool {
	p = path.Clean(p)
	base = path.Clean(base)
	return p == base || strings.HasPrefix(p, base+"/")
}
