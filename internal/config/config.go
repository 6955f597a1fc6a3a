// Package config loads janitord's static configuration: a text-format
// protocol-buffer message with repeated distribution, campaign and
// apt_repository submessages (spec.md §6), parsed with
// google.golang.org/protobuf/encoding/prototext against a dynamicpb
// message built from a hand-built FileDescriptorProto (descriptor.go),
// since janitord ships no .proto file for protoc-gen-go to compile. The
// Go structs below mirror what protoc-gen-go would have emitted for that
// schema; textproto.go copies the parsed dynamicpb.Message onto them.
package config

import (
	"fmt"
	"os"
	"time"
)

// Config is the root configuration message.
type Config struct {
	Distribution  []*Distribution  `protobuf:"distribution"`
	Campaign      []*Campaign      `protobuf:"campaign"`
	AptRepository []*AptRepository `protobuf:"apt_repository"`
	Runner        *RunnerConfig    `protobuf:"runner"`
	Publisher     *PublisherConfig `protobuf:"publisher"`
}

// Distribution describes one sbuild-able Debian distribution target.
type Distribution struct {
	Name              string   `protobuf:"name"`
	Archive            string  `protobuf:"archive"`
	Component          []string `protobuf:"component"`
	ExtraAptRepository []string `protobuf:"extra_apt_repository"`
}

// Campaign mirrors model.Campaign plus scheduling knobs not needed at
// runtime by other packages.
type Campaign struct {
	Name        string `protobuf:"name"`
	Command     string `protobuf:"command"`
	PublishMode string `protobuf:"publish_mode"`
	Bucket      string `protobuf:"bucket"`
}

// AptRepository is one generated APT suite.
type AptRepository struct {
	Name         string   `protobuf:"name"`
	Component    []string `protobuf:"component"`
	Architecture []string `protobuf:"architecture"`
	SigningKeyID string   `protobuf:"signing_key_id"`
}

// RunnerConfig configures the runner service.
type RunnerConfig struct {
	RunTimeout     time.Duration `protobuf:"run_timeout"`
	ListenAddress  string        `protobuf:"listen_address"`
}

// PublisherConfig configures the publish pipeline.
type PublisherConfig struct {
	ProposalRefreshInterval time.Duration `protobuf:"proposal_refresh_interval"`
	MaxMPsPerBucket         map[string]int `protobuf:"max_mps_per_bucket"`
}

// GetDistribution looks up a distribution by name.
func (c *Config) GetDistribution(name string) (*Distribution, bool) {
	for _, d := range c.Distribution {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// GetCampaign looks up a campaign by name.
func (c *Config) GetCampaign(name string) (*Campaign, bool) {
	for _, cmp := range c.Campaign {
		if cmp.Name == name {
			return cmp, true
		}
	}
	return nil, false
}

// GetAptRepository looks up an APT repository by name.
func (c *Config) GetAptRepository(name string) (*AptRepository, bool) {
	for _, r := range c.AptRepository {
		if r.Name == name {
			return r, true
		}
	}
	return nil, false
}

// Load parses a text-format configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := unmarshalText(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}
