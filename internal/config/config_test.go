package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const sample = `
distribution {
  name: "unstable"
  archive: "http://deb.debian.org/debian"
  component: "main"
  component: "contrib"
}
campaign {
  name: "lintian-fixes"
  command: "lintian-brush"
  publish_mode: "propose"
  bucket: "default"
}
apt_repository {
  name: "janitor"
  component: "main"
  architecture: "amd64"
  signing_key_id: "ABCDEF"
}
runner {
  run_timeout: "60m"
  listen_address: ":8080"
}
publisher {
  proposal_refresh_interval: "168h"
  max_mps_per_bucket {
    key: "default"
    value: 5
  }
}
`

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "janitor.conf")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Distribution, 1)
	require.Equal(t, []string{"main", "contrib"}, cfg.Distribution[0].Component)

	campaign, ok := cfg.GetCampaign("lintian-fixes")
	require.True(t, ok)
	require.Equal(t, "propose", campaign.PublishMode)

	repo, ok := cfg.GetAptRepository("janitor")
	require.True(t, ok)
	require.Equal(t, "ABCDEF", repo.SigningKeyID)

	require.Equal(t, 60*time.Minute, cfg.Runner.RunTimeout)
	require.Equal(t, 5, cfg.Publisher.MaxMPsPerBucket["default"])
}

func TestGetDistributionMissing(t *testing.T) {
	cfg := &Config{}
	_, ok := cfg.GetDistribution("nope")
	require.False(t, ok)
}
