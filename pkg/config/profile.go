package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DeploymentProfile is an institution-specific policy overlay loaded from
// YAML. Environment variables configure the process; profiles configure
// the deployment's audit policy.
type DeploymentProfile struct {
	Name       string          `yaml:"name" json:"name"`
	Code       string          `yaml:"code" json:"code"`
	Signing    SigningPolicy   `yaml:"signing" json:"signing"`
	Retention  RetentionPolicy `yaml:"retention" json:"retention"`
	Verify     VerifyPolicy    `yaml:"verify" json:"verify"`
	Compliance []string        `yaml:"compliance,omitempty" json:"compliance,omitempty"`
}

// SigningPolicy controls block signing for a deployment.
type SigningPolicy struct {
	Required        bool `yaml:"required" json:"required"`
	KeyRotationDays int  `yaml:"key_rotation_days" json:"key_rotation_days"`
}

// RetentionPolicy defines how long audit blocks must be kept. The chain
// itself is append-only; retention governs archival exports, not deletion.
type RetentionPolicy struct {
	AuditLogDays int `yaml:"audit_log_days" json:"audit_log_days"`
	ExportDays   int `yaml:"export_days,omitempty" json:"export_days,omitempty"`
}

// VerifyPolicy controls scheduled chain verification.
type VerifyPolicy struct {
	IntervalMinutes int `yaml:"interval_minutes" json:"interval_minutes"`
	WindowBlocks    int `yaml:"window_blocks" json:"window_blocks"`
}

// ApplyProfile overlays a deployment profile onto environment
// configuration. Profiles tighten policy: required signing overrides
// LEDGER_SIGNING_DISABLED, and the verify window fills in only when no
// explicit limit was set.
func (c *Config) ApplyProfile(p *DeploymentProfile) {
	if p.Signing.Required {
		c.SigningEnabled = true
	}
	if c.VerifyLimit == 0 && p.Verify.WindowBlocks > 0 {
		c.VerifyLimit = p.Verify.WindowBlocks
	}
}

// LoadProfile loads a deployment profile YAML by code. It searches the
// profiles directory for profile_<code>.yaml.
func LoadProfile(profilesDir, code string) (*DeploymentProfile, error) {
	code = strings.ToLower(code)
	path := filepath.Join(profilesDir, fmt.Sprintf("profile_%s.yaml", code))

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load profile %q: %w", code, err)
	}

	var profile DeploymentProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", code, err)
	}

	if profile.Code == "" {
		profile.Code = code
	}
	return &profile, nil
}
