package wisun

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed profiles.yaml
var profilesYAML []byte

// ChannelPlan describes one regulatory operating class within a domain:
// base channel frequency, channel spacing and count, as advertised in the
// PHY configuration IE and consumed by the FHSS schedule (§4.3).
type ChannelPlan struct {
	Class        uint8 `yaml:"class"`
	Ch0KHz       uint32 `yaml:"ch0_khz"`
	SpacingKHz   uint32 `yaml:"spacing_khz"`
	ChannelCount uint16 `yaml:"channel_count"`
}

// OperatingMode describes one PHY mode ID's bitrate/modulation, as carried
// in the PHY mode IE.
type OperatingMode struct {
	Mode        uint8  `yaml:"mode"`
	PhyModeID   uint8  `yaml:"phy_mode_id"`
	Description string `yaml:"description"`
}

// Domain is one FAN regulatory domain's channel plans and PHY modes.
type Domain struct {
	Domain      string          `yaml:"domain"`
	Description string          `yaml:"description"`
	Classes     []ChannelPlan   `yaml:"classes"`
	Modes       []OperatingMode `yaml:"modes"`
}

// SizePreset is a named network-size default for the PA/PC trickle timer
// parameters a freshly created configuration should start from (§4.4).
type SizePreset struct {
	Name     string `yaml:"name"`
	PAIminS  uint32 `yaml:"pa_imin_s"`
	PAImaxS  uint32 `yaml:"pa_imax_s"`
	PCIminS  uint32 `yaml:"pc_imin_s"`
	PCImaxS  uint32 `yaml:"pc_imax_s"`
	K        uint8  `yaml:"k"`
}

// ProfileTable is the parsed static regulatory/size defaults table,
// loaded once from the embedded YAML asset.
type ProfileTable struct {
	Domains []Domain     `yaml:"domains"`
	Sizes   []SizePreset `yaml:"sizes"`
}

var defaultProfiles = func() *ProfileTable {
	t, err := ParseProfileTable(profilesYAML)
	if err != nil {
		panic("wisun: embedded profiles.yaml failed to parse: " + err.Error())
	}
	return t
}()

// ParseProfileTable decodes a profile table document, the same shape as
// the embedded default; callers can load an operator-supplied override
// with this instead of DefaultProfiles.
func ParseProfileTable(data []byte) (*ProfileTable, error) {
	var t ProfileTable
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("wisun: parsing profile table: %w", err)
	}
	return &t, nil
}

// DefaultProfiles returns the built-in FAN domain/class/mode and network
// size presets table.
func DefaultProfiles() *ProfileTable { return defaultProfiles }

// Domain looks up a regulatory domain by its letter code (e.g. "NA", "EU").
func (t *ProfileTable) Domain(code string) (Domain, bool) {
	for _, d := range t.Domains {
		if d.Domain == code {
			return d, true
		}
	}
	return Domain{}, false
}

// ChannelPlan looks up a domain's channel plan for a given operating class.
func (d Domain) ChannelPlan(class uint8) (ChannelPlan, bool) {
	for _, c := range d.Classes {
		if c.Class == class {
			return c, true
		}
	}
	return ChannelPlan{}, false
}

// Size looks up a named network-size preset (SMALL/MEDIUM/LARGE/...).
func (t *ProfileTable) Size(name string) (SizePreset, bool) {
	for _, s := range t.Sizes {
		if s.Name == name {
			return s, true
		}
	}
	return SizePreset{}, false
}

// ChannelFreqKHz returns the center frequency of channel index ch within
// this plan, per the linear spacing FAN channel plans use.
func (c ChannelPlan) ChannelFreqKHz(ch uint16) (uint32, error) {
	if ch >= c.ChannelCount {
		return 0, fmt.Errorf("wisun: channel %d out of range (plan has %d channels)", ch, c.ChannelCount)
	}
	return c.Ch0KHz + uint32(ch)*c.SpacingKHz, nil
}
