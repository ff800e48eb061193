package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHCL = `
interface = "eth0"
lease_type = "file"
lease_store = "/var/lib/dhcp4c"
requested_parameters = [1, 3, 6, 15]

timeouts {
  rebooting  = 10
  requesting = 30
}

retransmission {
  wait_first = 4.0
  wait_max   = 32.0
  factor     = 2.0
}

hook "bound" {
  command = "/etc/dhcp4c/bound.sh"
  args    = ["-v"]
}

write_pidfile = true
release       = true
`

func TestLoadConfigFromBytesDecodesTopLevelAttributes(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)
	assert.Equal(t, "eth0", cf.Config.Interface)
	assert.Equal(t, "file", cf.Config.LeaseType)
	assert.Equal(t, "/var/lib/dhcp4c", cf.Config.LeaseStore)
	assert.Len(t, cf.Config.RequestedParameters, 4)
}

func TestLoadConfigFromBytesDecodesNestedBlocks(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	require.NotNil(t, cf.Config.Timeouts)
	assert.Equal(t, 10, cf.Config.Timeouts.Rebooting)
	assert.Equal(t, 30, cf.Config.Timeouts.Requesting)

	require.NotNil(t, cf.Config.Retransmitter)
	assert.Equal(t, 4.0, cf.Config.Retransmitter.WaitFirst)
	assert.Equal(t, 32.0, cf.Config.Retransmitter.WaitMax)
	assert.Equal(t, 2.0, cf.Config.Retransmitter.Factor)

	require.Len(t, cf.Config.Hooks, 1)
	hook := cf.Config.Hooks[0]
	assert.Equal(t, "bound", hook.Trigger)
	assert.Equal(t, "/etc/dhcp4c/bound.sh", hook.Command)
	assert.Equal(t, []string{"-v"}, hook.Args)
}

func TestLoadConfigFromBytesRejectsMissingInterface(t *testing.T) {
	bad := `lease_type = "memory"`
	_, err := LoadConfigFromBytes("bad.hcl", []byte(bad))
	assert.Error(t, err, "interface is a required attribute")
}

func TestLoadConfigFromBytesRejectsSyntaxError(t *testing.T) {
	bad := `interface = "eth0`
	_, err := LoadConfigFromBytes("bad.hcl", []byte(bad))
	assert.Error(t, err, "unterminated string is a parse error")
}

func TestSaveToWritesFileAndUpdatesPath(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "nested", "dhcp4c.hcl")
	require.NoError(t, cf.SaveTo(dst))
	assert.Equal(t, dst, cf.Path)

	reloaded, err := LoadConfigFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "eth0", reloaded.Config.Interface)
}

func TestSaveToBacksUpExistingFile(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	dst := filepath.Join(t.TempDir(), "dhcp4c.hcl")
	require.NoError(t, cf.SaveTo(dst))
	require.NoError(t, cf.SetAttribute("write_pidfile", false))
	require.NoError(t, cf.SaveTo(dst))

	_, err = LoadConfigFile(dst + ".bak")
	assert.NoError(t, err, "expected a .bak backup of the first save")
}

func TestGetSectionReturnsLabeledBlock(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	section, err := cf.GetSection("hook", []string{"bound"})
	require.NoError(t, err)
	assert.NotEmpty(t, section)
}

func TestGetSectionMissingReturnsError(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	_, err = cf.GetSection("hook", []string{"expired"})
	assert.Error(t, err)
}

func TestSetSectionAppendsNewHook(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	newHook := `hook "expired" {
  command = "/etc/dhcp4c/expired.sh"
}`
	require.NoError(t, cf.SetSection("hook", []string{"expired"}, newHook))
	assert.Len(t, cf.Config.Hooks, 2)
}

func TestSetSectionReplacesExistingHook(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	replacement := `hook "bound" {
  command = "/etc/dhcp4c/new-bound.sh"
}`
	require.NoError(t, cf.SetSection("hook", []string{"bound"}, replacement))
	require.Len(t, cf.Config.Hooks, 1)
	assert.Equal(t, "/etc/dhcp4c/new-bound.sh", cf.Config.Hooks[0].Command)
}

func TestSetSectionRejectsTypeMismatch(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	mismatched := `timeouts {
  rebooting = 5
}`
	err = cf.SetSection("hook", []string{"x"}, mismatched)
	assert.Error(t, err, "block type does not match requested type")
}

func TestRemoveSectionDropsHook(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	require.NoError(t, cf.RemoveSection("hook", []string{"bound"}))
	assert.Empty(t, cf.Config.Hooks)
}

func TestRemoveSectionMissingReturnsError(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	err = cf.RemoveSection("hook", []string{"does-not-exist"})
	assert.Error(t, err)
}

func TestListSectionsReportsBlockTypesAndLabels(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	found := map[string]string{}
	for _, s := range cf.ListSections() {
		found[s.Type] = s.Label
	}
	assert.Contains(t, found, "timeouts")
	assert.Equal(t, "bound", found["hook"])
}

func TestHasChangesFalseBeforeEdits(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)
	assert.False(t, cf.HasChanges())
}

func TestHasChangesTrueAfterSetAttribute(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	require.NoError(t, cf.SetAttribute("write_pidfile", false))
	assert.True(t, cf.HasChanges())
	assert.False(t, cf.Config.WritePidfile)
}

func TestDiffEmptyWhenUnmodified(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)
	assert.Empty(t, cf.Diff())
}

func TestDiffNonEmptyAfterModification(t *testing.T) {
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)

	require.NoError(t, cf.SetAttribute("write_pidfile", false))
	diff := cf.Diff()
	assert.NotEmpty(t, diff)
	assert.Contains(t, diff, "---")
	assert.Contains(t, diff, "+++")
}

func TestReloadDiscardsInMemoryChanges(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "dhcp4c.hcl")
	cf, err := LoadConfigFromBytes("test.hcl", []byte(sampleHCL))
	require.NoError(t, err)
	require.NoError(t, cf.SaveTo(dst))

	require.NoError(t, cf.SetAttribute("write_pidfile", false))
	require.True(t, cf.HasChanges())

	require.NoError(t, cf.Reload())
	assert.True(t, cf.Config.WritePidfile, "Reload should restore the on-disk value")
}

func TestValidateHCLAcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, ValidateHCL(sampleHCL))
}

func TestValidateHCLRejectsSchemaViolation(t *testing.T) {
	bad := `lease_type = "memory"`
	assert.Error(t, ValidateHCL(bad))
}

func TestFormatHCLRejectsInvalidSyntax(t *testing.T) {
	_, err := FormatHCL(`interface = "eth0`)
	assert.Error(t, err)
}

func TestFormatHCLReturnsFormattedSource(t *testing.T) {
	out, err := FormatHCL(`interface="eth0"`)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestNewConfigFileStartsWithoutChanges(t *testing.T) {
	cfg := DefaultClientConfig("eth0")
	cf := NewConfigFile(filepath.Join(t.TempDir(), "dhcp4c.hcl"), cfg)
	assert.Equal(t, "eth0", cf.Config.Interface)
	assert.False(t, cf.HasChanges())
}

func TestDefaultClientConfigMatchesDocumentedDefaults(t *testing.T) {
	cfg := DefaultClientConfig("eth0")
	assert.Equal(t, "memory", cfg.LeaseType)
	assert.Equal(t, 30, cfg.Timeouts.Requesting)
	assert.Equal(t, 10, cfg.Timeouts.Rebooting)
	assert.Equal(t, 4.0, cfg.Retransmitter.WaitFirst)
	assert.Equal(t, 32.0, cfg.Retransmitter.WaitMax)
	assert.Equal(t, 2.0, cfg.Retransmitter.Factor)
	assert.True(t, cfg.Release)
	assert.False(t, cfg.WritePidfile)
}

func TestDefaultRequestedParametersContainsCoreOptions(t *testing.T) {
	params := DefaultRequestedParameters()
	want := map[int]bool{1: true, 3: true, 6: true, 15: true, 28: true, 51: true, 58: true, 59: true}
	assert.Len(t, params, len(want))
	for _, p := range params {
		assert.True(t, want[p], "unexpected parameter code %d", p)
	}
}

func TestParseHCLWithDiagnosticsReportsSyntaxError(t *testing.T) {
	diags, err := ParseHCLWithDiagnostics(`interface = "eth0`)
	assert.Error(t, err)
	require.NotEmpty(t, diags)
	assert.Equal(t, "error", diags[0].Severity)
}

func TestParseHCLWithDiagnosticsAcceptsWellFormedHCL(t *testing.T) {
	_, err := ParseHCLWithDiagnostics(sampleHCL)
	assert.NoError(t, err)
}
