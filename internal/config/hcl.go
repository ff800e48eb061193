// Package config provides HCL configuration handling with comment preservation.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/zclconf/go-cty/cty"
)

// ConfigFile represents an HCL configuration file with preserved source.
// This allows round-trip editing while preserving comments and formatting
// when a hook is added or a timeout is tuned from a running client.
type ConfigFile struct {
	Path     string
	Config   *ClientConfig
	hclFile  *hclwrite.File
	original []byte
}

// LoadConfigFile loads an HCL config file, preserving the original source
// for round-trip editing with comments.
func LoadConfigFile(path string) (*ConfigFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return LoadConfigFromBytes(path, data)
}

// LoadConfigFromBytes loads config from bytes, preserving source for round-trip.
func LoadConfigFromBytes(filename string, data []byte) (*ConfigFile, error) {
	hclFile, diags := hclwrite.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL for writing: %s", diags.Error())
	}

	var cfg ClientConfig
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	return &ConfigFile{
		Path:     filename,
		Config:   &cfg,
		hclFile:  hclFile,
		original: data,
	}, nil
}

// Save writes the config back to disk, preserving comments where possible.
func (cf *ConfigFile) Save() error {
	return cf.SaveTo(cf.Path)
}

// SaveTo writes the config to a specific path.
func (cf *ConfigFile) SaveTo(path string) error {
	if _, err := os.Stat(path); err == nil {
		backupPath := path + ".bak"
		if err := copyFile(path, backupPath); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data := cf.hclFile.Bytes()
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	cf.Path = path
	cf.original = data
	return nil
}

// GetRawHCL returns the current HCL source as a string.
func (cf *ConfigFile) GetRawHCL() string {
	return string(cf.hclFile.Bytes())
}

// SetRawHCL replaces the entire config with new HCL source.
func (cf *ConfigFile) SetRawHCL(hclSource string) error {
	data := []byte(hclSource)

	newFile, diags := hclwrite.ParseConfig(data, cf.Path, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return fmt.Errorf("invalid HCL: %s", diags.Error())
	}

	var cfg ClientConfig
	if err := hclsimple.Decode(cf.Path, data, nil, &cfg); err != nil {
		return fmt.Errorf("HCL does not match config schema: %w", err)
	}

	cf.hclFile = newFile
	cf.Config = &cfg
	return nil
}

// GetSection returns the raw HCL for a labeled block, e.g. GetSection("hook", []string{"bound"}).
func (cf *ConfigFile) GetSection(blockType string, labels []string) (string, error) {
	body := cf.hclFile.Body()

	for _, block := range body.Blocks() {
		if block.Type() != blockType {
			continue
		}
		if labelsMatch(block.Labels(), labels) {
			return formatBlock(block), nil
		}
	}

	return "", fmt.Errorf("section %s %v not found", blockType, labels)
}

// SetSection replaces a labeled block with new HCL content, or appends it
// if no block with that type+labels exists yet.
func (cf *ConfigFile) SetSection(blockType string, labels []string, sectionHCL string) error {
	newBlock, err := parseBlock(sectionHCL, cf.Path)
	if err != nil {
		return fmt.Errorf("invalid section HCL: %w", err)
	}
	if newBlock.Type() != blockType {
		return fmt.Errorf("section type mismatch: expected %q, got %q", blockType, newBlock.Type())
	}

	body := cf.hclFile.Body()
	for _, block := range body.Blocks() {
		if block.Type() == blockType && labelsMatch(block.Labels(), labels) {
			body.RemoveBlock(block)
			break
		}
	}

	appendBlock(body, newBlock)
	return cf.reloadConfig()
}

// RemoveSection removes a labeled block.
func (cf *ConfigFile) RemoveSection(blockType string, labels []string) error {
	body := cf.hclFile.Body()

	for _, block := range body.Blocks() {
		if block.Type() == blockType && labelsMatch(block.Labels(), labels) {
			body.RemoveBlock(block)
			return cf.reloadConfig()
		}
	}

	return fmt.Errorf("section %s %v not found", blockType, labels)
}

// ListSections returns all top-level block types and their labels.
func (cf *ConfigFile) ListSections() []SectionInfo {
	var sections []SectionInfo
	body := cf.hclFile.Body()

	for _, block := range body.Blocks() {
		info := SectionInfo{Type: block.Type()}
		if labels := block.Labels(); len(labels) > 0 {
			info.Labels = labels
			info.Label = strings.Join(labels, " ")
		}
		sections = append(sections, info)
	}

	return sections
}

// SectionInfo describes a config section.
type SectionInfo struct {
	Type   string   `json:"type"`
	Labels []string `json:"labels,omitempty"`
	Label  string   `json:"label,omitempty"`
}

// ValidateHCL validates HCL source without modifying the config.
func ValidateHCL(hclSource string) error {
	data := []byte(hclSource)

	_, diags := hclwrite.ParseConfig(data, "validate.hcl", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return fmt.Errorf("syntax error: %s", diags.Error())
	}

	var cfg ClientConfig
	if err := hclsimple.Decode("validate.hcl", data, nil, &cfg); err != nil {
		return fmt.Errorf("schema error: %w", err)
	}

	return nil
}

// FormatHCL formats HCL source code.
func FormatHCL(hclSource string) (string, error) {
	data := []byte(hclSource)

	file, diags := hclwrite.ParseConfig(data, "format.hcl", hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return "", fmt.Errorf("invalid HCL: %s", diags.Error())
	}

	return string(file.Bytes()), nil
}

func (cf *ConfigFile) reloadConfig() error {
	data := cf.hclFile.Bytes()
	var cfg ClientConfig
	if err := hclsimple.Decode(cf.Path, data, nil, &cfg); err != nil {
		return fmt.Errorf("failed to reload config: %w", err)
	}
	cf.Config = &cfg
	return nil
}

// Helper functions

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func labelsMatch(have, want []string) bool {
	if len(have) != len(want) {
		return false
	}
	for i := range have {
		if have[i] != want[i] {
			return false
		}
	}
	return true
}

func formatBlock(block *hclwrite.Block) string {
	f := hclwrite.NewEmptyFile()
	appendBlock(f.Body(), block)
	return string(f.Bytes())
}

func parseBlock(hclSource, filename string) (*hclwrite.Block, error) {
	data := []byte(hclSource)

	file, diags := hclwrite.ParseConfig(data, filename, hcl.Pos{Line: 1, Column: 1})
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse error: %s", diags.Error())
	}

	blocks := file.Body().Blocks()
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no block found in HCL")
	}
	if len(blocks) > 1 {
		return nil, fmt.Errorf("expected single block, got %d", len(blocks))
	}

	return blocks[0], nil
}

func appendBlock(body *hclwrite.Body, src *hclwrite.Block) {
	newBlock := body.AppendNewBlock(src.Type(), src.Labels())
	srcBody := src.Body()
	dstBody := newBlock.Body()

	for name, attr := range srcBody.Attributes() {
		dstBody.SetAttributeRaw(name, attr.Expr().BuildTokens(nil))
	}

	for _, nested := range srcBody.Blocks() {
		appendBlock(dstBody, nested)
	}
}

// NewConfigFile creates a new empty config file.
func NewConfigFile(path string, cfg *ClientConfig) *ConfigFile {
	return &ConfigFile{
		Path:    path,
		Config:  cfg,
		hclFile: hclwrite.NewEmptyFile(),
	}
}

// SetAttribute sets a top-level attribute (e.g. write_pidfile = true).
func (cf *ConfigFile) SetAttribute(name string, value interface{}) error {
	body := cf.hclFile.Body()

	ctyVal, err := toCtyValue(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", name, err)
	}

	body.SetAttributeValue(name, ctyVal)
	return cf.reloadConfig()
}

func toCtyValue(v interface{}) (cty.Value, error) {
	switch val := v.(type) {
	case bool:
		return cty.BoolVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case int64:
		return cty.NumberIntVal(val), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case string:
		return cty.StringVal(val), nil
	case []int:
		if len(val) == 0 {
			return cty.ListValEmpty(cty.Number), nil
		}
		vals := make([]cty.Value, len(val))
		for i, n := range val {
			vals[i] = cty.NumberIntVal(int64(n))
		}
		return cty.ListVal(vals), nil
	case []string:
		if len(val) == 0 {
			return cty.ListValEmpty(cty.String), nil
		}
		vals := make([]cty.Value, len(val))
		for i, s := range val {
			vals[i] = cty.StringVal(s)
		}
		return cty.ListVal(vals), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported type: %T", v)
	}
}

// Diff returns a unified diff between the original and current HCL, empty
// if nothing has changed since load or the last Save.
func (cf *ConfigFile) Diff() string {
	current := cf.hclFile.Bytes()
	if bytes.Equal(cf.original, current) {
		return ""
	}

	d := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(cf.original)),
		B:        difflib.SplitLines(string(current)),
		FromFile: "original",
		ToFile:   "modified",
		Context:  3,
	}
	text, _ := difflib.GetUnifiedDiffString(d)
	return text
}

// HasChanges returns true if the config has been modified since loading.
func (cf *ConfigFile) HasChanges() bool {
	return !bytes.Equal(cf.original, cf.hclFile.Bytes())
}

// Reload discards changes and reloads from disk.
func (cf *ConfigFile) Reload() error {
	newCf, err := LoadConfigFile(cf.Path)
	if err != nil {
		return err
	}
	*cf = *newCf
	return nil
}

// HCLDiagnostic is a single parse diagnostic.
type HCLDiagnostic struct {
	Severity string `json:"severity"`
	Summary  string `json:"summary"`
	Detail   string `json:"detail,omitempty"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
}

// ParseHCLWithDiagnostics parses HCL and returns detailed diagnostics.
func ParseHCLWithDiagnostics(hclSource string) ([]HCLDiagnostic, error) {
	data := []byte(hclSource)
	parser := hclparse.NewParser()

	_, diags := parser.ParseHCL(data, "input.hcl")

	var result []HCLDiagnostic
	for _, d := range diags {
		diag := HCLDiagnostic{
			Summary: d.Summary,
			Detail:  d.Detail,
		}
		if d.Severity == hcl.DiagError {
			diag.Severity = "error"
		} else {
			diag.Severity = "warning"
		}
		if d.Subject != nil {
			diag.Line = d.Subject.Start.Line
			diag.Column = d.Subject.Start.Column
		}
		result = append(result, diag)
	}

	if diags.HasErrors() {
		return result, fmt.Errorf("HCL has errors")
	}
	return result, nil
}
