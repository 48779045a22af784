package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evd-tools/eve/internal/model"
)

func writeConfig(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestResolveDetector_YAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "freebayes.yaml", `
command: ["freebayes", "-f", "{reference}", "-v", "{output}", "{bam}"]
output: calls.vcf
env:
  TMPDIR: "{workdir}"
timeout_secs: 600
`)

	inv, err := ResolveDetector(dir, model.DetectorFreebayes)
	require.NoError(t, err)
	assert.Equal(t, model.DetectorFreebayes, inv.Detector)
	assert.Equal(t, []string{"freebayes", "-f", "{reference}", "-v", "{output}", "{bam}"}, inv.Command)
	assert.Equal(t, "calls.vcf", inv.Output)
	assert.Equal(t, "{workdir}", inv.Env["TMPDIR"])
	assert.Equal(t, 600, inv.TimeoutSecs)
}

func TestResolveDetector_YAMLStringCommand(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "mpileup.yaml", "command: bcftools mpileup -f {reference} {bam}\noutput: calls.vcf\n")

	inv, err := ResolveDetector(dir, model.DetectorMpileup)
	require.NoError(t, err)
	assert.Equal(t, []string{"bcftools", "mpileup", "-f", "{reference}", "{bam}"}, inv.Command)
}

func TestResolveDetector_LegacyTxt(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "varscan.txt", `
# VarScan invocation
command=varscan pileup2snp {bam} --output-file {output}
output=varscan.snp
timeout_secs=900
`)

	inv, err := ResolveDetector(dir, model.DetectorVarscan)
	require.NoError(t, err)
	assert.Equal(t, []string{"varscan", "pileup2snp", "{bam}", "--output-file", "{output}"}, inv.Command)
	assert.Equal(t, "varscan.snp", inv.Output)
	assert.Equal(t, 900, inv.TimeoutSecs)
}

func TestResolveDetector_YAMLTakesPrecedence(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "mpileup.yaml", "command: [new-way]\noutput: a.vcf\n")
	writeConfig(t, dir, "mpileup.txt", "command=old-way\noutput=b.vcf\n")

	inv, err := ResolveDetector(dir, model.DetectorMpileup)
	require.NoError(t, err)
	assert.Equal(t, []string{"new-way"}, inv.Command)
}

func TestResolveDetector_NotFound(t *testing.T) {
	_, err := ResolveDetector(t.TempDir(), model.DetectorMpileup)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDetectorConfigNotFound)
}

func TestResolveDetector_MissingCommand(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "mpileup.yaml", "output: calls.vcf\n")
	_, err := ResolveDetector(dir, model.DetectorMpileup)
	assert.ErrorContains(t, err, "missing command")
}

func TestResolveDetector_MissingOutput(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "mpileup.yaml", "command: [bcftools]\n")
	_, err := ResolveDetector(dir, model.DetectorMpileup)
	assert.ErrorContains(t, err, "missing output")
}

func TestResolveDetector_LegacyUnknownKey(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "mpileup.txt", "command=x\noutput=y\nbogus=z\n")
	_, err := ResolveDetector(dir, model.DetectorMpileup)
	assert.ErrorContains(t, err, "unknown key")
}

func TestResolveDetectors(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "mpileup.yaml", "command: [a]\noutput: o.vcf\n")
	writeConfig(t, dir, "freebayes.yaml", "command: [b]\noutput: o.vcf\n")

	invs, err := ResolveDetectors(DetectorsConfig{
		Enabled:   []string{"mpileup", "freebayes"},
		ConfigDir: dir,
	})
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, model.DetectorMpileup, invs[0].Detector)
	assert.Equal(t, model.DetectorFreebayes, invs[1].Detector)
}

func TestResolveDetectors_BadIdentity(t *testing.T) {
	_, err := ResolveDetectors(DetectorsConfig{
		Enabled:   []string{"pindel"},
		ConfigDir: t.TempDir(),
	})
	assert.ErrorContains(t, err, "unknown detector")
}

func TestResolveDetectors_NoneEnabled(t *testing.T) {
	_, err := ResolveDetectors(DetectorsConfig{ConfigDir: t.TempDir()})
	assert.ErrorContains(t, err, "no detectors enabled")
}

func TestLoad_Defaults(t *testing.T) {
	tmp := t.TempDir()
	orig, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmp))
	defer os.Chdir(orig) //nolint:errcheck

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "eve.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 0.5, cfg.Scorer.Threshold)
	assert.Equal(t, "input", cfg.Scorer.InputName)
	assert.Equal(t, 3600, cfg.Detectors.TimeoutSecs)
	assert.Len(t, cfg.Detectors.Enabled, 4)
}
