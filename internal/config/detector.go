package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/evd-tools/eve/internal/model"
)

// ErrDetectorConfigNotFound means no configuration file exists for a
// detector in any recognized format.
var ErrDetectorConfigNotFound = eris.New("config: detector configuration not found")

// DetectorInvocation is a detector's resolved invocation template: the
// command to execute and where it leaves its output artifact. Placeholders
// ({bam}, {reference}, {annotation}, {config}, {workdir}, {output}) are
// expanded by the runner at execution time.
type DetectorInvocation struct {
	Detector    model.DetectorID
	Command     []string
	Output      string // artifact path relative to the detector's workdir
	Env         map[string]string
	TimeoutSecs int // overrides detectors.timeout_secs when > 0
}

// detectorFile is the YAML shape of a detector configuration file.
type detectorFile struct {
	Command     commandLine       `yaml:"command"`
	Output      string            `yaml:"output"`
	Env         map[string]string `yaml:"env"`
	TimeoutSecs int               `yaml:"timeout_secs"`
}

// commandLine accepts either a YAML list of argv elements or a single
// whitespace-split string.
type commandLine []string

func (c *commandLine) UnmarshalYAML(node *yaml.Node) error {
	var list []string
	if err := node.Decode(&list); err == nil {
		*c = list
		return nil
	}
	var single string
	if err := node.Decode(&single); err != nil {
		return err
	}
	*c = strings.Fields(single)
	return nil
}

// ResolveDetector locates and parses a detector's configuration. Recognized
// formats, tried in order: <config_dir>/<detector>.yaml, then the legacy
// key=value format <config_dir>/<detector>.txt. A detector with neither file
// resolves to ErrDetectorConfigNotFound rather than any silent default.
func ResolveDetector(configDir string, id model.DetectorID) (*DetectorInvocation, error) {
	yamlPath := filepath.Join(configDir, string(id)+".yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return parseYAMLInvocation(yamlPath, id)
	}

	txtPath := filepath.Join(configDir, string(id)+".txt")
	if _, err := os.Stat(txtPath); err == nil {
		return parseLegacyInvocation(txtPath, id)
	}

	return nil, eris.Wrapf(ErrDetectorConfigNotFound, "detector %s: tried %s, %s", id, yamlPath, txtPath)
}

// ResolveDetectors resolves every enabled detector, failing on the first
// bad identity or missing configuration so nothing runs on a partial setup.
func ResolveDetectors(cfg DetectorsConfig) ([]DetectorInvocation, error) {
	if len(cfg.Enabled) == 0 {
		return nil, eris.New("config: no detectors enabled")
	}

	invocations := make([]DetectorInvocation, 0, len(cfg.Enabled))
	for _, name := range cfg.Enabled {
		id, err := model.ParseDetectorID(name)
		if err != nil {
			return nil, err
		}
		inv, err := ResolveDetector(cfg.ConfigDir, id)
		if err != nil {
			return nil, err
		}
		invocations = append(invocations, *inv)
	}
	return invocations, nil
}

func parseYAMLInvocation(path string, id model.DetectorID) (*DetectorInvocation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}

	var file detectorFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, eris.Wrapf(err, "config: parse %s", path)
	}

	inv := &DetectorInvocation{
		Detector:    id,
		Command:     file.Command,
		Output:      file.Output,
		Env:         file.Env,
		TimeoutSecs: file.TimeoutSecs,
	}
	return inv, validateInvocation(inv, path)
}

// parseLegacyInvocation reads the key=value format used before detector
// configs moved to YAML. Recognized keys: command, output, timeout_secs.
func parseLegacyInvocation(path string, id model.DetectorID) (*DetectorInvocation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}
	defer f.Close()

	inv := &DetectorInvocation{Detector: id}
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		key, value, ok := strings.Cut(text, "=")
		if !ok {
			return nil, eris.Errorf("config: %s line %d: expected key=value", path, line)
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "command":
			inv.Command = strings.Fields(value)
		case "output":
			inv.Output = value
		case "timeout_secs":
			secs, err := strconv.Atoi(value)
			if err != nil {
				return nil, eris.Errorf("config: %s line %d: invalid timeout_secs %q", path, line, value)
			}
			inv.TimeoutSecs = secs
		default:
			return nil, eris.Errorf("config: %s line %d: unknown key %q", path, line, key)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "config: read %s", path)
	}

	return inv, validateInvocation(inv, path)
}

func validateInvocation(inv *DetectorInvocation, path string) error {
	if len(inv.Command) == 0 {
		return eris.Errorf("config: %s: missing command", path)
	}
	if inv.Output == "" {
		return eris.Errorf("config: %s: missing output artifact path", path)
	}
	return nil
}
