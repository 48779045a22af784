package runner

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/evd-tools/eve/internal/config"
	"github.com/evd-tools/eve/internal/model"
)

// Invocation is a fully expanded detector command: every placeholder in the
// configured template replaced with an absolute path for this run.
type Invocation struct {
	Detector model.DetectorID
	Argv     []string
	Env      []string // KEY=VALUE pairs appended to the inherited environment
	WorkDir  string
	Output   string // absolute path of the expected artifact
}

// expansionContext carries the per-run values substituted into command
// templates. All paths are absolute by the time they reach here.
type expansionContext struct {
	BAM        string
	Reference  string
	Annotation string
	ConfigDir  string
	WorkDir    string
	Output     string
}

func (c expansionContext) replacer() *strings.Replacer {
	return strings.NewReplacer(
		"{bam}", c.BAM,
		"{reference}", c.Reference,
		"{annotation}", c.Annotation,
		"{config}", c.ConfigDir,
		"{workdir}", c.WorkDir,
		"{output}", c.Output,
	)
}

// buildInvocation expands a resolved detector template against the run's
// inputs and the detector's exclusive working directory.
func buildInvocation(inv config.DetectorInvocation, ec expansionContext) (*Invocation, error) {
	if len(inv.Command) == 0 {
		return nil, eris.Errorf("runner: detector %s has an empty command", inv.Detector)
	}

	r := ec.replacer()

	argv := make([]string, len(inv.Command))
	for i, arg := range inv.Command {
		argv[i] = r.Replace(arg)
	}

	env := os.Environ()
	for k, v := range inv.Env {
		env = append(env, k+"="+r.Replace(v))
	}

	return &Invocation{
		Detector: inv.Detector,
		Argv:     argv,
		Env:      env,
		WorkDir:  ec.WorkDir,
		Output:   ec.Output,
	}, nil
}
