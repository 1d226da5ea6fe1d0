package models

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Config struct {
	Color       bool
	TraceExec   bool
	TraceMem    bool
	TraceReg    bool
	TraceBranch bool
	Verbose     bool
	Status      bool

	Scripts     []string
	Breakpoints []string
}

// EnvPrefix namespaces configuration keys in env files and the environment.
const EnvPrefix = "HOOKCORN_"

// envKeys maps env keys to the flag each one shadows
var envKeys = map[string]string{
	"COLOR":        "color",
	"TRACE_EXEC":   "trace-exec",
	"TRACE_MEM":    "trace-mem",
	"TRACE_REG":    "trace-reg",
	"TRACE_BRANCH": "trace-branch",
	"VERBOSE":      "verbose",
	"STATUS":       "status",
	"SCRIPTS":      "script",
	"BREAK":        "break",
}

// ReadEnv collects HOOKCORN_* settings from an optional env file and the process
// environment. The environment wins over the file, as with godotenv.Load.
func ReadEnv(path string) (map[string]string, error) {
	vals := make(map[string]string)
	if path != "" {
		file, err := godotenv.Read(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read env file %s", path)
		}
		for k, v := range file {
			if strings.HasPrefix(k, EnvPrefix) {
				vals[k] = v
			}
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, EnvPrefix) {
			vals[k] = v
		}
	}
	return vals, nil
}

// ApplyEnv sets every field named in vals, skipping fields whose flag was set
// explicitly as reported by changed.
func (c *Config) ApplyEnv(vals map[string]string, changed func(flag string) bool) error {
	bools := map[string]*bool{
		"COLOR":        &c.Color,
		"TRACE_EXEC":   &c.TraceExec,
		"TRACE_MEM":    &c.TraceMem,
		"TRACE_REG":    &c.TraceReg,
		"TRACE_BRANCH": &c.TraceBranch,
		"VERBOSE":      &c.Verbose,
		"STATUS":       &c.Status,
	}
	lists := map[string]*[]string{
		"SCRIPTS": &c.Scripts,
		"BREAK":   &c.Breakpoints,
	}
	for key, val := range vals {
		name := strings.TrimPrefix(key, EnvPrefix)
		flag, ok := envKeys[name]
		if !ok {
			return errors.Errorf("unknown config key %s", key)
		}
		if changed != nil && changed(flag) {
			continue
		}
		if b, ok := bools[name]; ok {
			v, err := strconv.ParseBool(val)
			if err != nil {
				return errors.Wrapf(err, "bad value for %s", key)
			}
			*b = v
		} else if l, ok := lists[name]; ok {
			*l = splitList(val)
		}
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
