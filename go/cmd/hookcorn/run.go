package main

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lunixbochs/hookcorn/go/cpu/bpf"
	"github.com/lunixbochs/hookcorn/go/loader"
	"github.com/lunixbochs/hookcorn/go/lua"
	"github.com/lunixbochs/hookcorn/go/models"
	"github.com/lunixbochs/hookcorn/go/models/stats"
	"github.com/lunixbochs/hookcorn/go/models/tracer"
)

func addConfigFlags(cmd *cobra.Command, config *models.Config, envFile *string) {
	fs := cmd.Flags()
	fs.StringArrayVar(&config.Scripts, "script", nil, "lua script to load (repeatable)")
	fs.StringVar(envFile, "env", "", "env file with HOOKCORN_* settings")
	fs.BoolVar(&config.Color, "color", colorDefault(), "colorize output")
	fs.BoolVarP(&config.Verbose, "verbose", "v", false, "debug logging and execution stats")
}

func newRunCmd() *cobra.Command {
	config := &models.Config{}
	var envFile string
	cmd := &cobra.Command{
		Use:   "run FILTER PACKET",
		Short: "execute a BPF filter binary against a packet",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, config, envFile); err != nil {
				return err
			}
			r := &runner{config: config, out: cmd.OutOrStdout(), log: newLogger(cmd.ErrOrStderr(), config)}
			defer r.log.Sync()
			l, err := loader.NewBpfLoader(args[0], args[1])
			if err != nil {
				return err
			}
			_, err = r.run(l)
			return err
		},
	}
	addConfigFlags(cmd, config, &envFile)
	fs := cmd.Flags()
	fs.StringArrayVar(&config.Breakpoints, "break", nil, "halt at ADDR or MIN-MAX (repeatable)")
	fs.BoolVar(&config.TraceExec, "trace-exec", false, "trace executed instructions")
	fs.BoolVar(&config.TraceMem, "trace-mem", false, "trace memory access")
	fs.BoolVar(&config.TraceReg, "trace-reg", false, "trace register access")
	fs.BoolVar(&config.TraceBranch, "trace-branch", false, "trace branch decisions")
	fs.BoolVar(&config.Status, "status", false, "print changed registers at each halt")
	return cmd
}

func newLogger(w io.Writer, config *models.Config) *zap.Logger {
	level := zapcore.InfoLevel
	if config.Verbose {
		level = zapcore.DebugLevel
	} else if !config.TraceExec && !config.TraceMem && !config.TraceReg && !config.TraceBranch {
		return zap.NewNop()
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	if config.Color {
		enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core)
}

type runner struct {
	config *models.Config
	out    io.Writer
	log    *zap.Logger
}

// setup wires tracing, breakpoints and scripts into the cpu's event manager
func (r *runner) setup(c *bpf.Cpu) (*lua.Binding, error) {
	m := c.Events()
	_, err := tracer.Attach(m, r.log, tracer.Config{
		Exec:   r.config.TraceExec,
		Mem:    r.config.TraceMem,
		Reg:    r.config.TraceReg,
		Branch: r.config.TraceBranch,
		Disas: func(addr uint64) (string, error) {
			p, err := c.MemRead(addr, bpf.InsSize)
			if err != nil {
				return "", err
			}
			ins, err := bpf.Decode(p, addr)
			if err != nil {
				return "", err
			}
			return ins.String(), nil
		},
	})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, desc := range r.config.Breakpoints {
		bp, err := models.NewBreakpoint(desc)
		if err != nil {
			return nil, err
		}
		if seen[bp.Filter.String()] {
			continue
		}
		seen[bp.Filter.String()] = true
		err = bp.Apply(m, func(addr uint64) {
			fmt.Fprintf(r.out, "breakpoint %s hit at %#x\n", bp.Desc, addr)
		})
		if err != nil {
			return nil, err
		}
	}
	b, err := lua.New(m)
	if err != nil {
		return nil, err
	}
	b.SetOutput(r.out)
	b.InitScripts()
	if err := b.LoadScripts(r.config.Scripts); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// run executes the filter to completion, resuming after every halt.
func (r *runner) run(l *loader.BpfLoader) (*bpf.Stop, error) {
	c, err := bpf.NewCpu()
	if err != nil {
		return nil, err
	}
	defer c.Close()
	c.SetLogger(r.log)
	if err := l.Load(c); err != nil {
		return nil, errors.Wrap(err, "failed to load filter")
	}
	b, err := r.setup(c)
	if err != nil {
		return nil, err
	}
	defer b.Close()
	if r.config.Verbose {
		stats.Init()
		defer stats.Disable()
	}

	status := &models.StatusDiff{Regs: c, Bits: 32}
	stop, err := c.Run()
	for err == nil && stop.Reason == bpf.Halted {
		fmt.Fprintln(r.out, stop)
		if r.config.Status {
			fmt.Fprintln(r.out, status.Changes(true).String(r.config.Color))
		}
		stop, err = c.Start(stop.PC, 0)
	}
	if stop != nil {
		fmt.Fprintln(r.out, stop)
	}
	if g := stats.Get(); g != nil {
		fmt.Fprint(r.out, g.Format(r.config.Color))
	}
	return stop, err
}
