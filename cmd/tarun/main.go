// Command tarun runs a script in goja with typed arrays loaded from a yaml
// document, then prints the arrays (and any exported ones) as yaml.
package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"runtime/debug"
	"runtime/pprof"
	"time"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	typedarray "github.com/dop251/goja_typedarray"
	"github.com/dop251/goja_typedarray/gojahost"
	"github.com/dop251/goja_typedarray/hostloop"
)

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	log    *logrus.Logger
}

func (a *app) readSource(filename string) ([]byte, error) {
	if filename == "" || filename == "-" {
		return io.ReadAll(a.stdin)
	}
	return os.ReadFile(filename)
}

func (a *app) load(vm *goja.Runtime, call goja.FunctionCall) goja.Value {
	p := call.Argument(0).String()
	b, err := a.readSource(p)
	if err != nil {
		panic(vm.ToValue(fmt.Sprintf("Could not read %s: %v", p, err)))
	}
	v, err := vm.RunScript(p, string(b))
	if err != nil {
		panic(err)
	}
	return v
}

func newRandSource() goja.RandSource {
	var seed int64
	if err := binary.Read(crand.Reader, binary.LittleEndian, &seed); err != nil {
		panic(fmt.Errorf("Could not read random bytes: %v", err))
	}
	return rand.New(rand.NewSource(seed)).Float64
}

func newLogger(cfg LogConfig, w io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(w)
	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)
	if cfg.Format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}
	return log
}

func (a *app) readInput(cfg *Config) (*Document, error) {
	if cfg.Input == "" {
		return &Document{Arrays: map[string]ArrayDoc{}}, nil
	}
	f, err := os.Open(cfg.Input)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readDocument(f)
}

func (a *app) writeOutput(cfg *Config, doc *Document) error {
	if cfg.Output == "" || cfg.Output == "-" {
		return writeDocument(a.stdout, doc)
	}
	f, err := os.Create(cfg.Output)
	if err != nil {
		return err
	}
	if err := writeDocument(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (a *app) run(cfg *Config, filename string) error {
	src, err := a.readSource(filename)
	if err != nil {
		return err
	}
	if filename == "" || filename == "-" {
		filename = "<stdin>"
	}

	input, err := a.readInput(cfg)
	if err != nil {
		return err
	}

	vm := goja.New()
	vm.SetRandSource(newRandSource())
	enableConsole(vm, a.log)
	loop := hostloop.New(vm, hostloop.WithLogger(a.log))

	host, err := gojahost.New(vm, gojahost.WithLogger(a.log))
	if err != nil {
		return err
	}
	opts := []typedarray.Option{typedarray.WithLogger(a.log)}

	arrays := make(map[string]array)
	defer func() {
		for _, arr := range arrays {
			arr.Close()
		}
	}()

	for _, name := range input.names() {
		arr, err := materialize(host, input.Arrays[name], opts)
		if err != nil {
			return fmt.Errorf("input array %s: %w", name, err)
		}
		arrays[name] = arr
		obj, _ := host.Object(arr.Ref())
		vm.Set(name, obj)
		a.log.WithField("name", name).WithField("type", arr.Kind().String()).Debug("loaded input array")
	}

	vm.Set("load", func(call goja.FunctionCall) goja.Value {
		return a.load(vm, call)
	})

	vm.Set("readFile", func(name string) (string, error) {
		b, err := os.ReadFile(name)
		if err != nil {
			return "", err
		}
		return string(b), nil
	})

	if cfg.TimeLimit > 0 {
		t := time.AfterFunc(time.Duration(cfg.TimeLimit)*time.Second, func() {
			vm.Interrupt("timeout")
		})
		defer t.Stop()
	}

	a.log.Debug("compiling")
	prg, err := goja.Compile(filename, string(src), false)
	if err != nil {
		return err
	}
	a.log.Debug("running")
	loop.Run(func(vm *goja.Runtime) {
		_, err = vm.RunProgram(prg)
	})
	if err != nil {
		return err
	}
	a.log.Debug("finished")

	for _, name := range cfg.Export {
		if _, ok := arrays[name]; ok {
			continue
		}
		v := vm.Get(name)
		if v == nil {
			return fmt.Errorf("export %s: not defined", name)
		}
		ref, kind, err := host.Adopt(v)
		if err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
		arr, err := adopt(host, ref, kind, opts)
		if err != nil {
			host.Release(ref)
			return fmt.Errorf("export %s: %w", name, err)
		}
		arrays[name] = arr
	}

	out := &Document{Arrays: make(map[string]ArrayDoc, len(arrays))}
	for name, arr := range arrays {
		vals, err := arr.values()
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		out.Arrays[name] = ArrayDoc{Type: arr.Kind().String(), Values: vals}
	}
	return a.writeOutput(cfg, out)
}

func newRootCommand(a *app) *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:          "tarun [flags] [script.js]",
		Short:        "Run a script against typed arrays loaded from yaml",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v, cfgFile)
			if err != nil {
				return err
			}
			a.log = newLogger(cfg.Log, a.stderr)

			if cfg.CPUProfile != "" {
				f, err := os.Create(cfg.CPUProfile)
				if err != nil {
					return err
				}
				defer f.Close()
				if err := pprof.StartCPUProfile(f); err != nil {
					return err
				}
				defer pprof.StopCPUProfile()
			}

			var filename string
			if len(args) > 0 {
				filename = args[0]
			}
			return a.run(cfg, filename)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is ./tarun.yaml)")
	flags.StringP("input", "i", "", "yaml document with the arrays to create")
	flags.StringP("output", "o", "", "write the resulting arrays here instead of stdout")
	flags.StringSliceP("export", "e", nil, "script globals holding typed arrays to include in the output")
	flags.Int("timelimit", 0, "max time to run (in seconds)")
	flags.String("cpuprofile", "", "write cpu profile to file")
	flags.String("log-level", "info", "log level")
	flags.String("log-format", "text", "log format (text or json)")

	v.BindPFlag("input", flags.Lookup("input"))
	v.BindPFlag("output", flags.Lookup("output"))
	v.BindPFlag("export", flags.Lookup("export"))
	v.BindPFlag("timelimit", flags.Lookup("timelimit"))
	v.BindPFlag("cpuprofile", flags.Lookup("cpuprofile"))
	v.BindPFlag("log.level", flags.Lookup("log-level"))
	v.BindPFlag("log.format", flags.Lookup("log-format"))

	return cmd
}

func main() {
	defer func() {
		if x := recover(); x != nil {
			debug.PrintStack()
			panic(x)
		}
	}()

	a := &app{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		log:    logrus.StandardLogger(),
	}
	if err := newRootCommand(a).Execute(); err != nil {
		var ex *goja.Exception
		var ie *goja.InterruptedError
		switch {
		case errors.As(err, &ex):
			fmt.Fprintln(os.Stderr, ex.String())
		case errors.As(err, &ie):
			fmt.Fprintln(os.Stderr, ie.String())
		}
		os.Exit(64)
	}
}
