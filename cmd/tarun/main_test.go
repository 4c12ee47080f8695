package main

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	typedarray "github.com/dop251/goja_typedarray"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newTestApp() (*app, *bytes.Buffer, *bytes.Buffer) {
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(stderr)
	return &app{
		stdin:  strings.NewReader(""),
		stdout: stdout,
		stderr: stderr,
		log:    log,
	}, stdout, stderr
}

const input = `
arrays:
  a:
    type: Int32Array
    values: [1, 2, 3]
  bytes:
    type: Uint8Array
    values: [250, 300]
`

func TestRunRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.yaml", input)
	script := writeFile(t, dir, "s.js", `
	for (var i = 0; i < a.length; i++) {
		a[i] *= 2;
	}
	bytes[0]++;
	var b = new Float32Array([0.5, -2]);
	`)

	a, stdout, _ := newTestApp()
	err := a.run(&Config{Input: in, Export: []string{"b", "a"}}, script)
	require.NoError(t, err)

	doc, err := readDocument(stdout)
	require.NoError(t, err)
	assert.Equal(t, map[string]ArrayDoc{
		"a":     {Type: "Int32Array", Values: []float64{2, 4, 6}},
		"b":     {Type: "Float32Array", Values: []float64{0.5, -2}},
		"bytes": {Type: "Uint8Array", Values: []float64{251, 44}},
	}, doc.Arrays)
}

func TestRunWithTimers(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.yaml", input)
	script := writeFile(t, dir, "s.js", `
	setTimeout(function() { a[0] = 99; }, 1);
	`)

	a, stdout, _ := newTestApp()
	require.NoError(t, a.run(&Config{Input: in}, script))
	doc, err := readDocument(stdout)
	require.NoError(t, err)
	assert.Equal(t, []float64{99, 2, 3}, doc.Arrays["a"].Values)
}

func TestRunFromStdin(t *testing.T) {
	a, stdout, _ := newTestApp()
	a.stdin = strings.NewReader(`var out = new Int16Array([7, -7]);`)
	require.NoError(t, a.run(&Config{Export: []string{"out"}}, "-"))
	doc, err := readDocument(stdout)
	require.NoError(t, err)
	assert.Equal(t, ArrayDoc{Type: "Int16Array", Values: []float64{7, -7}}, doc.Arrays["out"])
}

func TestRunOutputFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.yaml")
	script := writeFile(t, dir, "s.js", `var c = new Uint8ClampedArray([300, -5]);`)

	a, stdout, _ := newTestApp()
	require.NoError(t, a.run(&Config{Output: out, Export: []string{"c"}}, script))
	assert.Zero(t, stdout.Len())

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	doc, err := readDocument(f)
	require.NoError(t, err)
	assert.Equal(t, ArrayDoc{Type: "Uint8ClampedArray", Values: []float64{255, 0}}, doc.Arrays["c"])
}

func TestRunErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("exception", func(t *testing.T) {
		script := writeFile(t, dir, "throw.js", `throw new Error("boom");`)
		a, _, _ := newTestApp()
		err := a.run(&Config{}, script)
		var ex *goja.Exception
		require.ErrorAs(t, err, &ex)
		assert.Contains(t, ex.Error(), "boom")
	})

	t.Run("bad input type", func(t *testing.T) {
		in := writeFile(t, dir, "bad.yaml", "arrays:\n  x:\n    type: BigInt64Array\n    values: [1]\n")
		script := writeFile(t, dir, "empty.js", ``)
		a, _, _ := newTestApp()
		err := a.run(&Config{Input: in}, script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported array type")
	})

	t.Run("unknown input field", func(t *testing.T) {
		in := writeFile(t, dir, "typo.yaml", "arrays:\n  x:\n    type: Int8Array\n    value: [1]\n")
		script := writeFile(t, dir, "empty2.js", ``)
		a, _, _ := newTestApp()
		require.Error(t, a.run(&Config{Input: in}, script))
	})

	t.Run("export of plain value", func(t *testing.T) {
		script := writeFile(t, dir, "plain.js", `var x = [1, 2];`)
		a, _, _ := newTestApp()
		err := a.run(&Config{Export: []string{"x"}}, script)
		require.ErrorIs(t, err, typedarray.ErrInvalidArgument)
	})

	t.Run("export of undefined global", func(t *testing.T) {
		script := writeFile(t, dir, "nothing.js", ``)
		a, _, _ := newTestApp()
		err := a.run(&Config{Export: []string{"missing"}}, script)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not defined")
	})
}

func TestCommandWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "in.yaml", input)
	script := writeFile(t, dir, "s.js", `console.log("sum", a[0] + a[1] + a[2]); var z = new Float64Array(1);`)
	cfg := writeFile(t, dir, "tarun.yaml", "input: "+in+"\nexport: [z]\nlog:\n  format: json\n")

	a, stdout, stderr := newTestApp()
	cmd := newRootCommand(a)
	cmd.SetArgs([]string{"--config", cfg, script})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	doc, err := readDocument(stdout)
	require.NoError(t, err)
	assert.Contains(t, doc.Arrays, "z")
	assert.Contains(t, doc.Arrays, "a")
	assert.Contains(t, stderr.String(), `"msg":"sum 6"`)
	assert.Contains(t, stderr.String(), `"source":"console"`)
}

func TestCommandFlagsOverrideDefaults(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "s.js", `var q = new Uint32Array([4294967295]);`)

	a, stdout, _ := newTestApp()
	cmd := newRootCommand(a)
	cmd.SetArgs([]string{"-e", "q", "--log-level", "debug", script})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, logrus.DebugLevel, a.log.GetLevel())

	doc, err := readDocument(stdout)
	require.NoError(t, err)
	assert.Equal(t, []float64{4294967295}, doc.Arrays["q"].Values)
}

func TestConfigValidation(t *testing.T) {
	dir := t.TempDir()

	_, err := loadConfig(viper.New(), filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)

	bad := writeFile(t, dir, "bad.yaml", "log:\n  format: xml\n")
	_, err = loadConfig(viper.New(), bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log.format")

	neg := writeFile(t, dir, "neg.yaml", "timelimit: -1\n")
	_, err = loadConfig(viper.New(), neg)
	require.Error(t, err)

	t.Setenv("TARUN_LOG_LEVEL", "warn")
	ok := writeFile(t, dir, "ok.yaml", "output: out.yaml\n")
	cfg, err := loadConfig(viper.New(), ok)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "out.yaml", cfg.Output)
}

func TestNarrow(t *testing.T) {
	assert.Equal(t, int8(-56), narrow[int8](200))
	assert.Equal(t, uint8(44), narrow[uint8](300))
	assert.Equal(t, uint16(65535), narrow[uint16](-1))
	assert.Equal(t, int32(3), narrow[int32](3.9))
	assert.Equal(t, float32(0.5), narrow[float32](0.5))

	assert.Equal(t, int32(1661992960), narrow[int32](1e20))
	assert.Equal(t, int32(-1661992960), narrow[int32](-1e20))
	assert.Equal(t, uint32(1), narrow[uint32](4294967297.5))
	assert.Equal(t, int32(-2147483648), narrow[int32](2147483648))
	assert.Zero(t, narrow[int16](math.NaN()))
	assert.Zero(t, narrow[uint8](math.Inf(-1)))
}

func TestLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	log := newLogger(LogConfig{Level: "nonsense", Format: "json"}, &buf)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
	log.Info("hello")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), buf.String())
}

func TestEmptyDocument(t *testing.T) {
	doc, err := readDocument(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, doc.Arrays)

	var buf bytes.Buffer
	require.NoError(t, writeDocument(&buf, &Document{Arrays: map[string]ArrayDoc{
		"x": {Type: "Int8Array", Values: []float64{1, -1}},
	}}))
	assert.Equal(t, "arrays:\n  x:\n    type: Int8Array\n    values: [1, -1]\n", buf.String())
}
