package main

import (
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/console"
	"github.com/dop251/goja_nodejs/require"
	"github.com/sirupsen/logrus"
)

// logPrinter sends console output of scripts to the logger.
type logPrinter struct {
	log logrus.FieldLogger
}

func (p logPrinter) Log(s string) {
	p.log.Info(s)
}

func (p logPrinter) Warn(s string) {
	p.log.Warn(s)
}

func (p logPrinter) Error(s string) {
	p.log.Error(s)
}

func enableConsole(vm *goja.Runtime, log logrus.FieldLogger) {
	registry := new(require.Registry)
	registry.RegisterNativeModule(console.ModuleName, console.RequireWithPrinter(logPrinter{log: log.WithField("source", "console")}))
	registry.Enable(vm)
	console.Enable(vm)
}
