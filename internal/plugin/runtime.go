package plugin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"

	"github.com/otakuhaven/otakuback/internal/apierr"
	"github.com/otakuhaven/otakuback/internal/logging"
)

var log = logging.For("plugin")

// dangerousGlobals are removed from a fresh interpreter before plugin text
// is evaluated (spec.md §4.1: "global names for host escape hatches and
// dynamic code execution are removed"). goja does not implement most of
// these, but removing them is cheap insurance if a future goja version adds
// one, and it documents the contract plugins are held to.
var dangerousGlobals = []string{
	"eval", "Function", "require", "importScripts", "process", "global",
	"globalThis", "WebAssembly", "Reflect", "Proxy",
}

// Runtime is a single-use goja interpreter loaded with one plugin's code.
// Spec.md §4.1 calls for a fresh runtime per invocation since cold start is
// cheap; Runtime embodies that one-shot lifetime.
type Runtime struct {
	meta    Metadata
	source  string
	fetcher *Fetcher
}

// NewRuntime builds a one-shot runtime for a single invocation.
func NewRuntime(meta Metadata, source string, fetcher *Fetcher) *Runtime {
	return &Runtime{meta: meta, source: source, fetcher: fetcher}
}

// vmInstance is the underlying goja context plus the extracted plugin
// object, valid only for the lifetime of the enclosing invocation.
type vmInstance struct {
	vm     *goja.Runtime
	plugin *goja.Object

	// fetchErr, if set, is the typed error __fetch raised (e.g. via
	// apierr.PluginDomainDenied) before panicking to unwind the JS call.
	// Invoke inspects it to preserve the real error kind instead of folding
	// every panic into a generic PluginError (spec.md §4.1/§7).
	fetchErr error
}

func (r *Runtime) newVM(ctx context.Context) (*vmInstance, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	for _, name := range dangerousGlobals {
		_ = vm.GlobalObject().Delete(name)
	}

	inst := &vmInstance{vm: vm}

	vm.Set("__fetch", func(call goja.FunctionCall) goja.Value {
		fr := FetchRequest{URL: call.Argument(0).String()}
		if opts := call.Argument(1); opts != nil && !goja.IsUndefined(opts) && !goja.IsNull(opts) {
			if optsObj, ok := opts.Export().(map[string]any); ok {
				if m, ok := optsObj["method"].(string); ok {
					fr.Method = m
				}
				if b, ok := optsObj["body"].(string); ok {
					fr.Body = b
				}
				if h, ok := optsObj["headers"].(map[string]any); ok {
					fr.Headers = make(map[string]string, len(h))
					for k, v := range h {
						if s, ok := v.(string); ok {
							fr.Headers[k] = s
						}
					}
				}
			}
		}
		resp, err := r.fetcher.Do(ctx, fr)
		if err != nil {
			inst.fetchErr = err
			panic(vm.ToValue(err.Error()))
		}
		out := vm.NewObject()
		_ = out.Set("status", resp.Status)
		_ = out.Set("body", resp.Body)
		return out
	})

	vm.Set("__log", func(call goja.FunctionCall) goja.Value {
		log.Debug("%s: %s", r.meta.ID, call.Argument(0).String())
		return goja.Undefined()
	})

	if _, err := vm.RunString(r.source); err != nil {
		return nil, &apierr.PluginSchemaError{PluginID: r.meta.ID, Method: "load", Cause: err}
	}

	pluginVal := vm.Get("plugin")
	if pluginVal == nil || goja.IsUndefined(pluginVal) {
		pluginVal = vm.Get("module")
	}
	pluginObj, ok := pluginVal.(*goja.Object)
	if !ok || pluginObj == nil {
		return nil, &apierr.PluginSchemaError{PluginID: r.meta.ID, Method: "load",
			Cause: fmt.Errorf("plugin did not export an object named plugin")}
	}

	inst.plugin = pluginObj
	return inst, nil
}

// HasMethod reports whether the plugin object exposes a callable of name.
func (r *Runtime) HasMethod(ctx context.Context, name string) bool {
	inst, err := r.newVM(ctx)
	if err != nil {
		return false
	}
	fn, ok := goja.AssertFunction(inst.plugin.Get(name))
	return ok && fn != nil
}

// Invoke calls method on a fresh interpreter with args, and unmarshals the
// JSON-serialized result into out.
func (r *Runtime) Invoke(ctx context.Context, method string, args []any, out any) error {
	inst, err := r.newVM(ctx)
	if err != nil {
		return err
	}

	fn, ok := goja.AssertFunction(inst.plugin.Get(method))
	if !ok {
		return &apierr.PluginSchemaError{PluginID: r.meta.ID, Method: method,
			Cause: fmt.Errorf("no such method")}
	}

	gojaArgs := make([]goja.Value, len(args))
	for i, a := range args {
		gojaArgs[i] = inst.vm.ToValue(a)
	}

	result, callErr := safeCall(inst.vm, fn, inst.plugin, gojaArgs)
	if callErr != nil {
		if inst.fetchErr != nil {
			return classifyError(inst.fetchErr)
		}
		return classifyError(&apierr.PluginError{PluginID: r.meta.ID, Message: callErr.Error()})
	}

	jsonStringify, _ := goja.AssertFunction(inst.vm.Get("JSON").(*goja.Object).Get("stringify"))
	rawJSON, err := jsonStringify(goja.Undefined(), result)
	if err != nil {
		return &apierr.PluginSchemaError{PluginID: r.meta.ID, Method: method, Cause: err}
	}

	if err := json.Unmarshal([]byte(rawJSON.String()), out); err != nil {
		return &apierr.PluginSchemaError{PluginID: r.meta.ID, Method: method, Cause: err}
	}
	return nil
}

// safeCall recovers panics raised inside plugin code (goja surfaces thrown
// JS exceptions, and our __fetch capability panics on denial, as a goja
// panic) and turns them into a normal error.
func safeCall(vm *goja.Runtime, fn goja.Callable, this *goja.Object, args []goja.Value) (result goja.Value, err error) {
	defer func() {
		if p := recover(); p != nil {
			if gojaErr, ok := p.(*goja.Exception); ok {
				err = fmt.Errorf("%v", gojaErr.Value())
				return
			}
			err = fmt.Errorf("%v", p)
		}
	}()
	return fn(this, args...)
}
