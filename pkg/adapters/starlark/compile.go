// Package starlark compiles Starlark scripts into procedures.
//
// A script defines a run() function and may declare its successors in EXITS.
// run() reaches hardware and suspends through predeclared builtins:
//
//	EXITS = ["wait_forever"]
//
//	def run():
//	    set("labjack.heatswitch_pot", "CLOSED")
//	    wait(3)
//	    while get("cryocon.chB_temperature") > 5:
//	        wait(1)
//	    return "wait_forever"
//
// wait, checkpoint and set are suspension points; get, text, latest and log are not.
package starlark

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/aretw0/cadence/pkg/domain"
	"github.com/aretw0/cadence/pkg/procedure"
)

const procKey = "cadence.proc"

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

var suspending = []string{"wait", "checkpoint", "set"}

// LoadFile compiles the script at path. The file name without extension names the procedure.
func LoadFile(path string) (*procedure.State, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Compile(name, src)
}

// Compile compiles a script into a State.
func Compile(name string, src []byte) (*procedure.State, error) {
	filename := name + ".star"
	file, prog, err := starlark.SourceProgramOptions(fileOptions, filename, src, builtins.Has)
	if err != nil {
		return nil, &domain.CompileError{Procedure: name, Reason: err.Error()}
	}
	if countCalls(file, suspending...) == 0 {
		return nil, &domain.CompileError{Procedure: name, Reason: "no suspension points"}
	}

	// Executing the top level once validates it and yields EXITS. Builtins refuse to run here.
	globals, err := prog.Init(&starlark.Thread{Name: name + ":init"}, builtins)
	if err != nil {
		return nil, &domain.CompileError{Procedure: name, Reason: err.Error()}
	}
	if _, ok := globals["run"].(*starlark.Function); !ok {
		return nil, &domain.CompileError{Procedure: name, Reason: "script does not define run()"}
	}
	exits, err := declaredExits(globals)
	if err != nil {
		return nil, &domain.CompileError{Procedure: name, Reason: err.Error()}
	}
	exits = append(exits, returnedNames(file)...)

	body := func(p *procedure.Proc) (string, error) {
		thread := &starlark.Thread{
			Name:  name,
			Print: func(_ *starlark.Thread, msg string) { p.Logger().Info(msg) },
		}
		thread.SetLocal(procKey, p)
		stop := context.AfterFunc(p.Context(), func() { thread.Cancel("context cancelled") })
		defer stop()

		globals, err := prog.Init(thread, builtins)
		if err != nil {
			return "", err
		}
		v, err := starlark.Call(thread, globals["run"], nil, nil)
		if err != nil {
			return "", err
		}
		switch v := v.(type) {
		case starlark.NoneType:
			return "", nil
		case starlark.String:
			return string(v), nil
		default:
			return "", fmt.Errorf("run() returned %s, want a procedure name or None", v.Type())
		}
	}

	return procedure.Func(name, body,
		procedure.WithSource(filename, strings.TrimRight(string(src), "\n")),
		procedure.WithExits(exits...),
	)
}

func declaredExits(globals starlark.StringDict) ([]string, error) {
	v, ok := globals["EXITS"]
	if !ok {
		return nil, nil
	}
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return nil, fmt.Errorf("EXITS must be a list of names, got %s", v.Type())
	}
	var names []string
	it := iterable.Iterate()
	defer it.Done()
	var x starlark.Value
	for it.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("EXITS entry %s is not a string", x)
		}
		names = append(names, s)
	}
	return names, nil
}

// returnedNames collects string literals returned anywhere in the file.
func returnedNames(file *syntax.File) []string {
	var names []string
	syntax.Walk(file, func(n syntax.Node) bool {
		ret, ok := n.(*syntax.ReturnStmt)
		if !ok || ret.Result == nil {
			return true
		}
		if lit, ok := ret.Result.(*syntax.Literal); ok && lit.Token == syntax.STRING {
			names = append(names, lit.Value.(string))
		}
		return true
	})
	return names
}

func countCalls(file *syntax.File, fns ...string) int {
	n := 0
	syntax.Walk(file, func(node syntax.Node) bool {
		call, ok := node.(*syntax.CallExpr)
		if !ok {
			return true
		}
		if id, ok := call.Fn.(*syntax.Ident); ok {
			for _, fn := range fns {
				if id.Name == fn {
					n++
				}
			}
		}
		return true
	})
	return n
}
