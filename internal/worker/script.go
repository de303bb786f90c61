package worker

import (
	"context"
	"fmt"
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

const scriptFuncName = "Perform"

// Script runs a Go source file through the yaegi interpreter. The file must
// declare
//
//	func Perform(group, item, taskType string) (string, error)
//
// and the returned string becomes the result body.
type Script struct {
	path string
	mu   sync.Mutex
	fn   reflect.Value
}

// LoadScript interprets the file at path and resolves its Perform function.
func LoadScript(path string) (*Script, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("worker: read script %s: %w", path, err)
	}
	if len(strings.TrimSpace(string(code))) == 0 {
		return nil, fmt.Errorf("worker: script %s is empty", path)
	}
	i := interp.New(interp.Options{})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("worker: script stdlib: %w", err)
	}
	if _, err := i.EvalPath(path); err != nil {
		return nil, fmt.Errorf("worker: interpret %s: %w", path, err)
	}
	fn, err := i.Eval(scriptFuncName)
	if err != nil {
		return nil, fmt.Errorf("worker: %s must define %s(group, item, taskType string) (string, error): %w", path, scriptFuncName, err)
	}
	if fn.Kind() != reflect.Func || fn.Type().NumIn() != 3 || fn.Type().NumOut() != 2 {
		return nil, fmt.Errorf("worker: %s: %s has the wrong signature", path, scriptFuncName)
	}
	return &Script{path: path, fn: fn}, nil
}

// Perform invokes the script. Calls are serialized because the interpreter
// state is shared.
func (s *Script) Perform(ctx context.Context, a Assignment) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	s.mu.Lock()
	out := s.fn.Call([]reflect.Value{
		reflect.ValueOf(a.Group),
		reflect.ValueOf(a.Item),
		reflect.ValueOf(a.TaskType),
	})
	s.mu.Unlock()

	if errVal := out[1]; errVal.IsValid() && !errVal.IsNil() {
		if e, ok := errVal.Interface().(error); ok {
			return Result{}, fmt.Errorf("worker: script %s: %w", a, e)
		}
		return Result{}, fmt.Errorf("worker: script %s returned a non-error second value", a)
	}
	body, ok := out[0].Interface().(string)
	if !ok {
		return Result{}, fmt.Errorf("worker: script %s returned %s, want string", a, out[0].Type())
	}
	return Result{Body: body, Model: "script:" + s.path}, nil
}
