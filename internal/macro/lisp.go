package macro

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/steelseries/golisp"
)

// The interpreter keeps global state, so evaluations are serialized and
// print-line writes to the output of the evaluation in progress.
var (
	lispMu  sync.Mutex
	lispOut Output
)

func init() {
	golisp.MakePrimitiveFunction("print-line", "1", printLineImpl)
}

func printLineImpl(args *golisp.Data, env *golisp.SymbolTableFrame) (*golisp.Data, error) {
	_ = env
	val := golisp.Car(args)
	text := golisp.String(val)
	if golisp.StringP(val) {
		text = golisp.StringValue(val)
	}
	if lispOut == nil {
		return nil, errors.New("print-line called outside a macro")
	}
	lispOut.Stdout(text)
	return val, nil
}

// LispEngine evaluates Lisp macros. Bindings are bound as global string
// symbols before evaluation.
type LispEngine struct{}

// Evaluate runs source as a sequence of forms.
func (LispEngine) Evaluate(ctx context.Context, source string, bindings map[string]string, out Output) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lispMu.Lock()
	defer lispMu.Unlock()
	lispOut = out
	defer func() { lispOut = nil }()

	for name, value := range bindings {
		golisp.Global.BindTo(golisp.SymbolWithName(name), golisp.StringWithValue(value))
	}
	if _, err := golisp.ParseAndEval("(begin " + source + "\n)"); err != nil {
		return fmt.Errorf("lisp: %w", err)
	}
	return nil
}
