//go:build !js_eval

package guard

import "fmt"

func newJSEvaluator(engineConfig) (Evaluator, error) {
	return nil, fmt.Errorf("%w: %s (build with -tags js_eval)", ErrEngineUnavailable, EngineJS)
}
