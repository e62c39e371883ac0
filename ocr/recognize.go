package ocr

import (
	"context"
	"fmt"
	"strings"
)

// EngineFunc adapts a function to the Engine interface.
type EngineFunc func(ctx context.Context, input Input) (Result, error)

func (f EngineFunc) Name() string { return "func" }

func (f EngineFunc) Recognize(ctx context.Context, input Input) (Result, error) {
	return f(ctx, input)
}

// Recognize runs engine over inputs. If the engine supports batch operation,
// it is used; otherwise calls are executed sequentially.
func Recognize(ctx context.Context, engine Engine, inputs []Input) ([]Result, error) {
	if engine == nil {
		return nil, fmt.Errorf("ocr: no engine configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b, ok := engine.(BatchEngine); ok {
		return b.RecognizeBatch(ctx, inputs)
	}
	results := make([]Result, 0, len(inputs))
	for _, in := range inputs {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		res, err := engine.Recognize(ctx, in)
		if err != nil {
			return nil, fmt.Errorf("recognize %s: %w", in.ID, err)
		}
		results = append(results, res)
	}
	return results, nil
}

// JoinText concatenates the plain text of results, one blank line apart.
func JoinText(results []Result) string {
	parts := make([]string, 0, len(results))
	for _, r := range results {
		if t := strings.TrimSpace(r.PlainText); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
