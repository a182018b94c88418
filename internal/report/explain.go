// Package report turns scored rows into the anomalies an investigator reads:
// display identifiers, formatted amounts and artifact attributions.
package report

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// ExplainStrategy attributes a flagged row to the forensic artifact that most
// likely drove the score. Implementations must be safe for concurrent use.
type ExplainStrategy interface {
	// Explain returns the artifact name for one flagged row. The vector is
	// the row's canonical feature vector and score its final 0-100 score.
	Explain(row domain.Row, vector []float64, score int) (string, error)
}

// BoundaryExplainer is the built-in attribution heuristic. A strongly
// negative V14 is the classic signature of card-present fraud in this feature
// space; anything else is attributed to V17.
type BoundaryExplainer struct{}

func (BoundaryExplainer) Explain(_ domain.Row, vector []float64, _ int) (string, error) {
	if vector[14] < -2 {
		return "V14", nil
	}
	return "V17", nil
}

// CELExplainer evaluates an operator-supplied CEL expression to pick the
// artifact. The expression sees the canonical features as lowercase variables
// plus the integer score, and must return a string.
type CELExplainer struct {
	program cel.Program
}

// NewCELExplainer compiles an attribution expression, for example:
//
//	v14 < -2.0 ? "V14" : (amount > 5000.0 ? "AMOUNT" : "V17")
func NewCELExplainer(expr string) (*CELExplainer, error) {
	opts := []cel.EnvOption{
		cel.Variable("score", cel.IntType),
	}
	for _, name := range domain.CanonicalFeatures() {
		opts = append(opts, cel.Variable(strings.ToLower(name), cel.DoubleType))
	}

	env, err := cel.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile explain expression: %w", issues.Err())
	}
	if ast.OutputType() != cel.StringType {
		return nil, fmt.Errorf("explain expression must return string, got %s", ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create explain program: %w", err)
	}

	return &CELExplainer{program: program}, nil
}

func (e *CELExplainer) Explain(_ domain.Row, vector []float64, score int) (string, error) {
	activation := make(map[string]any, len(vector)+1)
	for i, name := range domain.CanonicalFeatures() {
		activation[strings.ToLower(name)] = vector[i]
	}
	activation["score"] = score

	out, _, err := e.program.Eval(activation)
	if err != nil {
		return "", fmt.Errorf("explain evaluation error: %w", err)
	}

	s, ok := out.(types.String)
	if !ok {
		return "", fmt.Errorf("explain expression returned %T, want string", out)
	}
	return string(s), nil
}
