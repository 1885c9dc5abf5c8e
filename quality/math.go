/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package quality

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// MathHelp is a help message used by flags in main
const MathHelp = `When composing the availability and class formulas, here is what you can do:
supported operations:
  evaluation is done with govaluate, please check https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  ready (list of aggregate ready flags, 1 or 0)
  masterlocked (list of master clock lock flags)
  dependentlocked (list of dependent clock lock flags)
  endpointready (list of endpoint ready flags)
  los (list of loss of signal flags)
  class (list of per tick clock classes)
supported functions:
  abs(value), max(a, b), min(a, b)
  mean(values), variance(values), stddev(values), p99(values)`

const (
	// MathDefaultAvailability is a default formula for availability
	MathDefaultAvailability = "mean(ready)"
	// MathDefaultClass is a default formula for clock class
	MathDefaultClass = "p99(class)"
)

// ErrNotEnoughData is returned when window is empty
var ErrNotEnoughData = errors.New("not enough data points")

func mean(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Mean()
}

func variance(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Variance()
}

func stddev(input []float64) float64 {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s.Stddev()
}

func p99(input []float64) float64 {
	sorted := make([]float64, len(input))
	copy(sorted, input)
	sort.Float64s(sorted)
	p1 := len(sorted) / 100 * 1
	return sorted[len(sorted)-1-p1]
}

var supportedVariables = []string{
	"ready",
	"masterlocked",
	"dependentlocked",
	"endpointready",
	"los",
	"class",
}

func isSupportedVar(varName string) bool {
	for _, v := range supportedVariables {
		if v == varName {
			return true
		}
	}
	return false
}

func listFunction(name string, f func([]float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("%s: wrong number of arguments: want 1, got %d", name, len(args))
		}
		vals, ok := args[0].([]float64)
		if !ok {
			return nil, fmt.Errorf("%s: argument must be a list", name)
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("%s: %w", name, ErrNotEnoughData)
		}
		return f(vals), nil
	}
}

func scalarFunction(name string, argc int, f func([]float64) float64) govaluate.ExpressionFunction {
	return func(args ...interface{}) (interface{}, error) {
		if len(args) != argc {
			return nil, fmt.Errorf("%s: wrong number of arguments: want %d, got %d", name, argc, len(args))
		}
		vals := make([]float64, argc)
		for i, a := range args {
			v, ok := a.(float64)
			if !ok {
				return nil, fmt.Errorf("%s: argument %d must be a number, got %T", name, i+1, a)
			}
			vals[i] = v
		}
		return f(vals), nil
	}
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": scalarFunction("abs", 1, func(v []float64) float64 { return math.Abs(v[0]) }),
	"max": scalarFunction("max", 2, func(v []float64) float64 { return math.Max(v[0], v[1]) }),
	"min": scalarFunction("min", 2, func(v []float64) float64 { return math.Min(v[0], v[1]) }),
	"mean":     listFunction("mean", mean),
	"variance": listFunction("variance", variance),
	"stddev":   listFunction("stddev", stddev),
	"p99":      listFunction("p99", p99),
}

func prepareExpression(exprStr string) (*govaluate.EvaluableExpression, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
	if err != nil {
		return nil, err
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return expr, nil
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func prepareMathParameters(points []*DataPoint) map[string]interface{} {
	size := len(points)
	ready := make([]float64, size)
	master := make([]float64, size)
	dependent := make([]float64, size)
	endpoint := make([]float64, size)
	los := make([]float64, size)
	class := make([]float64, size)
	for i, p := range points {
		ready[i] = b2f(p.Ready)
		master[i] = b2f(p.MasterLocked)
		dependent[i] = b2f(p.DependentLocked)
		endpoint[i] = b2f(p.EndpointReady)
		los[i] = b2f(p.LossOfSignal)
		class[i] = float64(p.Class)
	}
	return map[string]interface{}{
		"ready":           ready,
		"masterlocked":    master,
		"dependentlocked": dependent,
		"endpointready":   endpoint,
		"los":             los,
		"class":           class,
	}
}

// Math stores our math expressions in two forms: string and parsed
type Math struct {
	Availability     string `yaml:"availability"`
	availabilityExpr *govaluate.EvaluableExpression
	Class            string `yaml:"class"`
	classExpr        *govaluate.EvaluableExpression
}

// DefaultMath returns Math with default expressions
func DefaultMath() Math {
	return Math{
		Availability: MathDefaultAvailability,
		Class:        MathDefaultClass,
	}
}

// Prepare will prepare all math expressions
func (m *Math) Prepare() error {
	var err error
	m.availabilityExpr, err = prepareExpression(m.Availability)
	if err != nil {
		return fmt.Errorf("evaluating availability: %w", err)
	}
	m.classExpr, err = prepareExpression(m.Class)
	if err != nil {
		return fmt.Errorf("evaluating class: %w", err)
	}
	// argument types are only known at evaluation time
	if _, err := m.Evaluate([]*DataPoint{{}}); err != nil {
		m.availabilityExpr = nil
		m.classExpr = nil
		return err
	}
	return nil
}

func evaluateFloat(expr *govaluate.EvaluableExpression, params map[string]interface{}) (float64, error) {
	raw, err := expr.Evaluate(params)
	if err != nil {
		return 0, err
	}
	v, ok := raw.(float64)
	if !ok {
		return 0, fmt.Errorf("expression %q returned %T, want number", expr.String(), raw)
	}
	return v, nil
}

// Evaluate runs prepared expressions over data points
func (m *Math) Evaluate(points []*DataPoint) (*Report, error) {
	if m.availabilityExpr == nil || m.classExpr == nil {
		return nil, fmt.Errorf("math expressions are not prepared")
	}
	if len(points) == 0 {
		return nil, ErrNotEnoughData
	}
	params := prepareMathParameters(points)
	availability, err := evaluateFloat(m.availabilityExpr, params)
	if err != nil {
		return nil, fmt.Errorf("evaluating availability: %w", err)
	}
	class, err := evaluateFloat(m.classExpr, params)
	if err != nil {
		return nil, fmt.Errorf("evaluating class: %w", err)
	}
	return &Report{
		Samples:      len(points),
		Availability: availability,
		Class:        ClockClass(math.Round(class)),
	}, nil
}
