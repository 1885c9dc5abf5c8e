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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMathHelpers(t *testing.T) {
	in := []float64{1, 2, 3, 4}
	require.InDelta(t, 2.5, mean(in), 0.0001)
	require.InDelta(t, 1.6667, variance(in), 0.0001)
	require.InDelta(t, 1.2910, stddev(in), 0.0001)
	require.Equal(t, 4.0, p99(in))
	// p99 doesn't reorder the input
	require.Equal(t, []float64{1, 2, 3, 4}, in)

	big := make([]float64, 200)
	for i := range big {
		big[i] = float64(200 - i)
	}
	// top 1% excluded
	require.Equal(t, 198.0, p99(big))
}

func TestPrepareExpression(t *testing.T) {
	_, err := prepareExpression("mean(ready)")
	require.NoError(t, err)
	_, err = prepareExpression("max(abs(-1), min(1, 2))")
	require.NoError(t, err)
	_, err = prepareExpression("mean(offset)")
	require.ErrorContains(t, err, "unsupported variable")
	_, err = prepareExpression("mean(")
	require.Error(t, err)
}

func TestMathPrepare(t *testing.T) {
	m := DefaultMath()
	require.NoError(t, m.Prepare())

	m.Class = "p99(foo)"
	require.ErrorContains(t, m.Prepare(), "evaluating class")

	m = Math{Availability: "bar", Class: MathDefaultClass}
	require.ErrorContains(t, m.Prepare(), "evaluating availability")
}

func TestMathEvaluate(t *testing.T) {
	m := DefaultMath()
	_, err := m.Evaluate([]*DataPoint{{}})
	require.Error(t, err)

	require.NoError(t, m.Prepare())
	_, err = m.Evaluate(nil)
	require.ErrorIs(t, err, ErrNotEnoughData)

	points := []*DataPoint{
		{Ready: true, Class: ClockClassLocked},
		{Ready: true, Class: ClockClassLocked},
		{Ready: true, Class: ClockClassLocked},
		{Ready: false, Class: ClockClassHoldover},
	}
	r, err := m.Evaluate(points)
	require.NoError(t, err)
	require.Equal(t, &Report{Samples: 4, Availability: 0.75, Class: ClockClassHoldover}, r)
}

func TestMathEvaluateCustom(t *testing.T) {
	m := Math{
		Availability: "mean(masterlocked) * mean(dependentlocked) - mean(los)",
		Class:        "max(mean(class), 6)",
	}
	require.NoError(t, m.Prepare())
	points := []*DataPoint{
		{MasterLocked: true, DependentLocked: true, LossOfSignal: true, Class: ClockClassCalibrating},
		{MasterLocked: true, DependentLocked: true, Class: ClockClassCalibrating},
	}
	r, err := m.Evaluate(points)
	require.NoError(t, err)
	require.InDelta(t, 0.5, r.Availability, 0.0001)
	require.Equal(t, ClockClassCalibrating, r.Class)
}

func TestMathFunctionArgumentTypes(t *testing.T) {
	abs := functions["abs"]
	_, err := abs([]float64{1})
	require.ErrorContains(t, err, "must be a number")
	v, err := abs(-2.0)
	require.NoError(t, err)
	require.Equal(t, 2.0, v)

	_, err = functions["max"](1.0, []float64{1})
	require.ErrorContains(t, err, "argument 2")
	_, err = functions["min"]([]float64{1}, 1.0)
	require.ErrorContains(t, err, "argument 1")
	_, err = functions["min"](1.0)
	require.ErrorContains(t, err, "wrong number of arguments")
	_, err = functions["mean"](1.0)
	require.ErrorContains(t, err, "must be a list")
}

func TestMathPrepareRejectsListInScalarFunction(t *testing.T) {
	m := Math{Availability: "abs(ready)", Class: MathDefaultClass}
	require.ErrorContains(t, m.Prepare(), "evaluating availability")
	_, err := m.Evaluate([]*DataPoint{{Ready: true}})
	require.ErrorContains(t, err, "not prepared")

	m = Math{Availability: MathDefaultAvailability, Class: "max(class, 6)"}
	require.ErrorContains(t, m.Prepare(), "evaluating class")

	m = Math{Availability: "mean(ready) > 0.5", Class: MathDefaultClass}
	require.ErrorContains(t, m.Prepare(), "want number")
}
