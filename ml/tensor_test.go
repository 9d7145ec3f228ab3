package ml

import (
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-6)

// numericGrad berechnet den Gradienten von f nach x per zentraler Differenz
func numericGrad(x *Tensor, f func() float64) []float64 {
	const h = 1e-6
	g := make([]float64, len(x.data))
	for i := range x.data {
		orig := x.data[i]
		x.data[i] = orig + h
		up := f()
		x.data[i] = orig - h
		down := f()
		x.data[i] = orig
		g[i] = (up - down) / (2 * h)
	}
	return g
}

// checkGrad vergleicht analytische und numerische Gradienten aller Eingaben
func checkGrad(t *testing.T, inputs []*Tensor, fn func(ctx *Context) *Tensor) {
	t.Helper()

	for _, in := range inputs {
		in.ZeroGrad()
	}
	fn(NewContext()).Sum(NewContext()).Backward()

	for n, in := range inputs {
		want := numericGrad(in, func() float64 {
			ctx := NewContext().NoGrad()
			return fn(ctx).Sum(ctx).Item()
		})
		if diff := cmp.Diff(want, in.Grad(), cmpopts.EquateApprox(1e-4, 1e-5)); diff != "" {
			t.Errorf("input %d gradient mismatch (-numeric +analytic):\n%s", n, diff)
		}
	}
}

func TestNewShapeMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	New([]float64{1, 2, 3}, 2, 2)
}

func TestBroadcastAdd(t *testing.T) {
	a := New([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	b := New([]float64{10, 20, 30}, 3)
	c := New([]float64{100, 200}, 2, 1)

	got := a.Add(nil, b).Add(nil, c)
	want := []float64{111, 122, 133, 214, 225, 236}
	if diff := cmp.Diff(want, got.Floats()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 3}, got.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestMatmul(t *testing.T) {
	a := New([]float64{1, 2, 3, 4, 5, 6}, 1, 2, 3)
	w := New([]float64{1, 0, 0, 1, 1, 1}, 3, 2)

	got := a.Matmul(nil, w)
	if diff := cmp.Diff([]float64{4, 5, 10, 11}, got.Floats()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 2}, got.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestPermute(t *testing.T) {
	a := New([]float64{0, 1, 2, 3, 4, 5}, 1, 2, 3)
	got := a.Permute(nil, 0, 2, 1)
	if diff := cmp.Diff([]float64{0, 3, 1, 4, 2, 5}, got.Floats()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 3, 2}, got.Shape()); diff != "" {
		t.Errorf("shape mismatch (-want +got):\n%s", diff)
	}
}

func TestConcatNarrow(t *testing.T) {
	a := New([]float64{1, 2, 3, 4}, 2, 2)
	b := New([]float64{5, 6}, 2, 1)

	c := Concat(nil, -1, a, b)
	if diff := cmp.Diff([]float64{1, 2, 5, 3, 4, 6}, c.Floats()); diff != "" {
		t.Errorf("concat mismatch (-want +got):\n%s", diff)
	}

	n := c.Narrow(nil, 1, 1, 2)
	if diff := cmp.Diff([]float64{2, 5, 4, 6}, n.Floats()); diff != "" {
		t.Errorf("narrow mismatch (-want +got):\n%s", diff)
	}
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	a := New([]float64{1, 2, 3, 1000, 1000, 1000}, 2, 3)
	got := a.Softmax(nil).Floats()
	for r := range 2 {
		sum := got[r*3] + got[r*3+1] + got[r*3+2]
		if math.Abs(sum-1) > 1e-12 {
			t.Errorf("row %d sums to %f", r, sum)
		}
	}
	if diff := cmp.Diff([]float64{1. / 3, 1. / 3, 1. / 3}, got[3:], approx); diff != "" {
		t.Errorf("stable softmax mismatch (-want +got):\n%s", diff)
	}
}

func TestLayerNormStatistics(t *testing.T) {
	g := NewGenerator(1)
	x := g.Normal(4, 16).Scale(nil, 3).AddScalar(nil, 5)
	y := x.LayerNorm(nil).Floats()
	for r := range 4 {
		row := y[r*16 : (r+1)*16]
		var mean, variance float64
		for _, v := range row {
			mean += v
		}
		mean /= 16
		for _, v := range row {
			variance += (v - mean) * (v - mean)
		}
		variance /= 16
		if math.Abs(mean) > 1e-9 || math.Abs(variance-1) > 1e-3 {
			t.Errorf("row %d: mean %f variance %f", r, mean, variance)
		}
	}
}

func TestGradients(t *testing.T) {
	g := NewGenerator(7)

	cases := []struct {
		name   string
		inputs []*Tensor
		fn     func(ctx *Context, in []*Tensor) *Tensor
	}{
		{"add broadcast", []*Tensor{g.Normal(2, 3), g.Normal(3)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Add(ctx, in[1]).Square(ctx)
		}},
		{"sub", []*Tensor{g.Normal(2, 3), g.Normal(2, 3)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Sub(ctx, in[1]).Square(ctx)
		}},
		{"mul broadcast", []*Tensor{g.Normal(2, 3, 4), g.Normal(2, 1, 4)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Mul(ctx, in[1])
		}},
		{"div", []*Tensor{g.Normal(3), g.Uniform(1, 2, 3)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Div(ctx, in[1])
		}},
		{"matmul", []*Tensor{g.Normal(2, 3, 4), g.Normal(4, 5)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Matmul(ctx, in[1]).Square(ctx)
		}},
		{"matmul batched", []*Tensor{g.Normal(2, 3, 4), g.Normal(2, 4, 2)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Matmul(ctx, in[1]).Square(ctx)
		}},
		{"softmax", []*Tensor{g.Normal(2, 5), g.Normal(2, 5)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Softmax(ctx).Mul(ctx, in[1])
		}},
		{"layernorm", []*Tensor{g.Normal(3, 6), g.Normal(3, 6)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].LayerNorm(ctx).Mul(ctx, in[1])
		}},
		{"l2norm", []*Tensor{g.Normal(2, 4), g.Normal(2, 4)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].L2Norm(ctx).Mul(ctx, in[1])
		}},
		{"activations", []*Tensor{g.Normal(8)}, func(ctx *Context, in []*Tensor) *Tensor {
			x := in[0]
			return x.GELU(ctx).Add(ctx, x.SiLU(ctx)).Add(ctx, x.Sigmoid(ctx)).Add(ctx, x.Tanh(ctx))
		}},
		{"trig", []*Tensor{g.Normal(6)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Scale(ctx, 2).Sin(ctx).Mul(ctx, in[0].Cos(ctx)).Add(ctx, in[0].Exp(ctx))
		}},
		{"shape ops", []*Tensor{g.Normal(2, 3, 4), g.Normal(2, 1, 3)}, func(ctx *Context, in []*Tensor) *Tensor {
			p := in[0].Permute(ctx, 0, 2, 1).Reshape(ctx, 2, -1, 3)
			c := Concat(ctx, 1, p, in[1])
			return c.Narrow(ctx, 1, 1, 3).Square(ctx)
		}},
		{"mean axis", []*Tensor{g.Normal(2, 3, 4)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].MeanAxis(ctx, 1).Square(ctx)
		}},
		{"mean", []*Tensor{g.Normal(3, 3)}, func(ctx *Context, in []*Tensor) *Tensor {
			return in[0].Square(ctx).Mean(ctx)
		}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			for _, in := range tt.inputs {
				in.SetRequiresGrad(true)
			}
			checkGrad(t, tt.inputs, func(ctx *Context) *Tensor {
				return tt.fn(ctx, tt.inputs)
			})
		})
	}
}

func TestNoGradContext(t *testing.T) {
	x := Param([]float64{1, 2}, 2)
	ctx := NewContext().NoGrad()
	y := x.Square(ctx).Sum(ctx)
	if y.RequiresGrad() {
		t.Fatal("no-grad context recorded a graph")
	}
	y.Backward()
	if x.Grad() != nil {
		t.Fatal("gradient propagated through no-grad context")
	}
}

func TestGradientAccumulatesOverReuse(t *testing.T) {
	x := Param([]float64{3}, 1)
	x.Mul(nil, x).Add(nil, x).Sum(nil).Backward()
	if diff := cmp.Diff([]float64{7}, x.Grad()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestHasNonFinite(t *testing.T) {
	if New([]float64{1, 2}, 2).HasNonFinite() {
		t.Error("finite tensor reported as non-finite")
	}
	if !New([]float64{1, math.NaN()}, 2).HasNonFinite() {
		t.Error("NaN not detected")
	}
	if !New([]float64{math.Inf(-1)}, 1).HasNonFinite() {
		t.Error("Inf not detected")
	}
}

func TestGeneratorDeterministic(t *testing.T) {
	a := NewGenerator(42).Normal(3, 4)
	b := NewGenerator(42).Normal(3, 4)
	if diff := cmp.Diff(a.Floats(), b.Floats()); diff != "" {
		t.Errorf("same seed produced different samples:\n%s", diff)
	}
	if cmp.Equal(a.Floats(), NewGenerator(43).Normal(3, 4).Floats()) {
		t.Error("different seeds produced identical samples")
	}
}

func TestFloat16s(t *testing.T) {
	x := New([]float64{0.5, -2, 1024}, 3)
	for i, h := range x.Float16s() {
		if float64(h.Float32()) != x.data[i] {
			t.Errorf("element %d: %v != %v", i, h.Float32(), x.data[i])
		}
	}
}

func TestDump(t *testing.T) {
	x := New([]float64{1, -2, 3, 4}, 2, 2)
	got := Dump(x, DumpWithPrecision(1))
	want := "[[ 1.0, -2.0],\n [ 3.0,  4.0]]"
	if got != want {
		t.Errorf("dump mismatch:\nwant %q\n got %q", want, got)
	}

	long := Zeros(100)
	if s := Dump(long, DumpWithThreshold(10), DumpWithEdgeItems(2)); !strings.Contains(s, "...") {
		t.Errorf("expected elided output, got %q", s)
	}

	cube := New([]float64{0, 1, 2, 3, 4, 5, 6, 7}, 2, 2, 2)
	got = Dump(cube, DumpWithPrecision(0))
	want = "[[[ 0,  1],\n  [ 2,  3]],\n\n [[ 4,  5],\n  [ 6,  7]]]"
	if got != want {
		t.Errorf("3d dump mismatch:\nwant %q\n got %q", want, got)
	}

	rows := New(make([]float64, 12), 6, 2)
	got = Dump(rows, DumpWithPrecision(0), DumpWithThreshold(4), DumpWithEdgeItems(1))
	want = "[[ 0,  0],\n ..., \n [ 0,  0]]"
	if got != want {
		t.Errorf("elided rows mismatch:\nwant %q\n got %q", want, got)
	}

	if s := Scalar(2.5).LogValue().String(); s != "2.5000" {
		t.Errorf("scalar log value %q", s)
	}
}
