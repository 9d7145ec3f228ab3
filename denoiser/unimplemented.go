package denoiser

import (
	"fmt"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/ml/nn"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// Unimplemented stands in for a denoiser variant that has no definition.
// Every call fails with an UnimplementedError.
type Unimplemented struct {
	Variant string
}

// Predict always returns an UnimplementedError.
func (u Unimplemented) Predict(*ml.Context, *ml.Tensor, *ml.Tensor, *ml.Tensor) (*ml.Tensor, error) {
	return nil, &errtypes.UnimplementedError{Op: fmt.Sprintf("denoiser %q: predict", u.Variant)}
}

// Parameters returns nothing.
func (u Unimplemented) Parameters() []nn.Parameter {
	return nil
}
