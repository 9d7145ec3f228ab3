package conditioning

import (
	"slices"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/types/errtypes"
)

// Dims fixes the widths of every condition component at construction.
type Dims struct {
	Time   int // 2*dim
	Text   int
	Image  int
	Frames int
	Pose   int // 0 = keine Pose
}

// Observation returns the width of the non-time part.
func (d Dims) Observation() int {
	return d.Text + d.Frames*d.Image + d.Pose
}

// Condition returns the full condition width.
func (d Dims) Condition() int {
	return d.Time + d.Observation()
}

// Validate checks that every width is usable.
func (d Dims) Validate() error {
	switch {
	case d.Time <= 0:
		return errtypes.Configuration("fusion", "time", "> 0", d.Time)
	case d.Text <= 0:
		return errtypes.Configuration("fusion", "text", "> 0", d.Text)
	case d.Image <= 0:
		return errtypes.Configuration("fusion", "image", "> 0", d.Image)
	case d.Frames <= 0:
		return errtypes.Configuration("fusion", "frames", "> 0", d.Frames)
	case d.Pose < 0:
		return errtypes.Configuration("fusion", "pose", ">= 0", d.Pose)
	}
	return nil
}

// Fusion concatenates condition components after checking their shapes.
type Fusion struct {
	Dims Dims
}

// NewFusion validates dims and returns a Fusion.
func NewFusion(dims Dims) (*Fusion, error) {
	if err := dims.Validate(); err != nil {
		return nil, err
	}
	return &Fusion{Dims: dims}, nil
}

func checkShape(field string, t *ml.Tensor, want []int) error {
	if t == nil {
		return errtypes.Configuration("fusion", field, want, nil)
	}
	if !slices.Equal(t.Shape(), want) {
		return errtypes.Configuration("fusion", field, want, t.Shape())
	}
	return nil
}

// Observation flattens text [B,d_text], images [B,F,d_image] frame-major and
// pose [B,d_pose] into [B, d_text + F*d_image + d_pose]. pose must be nil
// when the pose width is zero.
func (f *Fusion) Observation(ctx *ml.Context, text, images, pose *ml.Tensor) (*ml.Tensor, error) {
	if text == nil || text.Rank() != 2 {
		return nil, errtypes.Configuration("fusion", "text", "[batch, d_text]", shapeOf(text))
	}

	b := text.Dim(0)
	if err := checkShape("text", text, []int{b, f.Dims.Text}); err != nil {
		return nil, err
	}
	if err := checkShape("images", images, []int{b, f.Dims.Frames, f.Dims.Image}); err != nil {
		return nil, err
	}

	parts := []*ml.Tensor{text, images.Reshape(ctx, b, f.Dims.Frames*f.Dims.Image)}
	switch {
	case f.Dims.Pose == 0 && pose != nil:
		return nil, errtypes.Configuration("fusion", "pose", "absent", pose.Shape())
	case f.Dims.Pose > 0:
		if err := checkShape("pose", pose, []int{b, f.Dims.Pose}); err != nil {
			return nil, err
		}
		parts = append(parts, pose)
	}

	return ml.Concat(ctx, -1, parts...), nil
}

// WithTime prepends time features [B, Time] to an observation vector.
func (f *Fusion) WithTime(ctx *ml.Context, time, obs *ml.Tensor) (*ml.Tensor, error) {
	if obs == nil || obs.Rank() != 2 {
		return nil, errtypes.Configuration("fusion", "observation", "[batch, d_obs]", shapeOf(obs))
	}

	b := obs.Dim(0)
	if err := checkShape("observation", obs, []int{b, f.Dims.Observation()}); err != nil {
		return nil, err
	}
	if err := checkShape("time", time, []int{b, f.Dims.Time}); err != nil {
		return nil, err
	}
	return ml.Concat(ctx, -1, time, obs), nil
}

// Fuse builds the full condition vector [B, Condition()].
func (f *Fusion) Fuse(ctx *ml.Context, time, text, images, pose *ml.Tensor) (*ml.Tensor, error) {
	obs, err := f.Observation(ctx, text, images, pose)
	if err != nil {
		return nil, err
	}
	return f.WithTime(ctx, time, obs)
}

func shapeOf(t *ml.Tensor) any {
	if t == nil {
		return nil
	}
	return t.Shape()
}
