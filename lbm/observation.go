package lbm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/lucidrains/tri-lbm/ml"
	"github.com/lucidrains/tri-lbm/types/errtypes"
	"github.com/lucidrains/tri-lbm/vision"
)

// Observation is the raw input of one batch: one instruction per row, an
// image stack and an optional pose.
type Observation struct {
	Text []string

	// Images ist [B,3,H,W] (ein Frame) oder [B,F,3,H,W], Werte in [0,1]
	Images *ml.Tensor

	// Pose ist [B,d_pose], nil wenn das Modell ohne Pose gebaut wurde
	Pose *ml.Tensor
}

// Batch is an Observation with ground-truth actions [B,L,A] in physical units.
type Batch struct {
	Observation
	Actions *ml.Tensor
}

// frames validiert den Bildstapel und liefert (B, F, H, W)
func (m *Model) frames(images *ml.Tensor, batch int) (f, h, w int, err error) {
	if images == nil {
		return 0, 0, 0, errtypes.Configuration("lbm", "images", "[batch, 3, H, W] or [batch, frames, 3, H, W]", nil)
	}

	shape := images.Shape()
	switch len(shape) {
	case 4:
		f, h, w = 1, shape[2], shape[3]
		shape = []int{shape[0], 1, shape[1], h, w}
	case 5:
		f, h, w = shape[1], shape[3], shape[4]
	default:
		return 0, 0, 0, errtypes.Configuration("lbm", "images", "[batch, 3, H, W] or [batch, frames, 3, H, W]", images.Shape())
	}

	want := []int{batch, m.cfg.Frames, vision.Channels, h, w}
	for i := range want {
		if shape[i] != want[i] || shape[i] <= 0 {
			return 0, 0, 0, errtypes.Configuration("lbm", "images", want, images.Shape())
		}
	}
	return f, h, w, nil
}

// encodeImages encodes every frame of images concurrently and returns
// [B,F,d_image]. Frames are resized to the encoder resolution and CLIP
// normalized before encoding.
func (m *Model) encodeImages(ctx context.Context, images *ml.Tensor, batch int) (*ml.Tensor, error) {
	f, h, w, err := m.frames(images, batch)
	if err != nil {
		return nil, err
	}

	info := m.image.ModelInfo()
	plane := vision.Channels * h * w
	data := images.Data()
	out := make([][]float32, batch*f)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.threads)
	for i := range out {
		g.Go(func() error {
			pixels := make([]float32, plane)
			for j, v := range data[i*plane : (i+1)*plane] {
				pixels[j] = float32(v)
			}

			frame, err := vision.TensorFromFloats(pixels, h, w)
			if err != nil {
				return err
			}
			frame, err = frame.Resize(info.ImageSize, info.ImageSize, ml.SamplingModeBilinear)
			if err != nil {
				return err
			}

			emb, err := m.image.EncodeImage(gctx, frame.Normalize(vision.ClipMean, vision.ClipStd))
			if err != nil {
				return fmt.Errorf("encode frame %d of row %d: %w", i%f, i/f, err)
			}
			if len(emb) != info.EmbeddingDim {
				return errtypes.Configuration("lbm", "image_embedding", info.EmbeddingDim, len(emb))
			}
			out[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	flat := make([]float32, 0, batch*f*info.EmbeddingDim)
	for _, emb := range out {
		flat = append(flat, emb...)
	}
	return ml.FromFloat32s(flat, batch, f, info.EmbeddingDim), nil
}

func (m *Model) encodeText(ctx context.Context, texts []string) (*ml.Tensor, error) {
	embs, err := m.text.EncodeText(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("encode text: %w", err)
	}
	if len(embs) != len(texts) {
		return nil, errtypes.Configuration("lbm", "text_embeddings", len(texts), len(embs))
	}

	dim := m.text.Dim()
	flat := make([]float32, 0, len(texts)*dim)
	for _, emb := range embs {
		if len(emb) != dim {
			return nil, errtypes.Configuration("lbm", "text_embedding", dim, len(emb))
		}
		flat = append(flat, emb...)
	}
	return ml.FromFloat32s(flat, len(texts), dim), nil
}

// Condition encodes obs into the observation part of the condition vector
// [B, d_text + F*d_image + d_pose]. The encoders are frozen: the result
// carries no gradient.
func (m *Model) Condition(ctx context.Context, obs Observation) (*ml.Tensor, error) {
	if len(obs.Text) == 0 {
		return nil, errtypes.Configuration("lbm", "text", "at least one instruction", 0)
	}
	batch := len(obs.Text)

	text, err := m.encodeText(ctx, obs.Text)
	if err != nil {
		return nil, err
	}
	images, err := m.encodeImages(ctx, obs.Images, batch)
	if err != nil {
		return nil, err
	}

	mctx := ml.NewContext().NoGrad()
	if m.cfg.NormalizeEmbeddings {
		text = text.L2Norm(mctx)
		images = images.L2Norm(mctx)
	}
	return m.fusion.Observation(mctx, text, images, obs.Pose)
}
