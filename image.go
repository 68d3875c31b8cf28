package glycin

import (
	"context"
	"fmt"

	"github.com/glycin-project/glycin/internal/hostproxy"
	"github.com/glycin-project/glycin/internal/pipeline"
	"github.com/glycin-project/glycin/internal/pool"
	"github.com/glycin-project/glycin/internal/wire"
	"github.com/glycin-project/glycin/internal/wiretypes"
)

// Image is a successfully initialized loader handle: the codec has
// parsed enough of the source to report its dimensions and metadata,
// and is ready to render frames on request.
type Image struct {
	rt     *Runtime
	lease  *pool.Lease
	rp     *hostproxy.RemoteProcess
	remote wiretypes.RemoteImage
}

// Details returns the image's early metadata from init.
func (img *Image) Details() wiretypes.ImageDetails {
	return img.remote.Details
}

// FrameOptions configures a single NextFrame call.
type FrameOptions struct {
	// Scale, if non-nil, asks the helper to render at (W, H) rather
	// than native resolution.
	Scale *wiretypes.ScaleRequest
	// Clip, if non-nil, asks the helper to decode only a sub-rectangle.
	Clip *wiretypes.ClipRequest
	// ApplyColorTransform runs C7's ICC color-state step against
	// ColorTarget; when false the frame's raw color state is preserved.
	ApplyColorTransform bool
	ColorTarget         pipeline.ColorTarget
	// AcceptableFormats restricts C7's memory-format step to converting
	// only into one of these formats; nil means any format is accepted
	// as decoded.
	AcceptableFormats []pipeline.MemoryFormatConstraint
}

// NextFrame asks the helper to render a frame and runs it through the
// host-side pipeline (orientation, color, memory-format) before
// returning it.
func (img *Image) NextFrame(ctx context.Context, opts FrameOptions) (*wiretypes.Frame, error) {
	req := wiretypes.FrameRequest{Scale: opts.Scale, Clip: opts.Clip}
	payload, err := wire.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("glycin: encoding frame request: %w", err)
	}

	reply, err := img.rp.Call(ctx, "loader.frame", payload)
	if err != nil {
		return nil, err
	}

	// The frame's pixel buffer itself travels as an ancillary FD outside
	// this msgpack body (see internal/wiretypes.BinaryData's doc
	// comment); binding that FD into frame.Texture depends on the same
	// SCM_RIGHTS wire extension flagged as a documented gap in
	// internal/hostproxy and DESIGN.md.
	var frame wiretypes.Frame
	if err := wire.Unmarshal(reply, &frame); err != nil {
		return nil, fmt.Errorf("glycin: decoding frame reply: %w", err)
	}

	// ValidateFrame dereferences the texture's backing segment, which is
	// only present once a real frame's pixel bytes have actually been
	// bound to frame.Texture (the still-missing ancillary-FD transport
	// noted above) — skip the check rather than crash on today's
	// always-nil segment, but run it the moment a segment is present so
	// the safety check is live as soon as that gap closes.
	if frame.Texture.Segment() != nil {
		if err := hostproxy.ValidateFrame(frame); err != nil {
			return nil, err
		}
	}

	var orientationHint *uint16
	if !img.remote.Details.TransformationIgnoreExif && frame.Details.ColorICCP == nil && img.remote.Details.MetadataEXIF != nil {
		exif, err := img.remote.Details.MetadataEXIF.GetFull()
		if err == nil {
			if hint, err := pipeline.ReadEXIFOrientation(exif); err == nil {
				orientationHint = &hint
			}
		}
	}

	pl := pipeline.Default(pipeline.Options{
		IgnoreEXIF:          img.remote.Details.TransformationIgnoreExif,
		OrientationHint:     orientationHint,
		ColorTarget:         opts.ColorTarget,
		ApplyColorTransform: opts.ApplyColorTransform,
		AcceptableFormats:   opts.AcceptableFormats,
	})
	out, err := pl.Run(ctx, frame)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Done tells the helper, in the background and without waiting for its
// reply, that it may release any state associated with this image's
// frame-request object, then returns the helper to the pool. Call it
// once the caller is finished requesting frames from this Image.
func (img *Image) Done(ctx context.Context) {
	if img.remote.FrameRequestID != "" {
		payload, err := wire.Marshal(img.remote.FrameRequestID)
		if err == nil {
			go img.rp.Call(ctx, "loader.done", payload)
		}
	}
	img.lease.Release()
}
