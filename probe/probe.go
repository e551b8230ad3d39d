// Package probe inspects raw image buffers. A probe never fails: anything it
// cannot read is reported as invalid metadata so the caller can pass the
// original through.
package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/nvr-ai/go-transcode/codec"
	"github.com/nvr-ai/go-transcode/images"
	"github.com/nvr-ai/go-transcode/logger"
)

// Probe reports the dimensions, frame count and format of buf.
//
// The buffer is sniffed first; non-image content is rejected without calling
// the backend. Backend errors and panics yield images.Invalid().
//
// Arguments:
//   - ctx: Request context, used for logging.
//   - p: The backend prober.
//   - buf: The raw image bytes.
//
// Returns:
//   - images.Metadata: Valid metadata, or images.Invalid().
func Probe(ctx context.Context, p codec.Prober, buf []byte) (meta images.Metadata) {
	if len(buf) == 0 {
		return images.Invalid()
	}

	mime := Sniff(buf)
	if !strings.HasPrefix(mime, "image/") {
		logger.DebugCtx(ctx, "Probe rejected non-image buffer", zap.String("mime", mime))
		return images.Invalid()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.WarnCtx(ctx, "Probe recovered from decoder panic",
				zap.String("mime", mime),
				zap.String("panic", fmt.Sprint(r)),
			)
			meta = images.Invalid()
		}
	}()

	got, err := p.Probe(ctx, buf)
	if err != nil {
		logger.DebugCtx(ctx, "Probe failed", zap.String("mime", mime), zap.Error(err))
		return images.Invalid()
	}

	format := got.Format
	if format == images.FormatUnknown {
		format, _ = images.ParseFormat(mime)
	}

	meta = images.NewMetadata(got.Width, got.Height, got.Pages, format)
	if meta.Valid {
		meta.MIMEType = mime
	}
	return meta
}

// Sniff returns the detected MIME type of buf without parameters, e.g.
// "image/png". Unknown content is "application/octet-stream".
func Sniff(buf []byte) string {
	for m := mimetype.Detect(buf); m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "image/") {
			return baseType(m.String())
		}
	}
	return baseType(mimetype.Detect(buf).String())
}

func baseType(mime string) string {
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		return strings.TrimSpace(mime[:i])
	}
	return mime
}
