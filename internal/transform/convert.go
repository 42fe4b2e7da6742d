// Package transform normalizes staged raster images to JPEG before packing.
package transform

import (
	"bufio"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"

	// Registered decoders for image.Decode.
	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"rezip/internal/faults"
	"rezip/internal/fileutil"
)

// Converter re-encodes one image file as JPEG.
type Converter interface {
	ConvertToJPEG(ctx context.Context, src, dst string, quality int) error
}

// ConverterFunc adapts a function to Converter.
type ConverterFunc func(ctx context.Context, src, dst string, quality int) error

// ConvertToJPEG calls f.
func (f ConverterFunc) ConvertToJPEG(ctx context.Context, src, dst string, quality int) error {
	return f(ctx, src, dst, quality)
}

// ImageConverter decodes png, jpeg, gif, bmp, and webp sources.
type ImageConverter struct{}

// ConvertToJPEG decodes src and writes it to dst, which must not exist. A
// failed encode removes the partial destination.
func (ImageConverter) ConvertToJPEG(ctx context.Context, src, dst string, quality int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return faults.Wrap(faults.ErrIO, stageTransform, "open", src, err)
	}
	defer in.Close()

	img, format, err := image.Decode(bufio.NewReader(in))
	if err != nil {
		return faults.Wrap(faults.ErrIO, stageTransform, "decode", src, err)
	}

	out, err := fileutil.CreateExclusive(dst, 0o644)
	if err != nil {
		return faults.Wrap(faults.ErrIO, stageTransform, "create", dst, err)
	}
	w := bufio.NewWriter(out)
	err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	if err == nil {
		err = w.Flush()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dst)
		return faults.Wrap(faults.ErrIO, stageTransform, "encode", fmt.Sprintf("%s from %s", dst, format), err)
	}
	return nil
}
