package transform

import (
	"bytes"
	"compress/flate"
	"compress/lzw"
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/bobg/vbs"
)

// LZW is a Transformer implementing lzw compression.
type LZW struct {
	Order lzw.Order
}

// In implements Transformer.In.
func (l LZW) In(_ context.Context, inp vbs.Blob) (vbs.Blob, error) {
	buf := new(bytes.Buffer)
	w := lzw.NewWriter(buf, l.Order, 8)
	if _, err := w.Write(inp); err != nil {
		return nil, errors.Wrap(err, "compressing")
	}
	err := w.Close()
	return buf.Bytes(), errors.Wrap(err, "compressing")
}

// Out implements Transformer.Out.
func (l LZW) Out(_ context.Context, inp vbs.Blob) (vbs.Blob, error) {
	rr := lzw.NewReader(bytes.NewReader(inp), l.Order, 8)
	defer rr.Close()
	return io.ReadAll(rr)
}

// Flate is a Transformer implementing RFC1951 DEFLATE compression.
type Flate struct {
	Level int
}

// In implements Transformer.In.
func (f Flate) In(_ context.Context, inp vbs.Blob) (vbs.Blob, error) {
	buf := new(bytes.Buffer)
	level := f.Level
	if level < flate.HuffmanOnly || level > flate.BestCompression {
		level = flate.DefaultCompression
	}
	w, err := flate.NewWriter(buf, level)
	if err != nil {
		return nil, errors.Wrap(err, "creating compressor")
	}
	if _, err = w.Write(inp); err != nil {
		return nil, errors.Wrap(err, "compressing")
	}
	err = w.Close()
	return buf.Bytes(), errors.Wrap(err, "compressing")
}

// Out implements Transformer.Out.
func (f Flate) Out(_ context.Context, inp vbs.Blob) (vbs.Blob, error) {
	rr := flate.NewReader(bytes.NewReader(inp))
	defer rr.Close()
	return io.ReadAll(rr)
}

func transformerParam(conf map[string]interface{}) (Transformer, error) {
	name, ok := conf["transformer"].(string)
	if !ok {
		return nil, errors.New(`missing "transformer" parameter`)
	}
	switch name {
	case "lzw":
		return LZW{Order: lzw.LSB}, nil
	case "lzw-msb":
		return LZW{Order: lzw.MSB}, nil
	case "flate":
		level := flate.DefaultCompression
		if l, ok := conf["level"].(float64); ok {
			level = int(l)
		}
		return Flate{Level: level}, nil
	}
	return nil, errors.Errorf("unknown transformer %s", name)
}
