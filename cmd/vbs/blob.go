package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/bobg/vbs"
)

func (c maincmd) put(ctx context.Context, _ []string) error {
	blob, err := io.ReadAll(c.in)
	if err != nil {
		return errors.Wrap(err, "reading blob")
	}
	ref, receipt, err := c.b.Put(ctx, blob)
	if err != nil {
		return errors.Wrap(err, "storing blob")
	}

	fmt.Fprintf(c.out, "%s %s\n", ref, receipt)
	return nil
}

func (c maincmd) getBlob(ctx context.Context, args []string) error {
	ref, err := refArg(args, 0, "ref")
	if err != nil {
		return err
	}

	blob, _, err := c.b.Get(ctx, ref)
	if err != nil {
		return errors.Wrapf(err, "getting blob %s", ref)
	}
	_, err = c.out.Write(blob)
	return errors.Wrap(err, "writing blob")
}

func (c maincmd) listRefs(ctx context.Context, start string, _ []string) error {
	var startRef vbs.Ref
	if start != "" {
		var err error
		startRef, err = vbs.RefFromHex(start)
		if err != nil {
			return errors.Wrap(err, "parsing start ref")
		}
	}

	return c.b.ListRefs(ctx, startRef, func(ref vbs.Ref) error {
		_, err := fmt.Fprintln(c.out, ref)
		return err
	})
}
