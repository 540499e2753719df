package main

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/bobg/vbs/entity"
)

func (c maincmd) link(ctx context.Context, tag string, args []string) error {
	base, err := refArg(args, 0, "base")
	if err != nil {
		return err
	}
	target, err := refArg(args, 1, "target")
	if err != nil {
		return err
	}

	handle, err := entity.EmptyEntity{ID: target}.LinkFrom(ctx, c.b, base, tag)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, handle)
	return nil
}

func (c maincmd) unlink(ctx context.Context, tag string, args []string) error {
	base, err := refArg(args, 0, "base")
	if err != nil {
		return err
	}
	target, err := refArg(args, 1, "target")
	if err != nil {
		return err
	}

	found, err := entity.EmptyEntity{ID: target}.UnlinkFrom(ctx, c.b, base, tag)
	if err != nil {
		return err
	}
	if !found {
		return errors.Errorf("no %s link from %s to %s", tag, base, target)
	}
	return nil
}

func (c maincmd) move(ctx context.Context, tag string, args []string) error {
	oldBase, err := refArg(args, 0, "current base")
	if err != nil {
		return err
	}
	newBase, err := refArg(args, 1, "new base")
	if err != nil {
		return err
	}
	target, err := refArg(args, 2, "target")
	if err != nil {
		return err
	}

	handle, err := entity.EmptyEntity{ID: target}.MoveLinkFrom(ctx, c.b, tag, oldBase, newBase)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, handle)
	return nil
}

func (c maincmd) links(ctx context.Context, tag string, args []string) error {
	base, err := refArg(args, 0, "base")
	if err != nil {
		return err
	}

	links, err := c.b.Links(ctx, base, tag)
	if err != nil {
		return errors.Wrapf(err, "getting %s links from %s", tag, base)
	}
	for _, l := range links {
		fmt.Fprintf(c.out, "%s %s %s\n", l.Handle, l.Target, l.At.Format(time.RFC3339Nano))
	}
	return nil
}
