package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/bobg/vbs/crud"
	"github.com/bobg/vbs/entity"
)

// document is the content type the CLI stores.
// Its body is arbitrary JSON.
type document struct {
	Kind  string      `json:"kind"`
	Model string      `json:"model"`
	Body  interface{} `json:"body"`
}

func (d document) EntityType() entity.Type {
	return entity.Type{Name: d.Kind, Model: d.Model}
}

func (c maincmd) readBody() (interface{}, error) {
	var body interface{}
	err := json.NewDecoder(c.in).Decode(&body)
	return body, errors.Wrap(err, "decoding JSON body")
}

func (c maincmd) create(ctx context.Context, kind, model string, _ []string) error {
	if kind == "" {
		return errors.New("must supply -kind")
	}

	body, err := c.readBody()
	if err != nil {
		return err
	}

	e, err := crud.Create(ctx, c.b, document{Kind: kind, Model: model, Body: body})
	if err != nil {
		return errors.Wrap(err, "creating document")
	}
	return c.printJSON(e)
}

func (c maincmd) get(ctx context.Context, args []string) error {
	id, err := refArg(args, 0, "ID")
	if err != nil {
		return err
	}

	e, err := crud.Get[document](ctx, c.b, id)
	if err != nil {
		return errors.Wrapf(err, "getting document %s", id)
	}
	return c.printJSON(e)
}

func (c maincmd) update(ctx context.Context, args []string) error {
	addr, err := refArg(args, 0, "address")
	if err != nil {
		return err
	}

	body, err := c.readBody()
	if err != nil {
		return err
	}

	e, err := crud.Update(ctx, c.b, addr, func(d document) (document, error) {
		d.Body = body
		return d, nil
	})
	if err != nil {
		return errors.Wrapf(err, "updating document at %s", addr)
	}
	return c.printJSON(e)
}

func (c maincmd) delete(ctx context.Context, args []string) error {
	id, err := refArg(args, 0, "ID")
	if err != nil {
		return err
	}

	receipt, err := crud.Delete[document](ctx, c.b, id)
	if err != nil {
		return errors.Wrapf(err, "deleting document %s", id)
	}
	fmt.Fprintln(c.out, receipt)
	return nil
}

func (c maincmd) resolve(ctx context.Context, args []string) error {
	addr, err := refArg(args, 0, "address")
	if err != nil {
		return err
	}

	id, err := crud.ResolveIdentity(ctx, c.b, addr)
	if err != nil {
		return errors.Wrapf(err, "resolving %s", addr)
	}
	fmt.Fprintln(c.out, id)
	return nil
}

func (c maincmd) collection(ctx context.Context, tag string, args []string) error {
	base, err := refArg(args, 0, "base")
	if err != nil {
		return err
	}

	coll, err := crud.GetCollection[document, document](ctx, c.b, base, tag)
	if err != nil {
		return errors.Wrapf(err, "getting %s collection from %s", tag, base)
	}
	return c.printJSON(coll)
}
