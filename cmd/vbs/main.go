// Command vbs is a general purpose CLI interface to versioned blob stores.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"os"

	"github.com/bobg/subcmd"
	"github.com/pkg/errors"

	"github.com/bobg/vbs"
	"github.com/bobg/vbs/store"
	_ "github.com/bobg/vbs/store/file"
	_ "github.com/bobg/vbs/store/gcs"
	_ "github.com/bobg/vbs/store/logging"
	_ "github.com/bobg/vbs/store/lru"
	_ "github.com/bobg/vbs/store/mem"
	_ "github.com/bobg/vbs/store/pg"
	_ "github.com/bobg/vbs/store/replica"
	_ "github.com/bobg/vbs/store/sqlite3"
	_ "github.com/bobg/vbs/store/transform"
)

type maincmd struct {
	b   vbs.Backend
	in  io.Reader
	out io.Writer
}

func main() {
	config := flag.String("config", "vbsconf.json", "path to config file")
	flag.Parse()

	if *config == "" {
		log.Fatal("Config value not set")
	}

	conf, err := readConfig(*config)
	if err != nil {
		log.Fatal(err)
	}

	typ, ok := conf["type"].(string)
	if !ok {
		log.Fatalf("Config file %s missing `type` parameter (known types: %v)", *config, store.Keys())
	}

	ctx := context.Background()

	b, err := store.Create(ctx, typ, conf)
	if err != nil {
		log.Fatalf("Creating %s-type store: %s", typ, err)
	}

	err = subcmd.Run(ctx, maincmd{b: b, in: os.Stdin, out: os.Stdout}, flag.Args())
	if err != nil {
		log.Fatal(err)
	}
}

func readConfig(filename string) (map[string]interface{}, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "opening config file %s", filename)
	}
	defer f.Close()

	var conf map[string]interface{}
	err = json.NewDecoder(f).Decode(&conf)
	return conf, errors.Wrapf(err, "decoding config file %s", filename)
}

func (c maincmd) Subcmds() subcmd.Map {
	tagParam := subcmd.Params("tag", subcmd.String, "", "link tag")

	return subcmd.Commands(
		"create", c.create, subcmd.Params(
			"kind", subcmd.String, "", "kind of document",
			"model", subcmd.String, "entry", "model of document",
		),
		"get", c.get, nil,
		"update", c.update, nil,
		"delete", c.delete, nil,
		"resolve", c.resolve, nil,
		"link", c.link, tagParam,
		"unlink", c.unlink, tagParam,
		"move", c.move, tagParam,
		"links", c.links, tagParam,
		"collection", c.collection, tagParam,
		"put", c.put, nil,
		"get-blob", c.getBlob, nil,
		"list-refs", c.listRefs, subcmd.Params(
			"start", subcmd.String, "", "start after this ref",
		),
	)
}

func (c maincmd) printJSON(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(v), "writing JSON")
}

func refArg(args []string, n int, what string) (vbs.Ref, error) {
	if len(args) <= n {
		return vbs.Zero, errors.Errorf("missing %s", what)
	}
	ref, err := vbs.RefFromHex(args[n])
	return ref, errors.Wrapf(err, "decoding %s %s", what, args[n])
}
