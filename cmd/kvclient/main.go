// Command kvclient sends requests to a kvserver.
//
//	kvclient [-addr host:port] [-format xml|msgpack|cbor|proto] put KEY VALUE
//	kvclient get KEY
//	kvclient del KEY
//	kvclient demo
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/IvanBrykalov/kvcache/client"
	"github.com/IvanBrykalov/kvcache/wire"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("kvclient", flag.ContinueOnError)
	fs.SetOutput(stderr)
	addr := fs.String("addr", "localhost:8080", "server address")
	format := fs.String("format", "xml", "wire format: xml | msgpack | cbor | proto")
	timeout := fs.Duration("timeout", 10*time.Second, "per-request timeout")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	f, err := wire.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	c := client.New(*addr, client.Options{Format: f, IOTimeout: *timeout})

	if err := dispatch(ctx, c, fs.Args(), stdout); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	return 0
}

func dispatch(ctx context.Context, c *client.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("usage: kvclient [flags] put KEY VALUE | get KEY | del KEY | demo")
	}
	switch cmd, rest := args[0], args[1:]; {
	case cmd == "put" && len(rest) == 2:
		if err := c.Put(ctx, rest[0], rest[1]); err != nil {
			return err
		}
		fmt.Fprintln(out, "Success")
	case cmd == "get" && len(rest) == 1:
		v, err := c.Get(ctx, rest[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, v)
	case cmd == "del" && len(rest) == 1:
		if err := c.Del(ctx, rest[0]); err != nil {
			return err
		}
		fmt.Fprintln(out, "Success")
	case cmd == "demo" && len(rest) == 0:
		return demo(ctx, c, out)
	default:
		return fmt.Errorf("bad command %q with %d argument(s)", cmd, len(rest))
	}
	return nil
}

// demo overwrites a key, deletes another and reads it back.
func demo(ctx context.Context, c *client.Client, out io.Writer) error {
	steps := []struct {
		desc string
		do   func() (string, error)
	}{
		{"put a=apple", func() (string, error) { return "Success", c.Put(ctx, "a", "apple") }},
		{"get a", func() (string, error) { return c.Get(ctx, "a") }},
		{"put a=aardvark", func() (string, error) { return "Success", c.Put(ctx, "a", "aardvark") }},
		{"get a", func() (string, error) { return c.Get(ctx, "a") }},
		{"put o=orange", func() (string, error) { return "Success", c.Put(ctx, "o", "orange") }},
		{"del o", func() (string, error) { return "Success", c.Del(ctx, "o") }},
		{"get o", func() (string, error) { return c.Get(ctx, "o") }},
	}
	for _, s := range steps {
		res, err := s.do()
		if err != nil {
			res = err.Error()
		}
		fmt.Fprintf(out, "%-16s -> %s\n", s.desc, res)
	}
	return nil
}
