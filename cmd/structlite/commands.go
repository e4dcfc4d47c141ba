package main

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/anirudhraja/structlite"
	"github.com/anirudhraja/structlite/internal/logging"
	"github.com/anirudhraja/structlite/wire"
)

func layoutsCmd(g *globals) *cli.Command {
	return &cli.Command{
		Name:  "layouts",
		Usage: "List the loaded layouts",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			p, err := g.setup(cmd.Root().ErrWriter)
			if err != nil {
				return err
			}
			for _, name := range p.ListLayouts() {
				fmt.Fprintln(cmd.Root().Writer, name)
			}
			return nil
		},
	}
}

func inspectCmd(g *globals) *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the fields of a layout",
		ArgsUsage: "<layout>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := layoutArg(g, cmd)
			if err != nil {
				return err
			}
			out := cmd.Root().Writer
			fmt.Fprintf(out, "byte order:  %s\n", s.ByteOrder())
			fmt.Fprintf(out, "encoding:    %s\n", s.Encoding().Name())
			fmt.Fprintf(out, "static size: %d\n", s.StaticSize())
			fmt.Fprintf(out, "fixed size:  %t\n\n", s.IsFixedSize())

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "FIELD\tTYPE\tSIZE")
			for _, name := range s.FieldNames() {
				def, _ := s.Definition(name)
				fmt.Fprintf(tw, "%s\t%s\t%s\n", name, def.Type().Name(), sizeOf(s, def))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if omitted := s.Omitted(); len(omitted) > 0 {
				fmt.Fprintf(out, "\nderived: %s\n", strings.Join(omitted, ", "))
			}
			return nil
		},
	}
}

func sizeOf(s *structlite.Struct, def wire.Definition) string {
	if lf := def.LengthField(); lf != "" {
		return "len(" + lf + ")"
	}
	if !def.IsFixed() {
		return "computed"
	}
	ctx := &wire.Context{ByteOrder: s.ByteOrder(), Encoding: s.Encoding()}
	return fmt.Sprint(def.StaticSize(ctx))
}

func encodeCmd(g *globals) *cli.Command {
	var (
		input string
		raw   bool
	)
	return &cli.Command{
		Name:      "encode",
		Usage:     "Encode a JSON object with a layout",
		ArgsUsage: "<layout>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "JSON file, - for stdin",
				Value:       "-",
				Destination: &input,
			},
			&cli.BoolFlag{Name: "raw", Usage: "write binary instead of hex", Destination: &raw},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := layoutArg(g, cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, input)
			if err != nil {
				return err
			}

			dec := json.NewDecoder(bytes.NewReader(data))
			dec.UseNumber()
			var values wire.Values
			if err := dec.Decode(&values); err != nil {
				return fmt.Errorf("parse input: %w", err)
			}

			encoded, err := s.Serialize(values)
			if err != nil {
				return err
			}
			logging.Debug(logging.ComponentCLI, "encoded", "layout", cmd.Args().First(), "bytes", len(encoded))

			out := cmd.Root().Writer
			if raw {
				_, err = out.Write(encoded)
				return err
			}
			_, err = fmt.Fprintln(out, hex.EncodeToString(encoded))
			return err
		},
	}
}

func decodeCmd(g *globals) *cli.Command {
	var (
		input string
		raw   bool
	)
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode bytes with a layout and print them as JSON",
		ArgsUsage: "<layout>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "input file, - for stdin",
				Value:       "-",
				Destination: &input,
			},
			&cli.BoolFlag{Name: "raw", Usage: "input is binary instead of hex", Destination: &raw},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := layoutArg(g, cmd)
			if err != nil {
				return err
			}
			data, err := readInput(cmd, input)
			if err != nil {
				return err
			}
			if !raw {
				data, err = hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
				if err != nil {
					return fmt.Errorf("parse hex input: %w", err)
				}
			}

			src := wire.NewBufferSource(data)
			obj, err := s.DeserializeObject(ctx, src)
			if err != nil {
				return err
			}
			if src.Remaining() > 0 {
				logging.Warn(logging.ComponentCLI, "trailing bytes ignored", "count", src.Remaining())
			}

			out, err := obj.MarshalJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.Root().Writer, string(out))
			return err
		},
	}
}

// layoutArg loads the layouts and returns the one named by the first argument
func layoutArg(g *globals, cmd *cli.Command) (*structlite.Struct, error) {
	name := cmd.Args().First()
	if name == "" {
		return nil, fmt.Errorf("missing layout name")
	}
	p, err := g.setup(cmd.Root().ErrWriter)
	if err != nil {
		return nil, err
	}
	return p.Struct(name)
}

func readInput(cmd *cli.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		r := cmd.Root().Reader
		if r == nil {
			r = os.Stdin
		}
		return io.ReadAll(r)
	}
	return os.ReadFile(path)
}
