package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chazu/hatchvm/vm/snapshot"
)

func newDumpCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "dump <snapshot>",
		Short: "Decode a serialized value and print it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			s, codec, err := snapshot.Decode(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			out := cmd.OutOrStdout()
			switch format {
			case "tree":
				printHeader(out, s, codec)
				printNode(out, s.Root, "", 1)
				return nil
			case "yaml":
				doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{yamlNode(s.Root)}}
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(doc); err != nil {
					return err
				}
				return enc.Close()
			default:
				return fmt.Errorf("unsupported format %q (must be tree or yaml)", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "tree", "output format (tree|yaml)")
	return cmd
}

func printHeader(w io.Writer, s *snapshot.Snapshot, f snapshot.Format) {
	headingColor.Fprintf(w, "snapshot %s\n", s.ID)
	fmt.Fprintf(w, "  format   %s (version %d)\n", f, s.Version)
	if s.Session != "" {
		fmt.Fprintf(w, "  session  %s\n", s.Session)
	}
	fmt.Fprintf(w, "  created  %s\n", time.Unix(0, s.Created).UTC().Format(time.RFC3339))
	headingColor.Fprintln(w, "root")
}

func printNode(w io.Writer, n snapshot.Node, label string, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprint(w, indent, label)
	kindColor.Fprint(w, n.Kind)

	switch n.Kind {
	case snapshot.NodeInteger:
		fmt.Fprintf(w, " %d\n", n.Int)
	case snapshot.NodeDecimal:
		fmt.Fprintf(w, " %g\n", n.Dec)
	case snapshot.NodeString:
		fmt.Fprintf(w, " %q\n", n.Str)
	case snapshot.NodeArray:
		dimColor.Fprintf(w, " [%d]\n", len(n.Items))
		for i, item := range n.Items {
			printNode(w, item, fmt.Sprintf("%d: ", i), depth+1)
		}
	case snapshot.NodeMap, snapshot.NodeInstance:
		if n.Kind == snapshot.NodeInstance {
			fmt.Fprintf(w, " %s", n.Str)
		}
		dimColor.Fprintf(w, " {%d}\n", len(n.Items))
		for i, item := range n.Items {
			key := "?"
			if i < len(n.Keys) {
				key = n.Keys[i]
			}
			printNode(w, item, strconv.Quote(key)+": ", depth+1)
		}
	default:
		fmt.Fprintln(w)
	}
}

// yamlNode keeps map and field order as stored in the snapshot.
func yamlNode(n snapshot.Node) *yaml.Node {
	scalar := func(tag, value string) *yaml.Node {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
	}
	switch n.Kind {
	case snapshot.NodeInteger:
		return scalar("!!int", strconv.FormatInt(int64(n.Int), 10))
	case snapshot.NodeDecimal:
		return scalar("!!float", strconv.FormatFloat(float64(n.Dec), 'g', -1, 32))
	case snapshot.NodeString:
		return scalar("!!str", n.Str)
	case snapshot.NodeArray:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.Items {
			seq.Content = append(seq.Content, yamlNode(item))
		}
		return seq
	case snapshot.NodeMap, snapshot.NodeInstance:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if n.Kind == snapshot.NodeInstance {
			m.Tag = "!" + n.Str
		}
		for i, item := range n.Items {
			key := ""
			if i < len(n.Keys) {
				key = n.Keys[i]
			}
			m.Content = append(m.Content, scalar("!!str", key), yamlNode(item))
		}
		return m
	default:
		return scalar("!!null", "null")
	}
}
