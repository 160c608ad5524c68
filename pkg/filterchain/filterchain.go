// Package filterchain carries a textual filter-chain description (e.g.
// "hwupload,scale=1280:720") as an ordered list of mutable nodes, so
// that device negotiation can inject options before the description is
// handed to libav's filter-graph parser.
package filterchain

import (
	"context"
	"fmt"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avhw/pkg/hwdevice"
)

// Arg is one argument of a filter node. Key is empty for positional
// arguments (e.g. the "1280" in "scale=1280:720").
type Arg struct {
	Key   string
	Value string
}

func (a Arg) String() string {
	if a.Key == "" {
		return a.Value
	}
	return a.Key + "=" + a.Value
}

// Node is one filter of a chain.
type Node struct {
	Name string
	Args []Arg
}

var _ hwdevice.FilterNode = (*Node)(nil)

func (n *Node) FilterName() string {
	return n.Name
}

// SetOption sets a keyed argument, replacing an existing one with the
// same key.
func (n *Node) SetOption(_ context.Context, key string, value string) error {
	if key == "" {
		return fmt.Errorf("an option key must not be empty")
	}
	for idx := range n.Args {
		if n.Args[idx].Key == key {
			n.Args[idx].Value = value
			return nil
		}
	}
	n.Args = append(n.Args, Arg{Key: key, Value: value})
	return nil
}

// Option returns the value of a keyed argument.
func (n *Node) Option(key string) (string, bool) {
	for _, arg := range n.Args {
		if arg.Key == key {
			return arg.Value, true
		}
	}
	return "", false
}

func (n *Node) String() string {
	if len(n.Args) == 0 {
		return n.Name
	}
	args := make([]string, 0, len(n.Args))
	for _, arg := range n.Args {
		args = append(args, arg.String())
	}
	return n.Name + "=" + strings.Join(args, ":")
}

// Chain is an ordered filter chain.
type Chain []*Node

// Parse parses a chain description of the form
// "name[=arg[:arg...]][,name...]". Escaping/quoting of separator
// characters inside argument values is not supported.
func Parse(s string) (Chain, error) {
	var chain Chain
	for _, token := range strings.Split(s, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			return nil, fmt.Errorf("empty filter in chain %q", s)
		}
		name, argsToken, hasArgs := strings.Cut(token, "=")
		if name == "" {
			return nil, fmt.Errorf("filter without a name in chain %q", s)
		}
		node := &Node{Name: name}
		if hasArgs {
			for _, argToken := range strings.Split(argsToken, ":") {
				key, value, keyed := strings.Cut(argToken, "=")
				if keyed {
					node.Args = append(node.Args, Arg{Key: key, Value: value})
				} else {
					node.Args = append(node.Args, Arg{Value: key})
				}
			}
		}
		chain = append(chain, node)
	}
	return chain, nil
}

// String reassembles the chain description (suitable for
// astiav.FilterGraph.Parse).
func (c Chain) String() string {
	tokens := make([]string, 0, len(c))
	for _, node := range c {
		tokens = append(tokens, node.String())
	}
	return strings.Join(tokens, ",")
}

func (c Chain) Nodes() []hwdevice.FilterNode {
	r := make([]hwdevice.FilterNode, 0, len(c))
	for _, node := range c {
		r = append(r, node)
	}
	return r
}

// Graph is a Chain together with the media types entering its sink; the
// combination is what device negotiation inspects.
type Graph struct {
	Chain      Chain
	MediaTypes []astiav.MediaType
}

var _ hwdevice.FilterGraph = (*Graph)(nil)

func (g *Graph) SinkInputMediaTypes() []astiav.MediaType {
	return g.MediaTypes
}

func (g *Graph) Nodes() []hwdevice.FilterNode {
	return g.Chain.Nodes()
}
