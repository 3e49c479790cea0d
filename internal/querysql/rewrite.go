package querysql

import (
	"strconv"
	"strings"
	"text/template/parse"
)

const bindFunc = "bind"

// hintedHelpers receive the bind-name hint of their argument as an extra
// leading string argument inserted at compile time.
var hintedHelpers = map[string]bool{
	"inclause": true,
}

// rewriteTree routes every output action of tr through bind. Actions that
// only declare or assign variables print nothing and are left alone.
func rewriteTree(tr *parse.Tree) {
	rewriteList(tr, tr.Root)
}

func rewriteList(tr *parse.Tree, list *parse.ListNode) {
	if list == nil {
		return
	}
	for _, n := range list.Nodes {
		rewriteNode(tr, n)
	}
}

func rewriteNode(tr *parse.Tree, n parse.Node) {
	switch n := n.(type) {
	case *parse.ActionNode:
		insertHints(n.Pipe)
		if len(n.Pipe.Decl) == 0 {
			appendBind(tr, n.Pipe)
		}
	case *parse.IfNode:
		rewriteList(tr, n.List)
		rewriteList(tr, n.ElseList)
	case *parse.RangeNode:
		rewriteList(tr, n.List)
		rewriteList(tr, n.ElseList)
	case *parse.WithNode:
		rewriteList(tr, n.List)
		rewriteList(tr, n.ElseList)
	case *parse.ListNode:
		rewriteList(tr, n)
	}
}

// appendBind turns {{ X }} into {{ X | bind "hint" }}.
func appendBind(tr *parse.Tree, pipe *parse.PipeNode) {
	hint := pipeHint(pipe)
	cmd := &parse.CommandNode{
		NodeType: parse.NodeCommand,
		Pos:      pipe.Pos,
		Args: []parse.Node{
			parse.NewIdentifier(bindFunc).SetTree(tr).SetPos(pipe.Pos),
			stringNode(hint, pipe.Pos),
		},
	}
	pipe.Cmds = append(pipe.Cmds, cmd)
}

// insertHints rewrites `inclause X` and `X | inclause` so the helper learns
// the bind name of X.
func insertHints(pipe *parse.PipeNode) {
	for i, cmd := range pipe.Cmds {
		for _, arg := range cmd.Args {
			if sub, ok := arg.(*parse.PipeNode); ok {
				insertHints(sub)
			}
		}
		if len(cmd.Args) == 0 {
			continue
		}
		id, ok := cmd.Args[0].(*parse.IdentifierNode)
		if !ok || !hintedHelpers[id.Ident] {
			continue
		}
		hint := ""
		if len(cmd.Args) > 1 {
			hint = nodeHint(cmd.Args[1])
		} else if i > 0 {
			hint = cmdHint(pipe.Cmds[i-1])
		}
		if hint == "" {
			hint = id.Ident
		}
		args := make([]parse.Node, 0, len(cmd.Args)+1)
		args = append(args, cmd.Args[0], stringNode(hint, cmd.Pos))
		args = append(args, cmd.Args[1:]...)
		cmd.Args = args
	}
}

func stringNode(s string, pos parse.Pos) *parse.StringNode {
	return &parse.StringNode{
		NodeType: parse.NodeString,
		Pos:      pos,
		Quoted:   strconv.Quote(s),
		Text:     s,
	}
}

// pipeHint names the value a pipeline prints: the last field, chain or
// variable it mentions, else the last function name.
func pipeHint(pipe *parse.PipeNode) string {
	for i := len(pipe.Cmds) - 1; i >= 0; i-- {
		if h := cmdHint(pipe.Cmds[i]); h != "" {
			return h
		}
	}
	for i := len(pipe.Cmds) - 1; i >= 0; i-- {
		if len(pipe.Cmds[i].Args) > 0 {
			if id, ok := pipe.Cmds[i].Args[0].(*parse.IdentifierNode); ok {
				return sanitizeName(id.Ident)
			}
		}
	}
	return "param"
}

func cmdHint(cmd *parse.CommandNode) string {
	for j := len(cmd.Args) - 1; j >= 0; j-- {
		if h := nodeHint(cmd.Args[j]); h != "" {
			return h
		}
	}
	return ""
}

func nodeHint(n parse.Node) string {
	switch n := n.(type) {
	case *parse.FieldNode:
		return lastIdent(n.Ident)
	case *parse.ChainNode:
		if len(n.Field) > 0 {
			return lastIdent(n.Field)
		}
		return nodeHint(n.Node)
	case *parse.VariableNode:
		if len(n.Ident) > 1 {
			return lastIdent(n.Ident[1:])
		}
		if len(n.Ident) == 1 && n.Ident[0] != "$" {
			return sanitizeName(strings.TrimPrefix(n.Ident[0], "$"))
		}
	case *parse.PipeNode:
		if len(n.Cmds) > 0 {
			return cmdHint(n.Cmds[len(n.Cmds)-1])
		}
	}
	return ""
}

func lastIdent(idents []string) string {
	if len(idents) == 0 {
		return ""
	}
	return sanitizeName(idents[len(idents)-1])
}

// sanitizeName keeps bind names usable as :name and %(name)s markers.
func sanitizeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "param"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "p" + out
	}
	return out
}

// templateRefs lists the names of templates invoked from tr.
func templateRefs(tr *parse.Tree) []string {
	var refs []string
	var walk func(n parse.Node)
	walk = func(n parse.Node) {
		switch n := n.(type) {
		case *parse.ListNode:
			if n == nil {
				return
			}
			for _, c := range n.Nodes {
				walk(c)
			}
		case *parse.TemplateNode:
			refs = append(refs, n.Name)
		case *parse.IfNode:
			walk(n.List)
			if n.ElseList != nil {
				walk(n.ElseList)
			}
		case *parse.RangeNode:
			walk(n.List)
			if n.ElseList != nil {
				walk(n.ElseList)
			}
		case *parse.WithNode:
			walk(n.List)
			if n.ElseList != nil {
				walk(n.ElseList)
			}
		}
	}
	if tr.Root != nil {
		walk(tr.Root)
	}
	return refs
}
