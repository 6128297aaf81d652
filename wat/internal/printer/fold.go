package printer

import (
	"fmt"

	"github.com/wippyai/wasm-wat/wasm"
)

// node is one folded instruction. Children are operands, written before
// the instruction; body and alt hold block contents and the else arm.
type node struct {
	head     string
	op       byte
	children []*node
	body     []*node
	alt      []*node
	hasElse  bool
	pushes   int
}

// Folding only nests a run of preceding single-value instructions under
// their consumer, so the emitted instruction order never changes.
func (p *printer) foldedBody(instrs []wasm.Instruction, fc *funcCtx) error {
	pos := 0
	seq, err := p.fold(instrs, &pos, fc)
	if err != nil {
		return err
	}
	if pos != len(instrs) {
		return fmt.Errorf("unbalanced %s at offset %d", instrs[pos].Info().Name, instrs[pos].Offset)
	}
	for _, n := range seq {
		p.printNode(n, 2)
	}
	return nil
}

// fold builds the nodes of one instruction sequence, stopping at the end or
// else that closes it.
func (p *printer) fold(instrs []wasm.Instruction, pos *int, fc *funcCtx) ([]*node, error) {
	var seq []*node
	for *pos < len(instrs) {
		in := &instrs[*pos]
		switch in.Opcode {
		case wasm.OpEnd, wasm.OpElse:
			return seq, nil
		case wasm.OpBlock, wasm.OpLoop, wasm.OpIf:
			n, err := p.foldBlock(instrs, pos, fc)
			if err != nil {
				return nil, err
			}
			if in.Opcode == wasm.OpIf {
				seq, n.children = takeOperands(seq, 1)
			}
			seq = append(seq, n)
		default:
			head, err := p.instr(in, wasm.SiteCode, fc.fn, uint32(in.Offset), fc)
			if err != nil {
				return nil, err
			}
			pops, pushes := p.arity(in, fc)
			n := &node{head: head, op: in.Opcode, pushes: pushes}
			seq, n.children = takeOperands(seq, pops)
			seq = append(seq, n)
			*pos++
		}
	}
	return seq, nil
}

func (p *printer) foldBlock(instrs []wasm.Instruction, pos *int, fc *funcCtx) (*node, error) {
	in := &instrs[*pos]
	head, err := p.blockHead(in, fc)
	if err != nil {
		return nil, err
	}
	_, results, _ := p.blockArity(in.Imm.(wasm.BlockImm))
	n := &node{head: head, op: in.Opcode, pushes: results}
	*pos++

	if n.body, err = p.fold(instrs, pos, fc); err != nil {
		return nil, err
	}
	if *pos < len(instrs) && instrs[*pos].Opcode == wasm.OpElse {
		if in.Opcode != wasm.OpIf {
			return nil, fmt.Errorf("else outside if at offset %d", instrs[*pos].Offset)
		}
		*pos++
		n.hasElse = true
		if n.alt, err = p.fold(instrs, pos, fc); err != nil {
			return nil, err
		}
	}
	if *pos >= len(instrs) || instrs[*pos].Opcode != wasm.OpEnd {
		return nil, fmt.Errorf("unterminated %s at offset %d", in.Info().Name, in.Offset)
	}
	*pos++
	fc.pop()
	return n, nil
}

// takeOperands moves up to n trailing single-value nodes out of seq.
func takeOperands(seq []*node, n int) ([]*node, []*node) {
	k := 0
	for k < n && k < len(seq) && seq[len(seq)-1-k].pushes == 1 {
		k++
	}
	if k == 0 {
		return seq, nil
	}
	operands := append([]*node(nil), seq[len(seq)-k:]...)
	return seq[:len(seq)-k], operands
}

func (p *printer) printNode(n *node, depth int) {
	p.line(depth, "("+n.head)
	for _, c := range n.children {
		p.printNode(c, depth+1)
	}
	switch n.op {
	case wasm.OpIf:
		p.line(depth+1, "(then")
		for _, c := range n.body {
			p.printNode(c, depth+2)
		}
		p.add(")")
		if n.hasElse {
			p.line(depth+1, "(else")
			for _, c := range n.alt {
				p.printNode(c, depth+2)
			}
			p.add(")")
		}
	case wasm.OpBlock, wasm.OpLoop:
		for _, c := range n.body {
			p.printNode(c, depth+1)
		}
	}
	p.add(")")
}
