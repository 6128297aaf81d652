package parser

import (
	"github.com/wippyai/wasm-wat/wasm"
	"github.com/wippyai/wasm-wat/wat/internal/token"
)

// parseElem parses the active, passive and declarative element segment
// forms, including the legacy "(elem (offset) funcidx*)" form.
func (p *Parser) parseElem() error {
	segIdx := uint32(len(p.mod.Elements))
	p.optID()
	seg := wasm.Element{Type: wasm.ValFuncRef}

	switch t := p.peek(); {
	case t == nil:
		return p.errEOF()
	case p.atKeyword("declare"):
		p.next()
		seg.Mode = wasm.SegmentDeclarative
	case t.Type == token.LParen || p.atIndex():
		seg.Mode = wasm.SegmentActive
		switch {
		case p.atClause("table"):
			p.pos += 2
			if err := p.elemTable(&seg, segIdx); err != nil {
				return err
			}
			if err := p.closeParen(); err != nil {
				return err
			}
		case p.atIndex():
			if err := p.elemTable(&seg, segIdx); err != nil {
				return err
			}
		}
		off, err := p.offsetExpr(wasm.SiteElemOffset, segIdx)
		if err != nil {
			return err
		}
		seg.Offset = off
		if next := p.peek(); next == nil || next.Type != token.Keyword {
			if err := p.funcIdxEntries(&seg, segIdx); err != nil {
				return err
			}
			p.mod.Elements = append(p.mod.Elements, seg)
			return p.closeParen()
		}
	default:
		seg.Mode = wasm.SegmentPassive
	}

	if p.atKeyword("func") {
		p.next()
		if err := p.funcIdxEntries(&seg, segIdx); err != nil {
			return err
		}
	} else {
		rt, err := p.refType()
		if err != nil {
			return err
		}
		seg.Type = rt
		if err := p.exprEntries(&seg, segIdx); err != nil {
			return err
		}
	}
	p.mod.Elements = append(p.mod.Elements, seg)
	return p.closeParen()
}

func (p *Parser) elemTable(seg *wasm.Element, segIdx uint32) error {
	idx, sym, err := p.index(wasm.SpaceTable)
	if err != nil {
		return err
	}
	if sym {
		p.names().Bind(wasm.Ref{Site: wasm.SiteElemTable, Owner: segIdx})
	}
	seg.TableIdx = idx
	return nil
}

// offsetExpr parses "(offset instr*)" or a single folded instruction.
func (p *Parser) offsetExpr(site wasm.Site, owner uint32) ([]byte, error) {
	if p.atClause("offset") {
		p.pos += 2
		expr, err := p.constExpr(site, owner, -1)
		if err != nil {
			return nil, err
		}
		return expr, p.closeParen()
	}
	t := p.peek()
	if t == nil {
		return nil, p.errEOF()
	}
	if t.Type != token.LParen {
		return nil, p.errAt(t, "unexpected token %q, expected offset expression", t.Value)
	}
	return p.foldedConstExpr(site, owner, -1)
}

func (p *Parser) funcIdxEntries(seg *wasm.Element, segIdx uint32) error {
	for p.atIndex() {
		idx, sym, err := p.index(wasm.SpaceFunc)
		if err != nil {
			return err
		}
		if sym {
			p.names().Bind(wasm.Ref{Site: wasm.SiteElem, Owner: segIdx, Pos: uint32(len(seg.FuncIdxs))})
		}
		seg.FuncIdxs = append(seg.FuncIdxs, idx)
	}
	return nil
}

// exprEntries parses "(item instr*)" and single folded instruction entries.
func (p *Parser) exprEntries(seg *wasm.Element, segIdx uint32) error {
	seg.Exprs = [][]byte{}
	for {
		t := p.peek()
		if t == nil {
			return p.errEOF()
		}
		if t.Type != token.LParen {
			return nil
		}
		entry := len(seg.Exprs)
		var expr []byte
		var err error
		if p.atClause("item") {
			p.pos += 2
			if expr, err = p.constExpr(wasm.SiteElemExpr, segIdx, entry); err == nil {
				err = p.closeParen()
			}
		} else {
			expr, err = p.foldedConstExpr(wasm.SiteElemExpr, segIdx, entry)
		}
		if err != nil {
			return err
		}
		seg.Exprs = append(seg.Exprs, expr)
	}
}

// parseData parses active and passive data segments.
func (p *Parser) parseData() error {
	segIdx := uint32(len(p.mod.Data))
	p.optID()
	seg := wasm.DataSegment{Mode: wasm.SegmentPassive}

	if t := p.peek(); t != nil && t.Type != token.String && t.Type != token.RParen {
		seg.Mode = wasm.SegmentActive
		memory := func() error {
			idx, sym, err := p.index(wasm.SpaceMemory)
			if err != nil {
				return err
			}
			if sym {
				p.names().Bind(wasm.Ref{Site: wasm.SiteDataMemory, Owner: segIdx})
			}
			seg.MemIdx = idx
			return nil
		}
		switch {
		case p.atClause("memory"):
			p.pos += 2
			if err := memory(); err != nil {
				return err
			}
			if err := p.closeParen(); err != nil {
				return err
			}
		case p.atIndex():
			if err := memory(); err != nil {
				return err
			}
		}
		off, err := p.offsetExpr(wasm.SiteDataOffset, segIdx)
		if err != nil {
			return err
		}
		seg.Offset = off
	}

	seg.Init = p.dataString()
	p.mod.Data = append(p.mod.Data, seg)
	return p.closeParen()
}
