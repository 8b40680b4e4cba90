package codegen

import "pywasmc/internal/ast"

// emitMatch implements the `match` statement: name binding, sequence,
// mapping, class, or-pattern, as-pattern, and star-pattern forms.
func (f *FuncCtx) emitMatch(n *ast.Node) {
	f.emitExpr(n.Subject)
	f.Buf.Emit("local.set $__match_subject")
	doneLbl := f.newLabel("match_done")
	f.Buf.Open("block %s", doneLbl)
	for _, c := range n.Cases {
		caseLbl := f.newLabel("match_case")
		f.Buf.Open("block %s", caseLbl)
		f.Buf.Emit("local.get $__match_subject")
		f.emitPatternTest(c.Pattern, caseLbl)
		if c.Guard != nil {
			f.emitExpr(c.Guard)
			f.Buf.Emit("call $rt_truthy")
			f.Buf.Emit("i32.eqz")
			f.Buf.Emit("br_if %s", caseLbl)
		}
		f.emitStmts(c.Body)
		f.Buf.Emit("br %s", doneLbl)
		f.Buf.Close()
	}
	f.Buf.Close()
}

// emitPatternTest consumes the subject value on the stack, binds any names
// the pattern introduces, and branches to failLbl if the pattern doesn't
// match — leaving nothing extra on the stack on either path.
func (f *FuncCtx) emitPatternTest(p *ast.Node, failLbl string) {
	switch p.Kind {
	case ast.KindPatternName:
		if p.PatName == "_" {
			f.Buf.Emit("drop")
			return
		}
		f.Buf.Emit("local.set %s", wasmLocalName(p.PatName))

	case ast.KindPatternValue:
		f.Buf.Emit("local.set $__match_tmp")
		f.Buf.Emit("local.get $__match_tmp")
		f.emitExpr(p.Value)
		f.Buf.Emit("call $rt_compare_eq")
		f.Buf.Emit("call $rt_truthy")
		f.Buf.Emit("i32.eqz")
		f.Buf.Emit("br_if %s", failLbl)

	case ast.KindPatternAs:
		f.Buf.Emit("local.tee %s", wasmLocalName(orUnderscore(p.PatAlias)))
		if p.Obj != nil {
			f.emitPatternTest(p.Obj, failLbl)
		} else {
			f.Buf.Emit("drop")
		}

	case ast.KindPatternOr:
		okLbl := f.newLabel("match_or_ok")
		nextLbl := f.newLabel("match_or_next")
		f.Buf.Emit("local.set $__match_tmp")
		for i, alt := range p.Values {
			f.Buf.Emit("local.get $__match_tmp")
			if i == len(p.Values)-1 {
				f.emitPatternTest(alt, failLbl)
			} else {
				f.Buf.Open("block %s", nextLbl)
				f.emitPatternTest(alt, nextLbl)
				f.Buf.Emit("br %s", okLbl)
				f.Buf.Close()
			}
		}
		f.Buf.Emit("%s:", okLbl)

	case ast.KindPatternSequence:
		f.Buf.Emit("local.set $__match_tmp")
		f.Buf.Emit("local.get $__match_tmp")
		f.Buf.Emit("i32.const %d", len(p.PatPatterns))
		f.Buf.Emit("call $rt_match_seq_len_ok")
		f.Buf.Emit("i32.eqz")
		f.Buf.Emit("br_if %s", failLbl)
		for i, sub := range p.PatPatterns {
			f.Buf.Emit("local.get $__match_tmp")
			f.Buf.Emit("i32.const %d", i)
			f.Buf.Emit("call $rt_subscript_get")
			f.emitPatternTest(sub, failLbl)
		}

	case ast.KindPatternStar:
		if p.PatName != "" && p.PatName != "_" {
			f.Buf.Emit("local.set %s", wasmLocalName(p.PatName))
		} else {
			f.Buf.Emit("drop")
		}

	case ast.KindPatternMapping:
		f.Buf.Emit("local.set $__match_tmp")
		for i, key := range p.PatKeys {
			f.Buf.Emit("local.get $__match_tmp")
			f.emitExpr(key)
			f.Buf.Emit("call $rt_dict_has_key")
			f.Buf.Emit("i32.eqz")
			f.Buf.Emit("br_if %s", failLbl)
			f.Buf.Emit("local.get $__match_tmp")
			f.emitExpr(key)
			f.Buf.Emit("call $rt_subscript_get")
			f.emitPatternTest(p.PatPatterns[i], failLbl)
		}

	case ast.KindPatternClass:
		f.Buf.Emit("local.set $__match_tmp")
		f.Buf.Emit("local.get $__match_tmp")
		f.emitExpr(p.PatCls)
		f.Buf.Emit("call $rt_isinstance")
		f.Buf.Emit("call $rt_truthy")
		f.Buf.Emit("i32.eqz")
		f.Buf.Emit("br_if %s", failLbl)
		for i, sub := range p.PatPatterns {
			f.Buf.Emit("local.get $__match_tmp")
			f.Buf.Emit("i32.const %d", i)
			f.Buf.Emit("call $rt_match_class_field")
			f.emitPatternTest(sub, failLbl)
		}

	default:
		f.fatalUnimplemented(p, "match pattern kind "+string(p.Kind))
	}
}

func orUnderscore(s string) string {
	if s == "" {
		return "_"
	}
	return s
}
