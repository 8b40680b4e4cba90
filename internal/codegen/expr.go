package codegen

import (
	"sort"
	"strconv"

	"pywasmc/internal/ast"
	"pywasmc/internal/types"
)

// emitExpr emits WAT that leaves exactly one tagged value of the runtime's
// top reference type on the operand stack.
func (f *FuncCtx) emitExpr(n *ast.Node) {
	if n == nil {
		f.Buf.Emit("ref.null $rt_any")
		return
	}
	switch n.Kind {
	case ast.KindInt:
		f.emitIntLiteral(n.Int)
	case ast.KindFloat:
		f.Buf.Emit("f64.const %s", strconv.FormatFloat(n.Float, 'g', -1, 64))
		f.Buf.Emit("call $rt_box_float")
	case ast.KindString:
		f.emitInternedString(n.Str)
	case ast.KindBytes:
		f.Buf.Emit("i32.const %d", f.C.InternString(string(n.Bytes)))
		f.Buf.Emit("call $rt_intern_bytes")
	case ast.KindBool:
		if n.Bool {
			f.Buf.Emit("global.get $rt_True")
		} else {
			f.Buf.Emit("global.get $rt_False")
		}
	case ast.KindNone:
		f.Buf.Emit("ref.null $rt_any")
	case ast.KindEllipsis:
		f.Buf.Emit("global.get $rt_Ellipsis")

	case ast.KindName:
		f.emitNameLoad(n.Id)

	case ast.KindUnaryOp:
		f.emitExpr(n.Operand)
		f.Buf.Emit("call $rt_unary_%s", unaryOpName(n.Op))

	case ast.KindBinOp:
		f.emitExpr(n.Left)
		f.emitExpr(n.Right)
		f.Buf.Emit("call $rt_%s_dispatch", binOpName(n.Op))

	case ast.KindBoolOp:
		f.emitBoolOp(n)

	case ast.KindCompareOp:
		f.emitCompareChain(n)

	case ast.KindWalrus:
		f.emitExpr(n.Value)
		f.Buf.Emit("local.tee %s", wasmLocalName(targetName(n.Target)))

	case ast.KindIfExpr:
		f.emitExpr(n.Test)
		f.Buf.Emit("call $rt_truthy")
		f.Buf.Open("if (result (ref null $rt_any))")
		f.Buf.Emit("then")
		f.emitExpr(n.Then)
		f.Buf.Emit("else")
		f.emitExpr(n.Else)
		f.Buf.Close()

	case ast.KindAttribute:
		f.emitAttributeLoad(n)

	case ast.KindSubscript:
		f.emitExpr(n.Obj)
		f.emitExpr(n.Index)
		f.Buf.Emit("call $rt_subscript_get")

	case ast.KindSlice:
		f.emitSliceBound(n.Lower)
		f.emitSliceBound(n.Upper)
		f.emitSliceBound(n.Step)
		f.Buf.Emit("call $rt_make_slice")

	case ast.KindCall:
		f.emitCall(n)

	case ast.KindLambda:
		f.emitClosureLiteral("<lambda>", n.Params, bodyOfLambda(n))

	case ast.KindList:
		f.emitSeqLiteral(n.Elts, "$rt_list_new", "$rt_list_append")
	case ast.KindSet:
		f.emitSeqLiteral(n.Elts, "$rt_set_new", "$rt_set_add")
	case ast.KindTuple:
		f.emitTupleLiteral(n.Elts)
	case ast.KindDict:
		f.emitDictLiteral(n)

	case ast.KindFString:
		f.emitFString(n)

	case ast.KindListComp:
		f.emitComprehension(n, compKindList)
	case ast.KindSetComp:
		f.emitComprehension(n, compKindSet)
	case ast.KindDictComp:
		f.emitComprehension(n, compKindDict)
	case ast.KindGenExp:
		f.emitComprehension(n, compKindGen)

	case ast.KindStarred:
		f.emitExpr(n.Value)

	case ast.KindYield:
		f.emitYield(n)
	case ast.KindYieldFr:
		f.fatalUnimplemented(n, "YieldFrom must be rewritten to a for-loop before codegen (see generator.go rewriteYieldFrom)")

	default:
		f.fatalUnimplemented(n, "expression kind "+string(n.Kind))
	}
}

func (f *FuncCtx) emitIntLiteral(v int64) {
	if types.FitsSmallInt(v) {
		f.Buf.Emit("i32.const %d", v)
		f.Buf.Emit("call $rt_pack_int")
	} else {
		f.Buf.Emit("i64.const %d", v)
		f.Buf.Emit("call $rt_box_bigint")
	}
}

func (f *FuncCtx) emitNameLoad(id string) {
	switch f.resolveName(id) {
	case nameLocal:
		f.Buf.Emit("local.get %s", wasmLocalName(id))
	case nameNonlocal:
		f.Buf.Emit("local.get $env")
		f.emitInternedString(id)
		f.Buf.Emit("call $rt_env_lookup")
	case nameGlobal:
		f.Buf.Emit("global.get $g_%s", sanitize(id))
	case nameBuiltin:
		f.Buf.Emit("i32.const %d ;; builtin func_idx for %s", builtinIndex(id), id)
		f.Buf.Emit("call $rt_make_builtin_closure")
	}
}

func builtinIndex(id string) int {
	for i, b := range BuiltinFuncNames {
		if b == id {
			return i
		}
	}
	return -1
}

func sanitize(id string) string { return id }

func unaryOpName(op string) string {
	switch op {
	case "-":
		return "neg"
	case "+":
		return "pos"
	case "not":
		return "not"
	case "~":
		return "invert"
	default:
		return "neg"
	}
}

func binOpName(op string) string {
	names := map[string]string{
		"+": "add", "-": "sub", "*": "mul", "/": "truediv", "//": "floordiv",
		"%": "mod", "**": "pow", "&": "and", "|": "or", "^": "xor",
		"<<": "lshift", ">>": "rshift", "@": "matmul",
	}
	if name, ok := names[op]; ok {
		return name
	}
	return "add"
}

// emitBoolOp implements short-circuit `and`/`or` with a WAT if/else block
// so the right operand's side effects happen only when needed.
func (f *FuncCtx) emitBoolOp(n *ast.Node) {
	isAnd := n.Op == "and"
	var emitRest func(i int)
	emitRest = func(i int) {
		if i == len(n.Values)-1 {
			f.emitExpr(n.Values[i])
			return
		}
		f.emitExpr(n.Values[i])
		f.Buf.Emit("local.set $__boolop_tmp")
		f.Buf.Emit("local.get $__boolop_tmp")
		f.Buf.Emit("call $rt_truthy")
		if !isAnd {
			f.Buf.Emit("i32.eqz")
		}
		f.Buf.Open("if (result (ref null $rt_any))")
		f.Buf.Emit("then")
		emitRest(i + 1)
		f.Buf.Emit("else")
		f.Buf.Emit("local.get $__boolop_tmp")
		f.Buf.Close()
	}
	emitRest(0)
}

// emitCompareChain lowers `a OP1 b OP2 c ...` without re-evaluating any
// middle operand twice.
func (f *FuncCtx) emitCompareChain(n *ast.Node) {
	if len(n.Values) == 2 {
		f.emitExpr(n.Values[0])
		f.emitExpr(n.Values[1])
		f.Buf.Emit("call $rt_compare_%s", compareOpName(n.Ops[0]))
		return
	}
	var rec func(i int)
	rec = func(i int) {
		f.emitExpr(n.Values[i])
		f.Buf.Emit("local.set $__cmp_tmp%d", i)
		f.Buf.Emit("local.get $__cmp_tmp%d", i)
		f.emitExpr(n.Values[i+1])
		if i+2 < len(n.Values) {
			f.Buf.Emit("local.set $__cmp_tmp%d", i+1)
			f.Buf.Emit("local.get $__cmp_tmp%d", i+1)
		}
		f.Buf.Emit("call $rt_compare_%s", compareOpName(n.Ops[i]))
		if i+2 < len(n.Values) {
			f.Buf.Emit("call $rt_truthy")
			f.Buf.Open("if (result (ref null $rt_any))")
			f.Buf.Emit("then")
			rec(i + 1)
			f.Buf.Emit("else")
			f.Buf.Emit("global.get $rt_False")
			f.Buf.Close()
		}
	}
	rec(0)
}

func compareOpName(op string) string {
	names := map[string]string{
		"==": "eq", "!=": "ne", "<": "lt", ">": "gt", "<=": "le", ">=": "ge",
		"is": "is", "is not": "is_not", "in": "in", "not in": "not_in",
	}
	if name, ok := names[op]; ok {
		return name
	}
	return "eq"
}

func targetName(t *ast.Node) string {
	if t != nil && t.Kind == ast.KindName {
		return t.Id
	}
	return "__walrus_tmp__"
}

// emitAttributeLoad handles attribute access on an instance and on the
// result of a super() call.
func (f *FuncCtx) emitAttributeLoad(n *ast.Node) {
	if n.Obj != nil && n.Obj.Kind == ast.KindCall && n.Obj.Func != nil &&
		n.Obj.Func.Kind == ast.KindName && n.Obj.Func.Id == "super" {
		f.emitSuperCall(n.Obj)
		f.emitInternedString(n.Attr)
		f.Buf.Emit("call $rt_super_getattr")
		return
	}
	f.emitExpr(n.Obj)
	f.emitInternedString(n.Attr)
	f.Buf.Emit("call $rt_getattr")
}

func (f *FuncCtx) emitSuperCall(call *ast.Node) {
	switch len(call.Args) {
	case 0:
		if f.Class != nil {
			f.Buf.Emit("global.get $class_%s", sanitize(f.Class.BaseName))
		} else {
			f.Buf.Emit("ref.null $rt_any")
		}
		f.Buf.Emit("local.get $self")
	default:
		f.emitExpr(call.Args[0])
		f.emitExpr(call.Args[1])
	}
	f.Buf.Emit("call $rt_make_super")
}

func (f *FuncCtx) emitSliceBound(n *ast.Node) {
	if n == nil {
		f.Buf.Emit("i32.const -999999 ;; sentinel: omitted bound")
		f.Buf.Emit("call $rt_pack_int")
		return
	}
	f.emitExpr(n)
}

// emitCall picks between a known-function direct call, an arity-1 builtin
// direct call, and the general indirect call through the closure table.
func (f *FuncCtx) emitCall(n *ast.Node) {
	if n.Func != nil && n.Func.Kind == ast.KindName {
		if n.Func.Id == "super" {
			f.emitSuperCall(n)
			return
		}
		if f.C.Classes[n.Func.Id] {
			f.emitInstantiate(n)
			return
		}
		if sig, ok := f.C.Funcs[n.Func.Id]; ok && f.resolveName(n.Func.Id) == nameGlobal {
			f.emitDirectCall(n, sig)
			return
		}
		if directArity1, ok := directBuiltins[n.Func.Id]; ok && len(n.Args) == 1 {
			f.emitExpr(n.Args[0])
			f.Buf.Emit("call %s", directArity1)
			return
		}
	}
	if n.Func != nil && n.Func.Kind == ast.KindAttribute {
		f.emitMethodCall(n)
		return
	}
	f.emitExpr(n.Func)
	f.emitArgChain(n.Args, n.Keywords)
	f.Buf.Emit("call $rt_call_indirect")
}

// emitInstantiate backs ClassName(args): allocate the dict- or array-backed
// shape this class's __slots__ declaration calls for, then call __init__
// (if the class or a base defines one) with the new instance prepended as
// self; the instance itself -- not __init__'s (always-None) return value --
// is the expression's result.
func (f *FuncCtx) emitInstantiate(n *ast.Node) {
	className := n.Func.Id
	nslots := len(f.C.ClassSlots[className])
	f.Buf.Emit("global.get $class_%s", sanitize(className))
	if nslots > 0 {
		f.Buf.Emit("i32.const %d", nslots)
		f.Buf.Emit("call $rt_slotted_new")
	} else {
		f.Buf.Emit("call $rt_object_new")
	}
	f.Buf.Emit("local.set $__self_tmp")
	f.Buf.Emit("global.get $class_%s", sanitize(className))
	f.emitInternedString("__init__")
	f.Buf.Emit("call $rt_class_find_method")
	f.Buf.Emit("local.set $__init_fn")
	f.Buf.Emit("local.get $__init_fn")
	f.Buf.Emit("ref.is_null")
	f.Buf.Emit("i32.eqz")
	f.Buf.Open("if")
	f.Buf.Emit("then")
	f.Buf.Emit("local.get $__init_fn")
	f.Buf.Emit("global.get $rt_EmptyList")
	f.Buf.Emit("local.get $__self_tmp")
	f.Buf.Emit("call $rt_pair_cons")
	f.emitArgChainOnto(n.Args, n.Keywords)
	f.Buf.Emit("call $rt_call_indirect")
	f.Buf.Emit("drop")
	f.Buf.Close()
	f.Buf.Emit("local.get $__self_tmp")
}

// emitMethodCall backs obj.method(args) and super().method(args): a plain
// attribute load only resolves the unbound function (see emitAttributeLoad),
// so the call site is responsible for threading the receiver through as the
// method's first positional argument itself.
func (f *FuncCtx) emitMethodCall(n *ast.Node) {
	attr := n.Func
	isSuper := attr.Obj != nil && attr.Obj.Kind == ast.KindCall && attr.Obj.Func != nil &&
		attr.Obj.Func.Kind == ast.KindName && attr.Obj.Func.Id == "super"
	if isSuper {
		f.emitSuperCall(attr.Obj)
		f.emitInternedString(attr.Attr)
		f.Buf.Emit("call $rt_super_getattr")
		f.Buf.Emit("global.get $rt_EmptyList")
		f.Buf.Emit("local.get $self")
		f.Buf.Emit("call $rt_pair_cons")
	} else {
		f.emitExpr(attr.Obj)
		f.Buf.Emit("local.set $__self_tmp")
		f.Buf.Emit("local.get $__self_tmp")
		f.emitInternedString(attr.Attr)
		f.Buf.Emit("call $rt_getattr")
		f.Buf.Emit("global.get $rt_EmptyList")
		f.Buf.Emit("local.get $__self_tmp")
		f.Buf.Emit("call $rt_pair_cons")
	}
	f.emitArgChainOnto(n.Args, n.Keywords)
	f.Buf.Emit("call $rt_call_indirect")
}

var directBuiltins = map[string]string{
	"len": "$rt_len", "abs": "$rt_abs", "bool": "$rt_bool", "ord": "$rt_ord",
	"chr": "$rt_chr", "callable": "$rt_callable", "repr": "$rt_repr",
}

// emitDirectCall fills each declared parameter from, in order of
// preference: a positional argument, a matching keyword argument, or the
// parameter's default thunk. A keyword naming a parameter already filled
// positionally, or naming nothing in sig.ParamNames, is ignored; no error
// is raised for it.
func (f *FuncCtx) emitDirectCall(n *ast.Node, sig *FuncSig) {
	given := len(n.Args)
	for i := 0; i < sig.NumParams; i++ {
		switch {
		case i < given:
			f.emitExpr(n.Args[i])
		case i < len(sig.ParamNames) && n.Keywords[sig.ParamNames[i]] != nil:
			f.emitExpr(n.Keywords[sig.ParamNames[i]])
		default:
			f.Buf.Emit("call $fn_%s_default%d", sanitize(n.Func.Id), i)
		}
	}
	f.Buf.Emit("call $fn_%s", sanitize(n.Func.Id))
}

// emitArgChain packs call arguments into a PAIR chain for indirect calls,
// starting a fresh chain from the empty list.
func (f *FuncCtx) emitArgChain(args []*ast.Node, keywords map[string]*ast.Node) {
	f.Buf.Emit("global.get $rt_EmptyList")
	f.emitArgChainOnto(args, keywords)
}

// emitArgChainOnto conses args (positional first, then keyword values
// sorted by name) onto whatever PAIR chain is already on the stack --
// used by emitArgChain for a fresh chain and by instantiation/method calls
// that have already consed self onto the front of the chain. An indirect
// call site has no parameter-name metadata for its callee, so keyword
// arguments can't be matched to a position; appending them in name order
// after the positionals is the best an indirect dispatch can do.
func (f *FuncCtx) emitArgChainOnto(args []*ast.Node, keywords map[string]*ast.Node) {
	names := make([]string, 0, len(keywords))
	for name := range keywords {
		names = append(names, name)
	}
	sort.Strings(names)
	ordered := make([]*ast.Node, 0, len(args)+len(names))
	ordered = append(ordered, args...)
	for _, name := range names {
		ordered = append(ordered, keywords[name])
	}
	for i := len(ordered) - 1; i >= 0; i-- {
		f.emitExpr(ordered[i])
		f.Buf.Emit("call $rt_pair_cons")
	}
}

func (f *FuncCtx) emitSeqLiteral(elts []*ast.Node, newFn, appendFn string) {
	f.Buf.Emit("call %s", newFn)
	for _, e := range elts {
		if e.Kind == ast.KindStarred {
			f.emitExpr(e.Value)
			f.Buf.Emit("call %s_extend", appendFn)
			continue
		}
		f.emitExpr(e)
		f.Buf.Emit("call %s", appendFn)
	}
}

func (f *FuncCtx) emitTupleLiteral(elts []*ast.Node) {
	f.Buf.Emit("i32.const %d", len(elts))
	f.Buf.Emit("call $rt_tuple_new")
	for i, e := range elts {
		f.emitExpr(e)
		f.Buf.Emit("i32.const %d", i)
		f.Buf.Emit("call $rt_tuple_set")
	}
}

func (f *FuncCtx) emitDictLiteral(n *ast.Node) {
	f.Buf.Emit("call $rt_dict_new")
	for i := range n.Keys {
		f.emitExpr(n.Keys[i])
		f.emitExpr(n.Values[i])
		f.Buf.Emit("call $rt_dict_set")
	}
}

// emitFString builds an f-string's value by concatenating its literal and
// formatted parts through a string buffer.
func (f *FuncCtx) emitFString(n *ast.Node) {
	f.Buf.Emit("call $rt_strbuf_new")
	for _, part := range n.Parts {
		f.Buf.Emit("local.set $__fstr_sb")
		f.Buf.Emit("local.get $__fstr_sb")
		if part.Kind == ast.KindFormatted {
			f.emitExpr(part.Value)
			if part.Spec != "" {
				f.emitInternedString(part.Spec)
				f.Buf.Emit("call $rt_strbuf_append_formatted")
			} else {
				f.Buf.Emit("call $rt_str")
				f.Buf.Emit("call $rt_strbuf_append")
			}
		} else {
			f.emitInternedString(part.Str)
			f.Buf.Emit("call $rt_strbuf_append")
		}
		f.Buf.Emit("local.get $__fstr_sb")
	}
	f.Buf.Emit("call $rt_strbuf_finish")
}

func bodyOfLambda(n *ast.Node) []*ast.Node {
	return []*ast.Node{{Kind: ast.KindReturn, Value: n.Value}}
}
