package analysis

import "pywasmc/internal/ast"

// forEachChild invokes f on every direct child node of n, covering every
// node kind in the tree. Order doesn't matter to any caller in this
// package; it's chosen to read top-to-bottom with the node's fields.
func forEachChild(n *ast.Node, f func(*ast.Node)) {
	if n == nil {
		return
	}
	one := func(c *ast.Node) {
		if c != nil {
			f(c)
		}
	}
	many := func(cs []*ast.Node) {
		for _, c := range cs {
			one(c)
		}
	}

	switch n.Kind {
	case ast.KindUnaryOp:
		one(n.Operand)
	case ast.KindBinOp:
		one(n.Left)
		one(n.Right)
	case ast.KindBoolOp, ast.KindCompareOp:
		many(n.Values)
	case ast.KindWalrus:
		one(n.Target)
		one(n.Value)
	case ast.KindIfExpr:
		one(n.Test)
		one(n.Then)
		one(n.Else)
	case ast.KindAttribute:
		one(n.Obj)
	case ast.KindSubscript:
		one(n.Obj)
		one(n.Index)
	case ast.KindSlice:
		one(n.Lower)
		one(n.Upper)
		one(n.Step)
	case ast.KindCall:
		one(n.Func)
		many(n.Args)
		one(n.Starargs)
		for _, v := range n.Keywords {
			one(v)
		}
	case ast.KindLambda:
		for _, p := range n.Params {
			one(p.Default)
		}
		one(n.Value)
	case ast.KindList, ast.KindSet, ast.KindTuple:
		many(n.Elts)
	case ast.KindDict:
		many(n.Keys)
		many(n.Values)
	case ast.KindFString:
		many(n.Parts)
	case ast.KindFormatted:
		one(n.Value)
	case ast.KindListComp, ast.KindSetComp, ast.KindGenExp:
		one(n.Elt)
		for _, g := range n.Generators {
			one(g.Iter)
			many(g.Ifs)
		}
	case ast.KindDictComp:
		one(n.KeyExpr)
		one(n.ValExpr)
		for _, g := range n.Generators {
			one(g.Iter)
			many(g.Ifs)
		}
	case ast.KindStarred:
		one(n.Value)
	case ast.KindYield:
		one(n.Value)
	case ast.KindYieldFr:
		one(n.Value)

	case ast.KindAssign:
		many(n.Targets)
		one(n.Value)
	case ast.KindAugAssign, ast.KindAnnAssign:
		one(n.Target)
		one(n.Value)
	case ast.KindExprStmt:
		one(n.Value)
	case ast.KindIf:
		one(n.Test)
		many(n.Body)
		many(n.OrElse)
	case ast.KindWhile:
		one(n.Test)
		many(n.Body)
		many(n.OrElse)
	case ast.KindFor:
		one(n.Target)
		one(n.Iter)
		many(n.Body)
		many(n.OrElse)
	case ast.KindReturn:
		one(n.Value)
	case ast.KindAssert:
		one(n.Test)
		one(n.Value)
	case ast.KindTry:
		many(n.Body)
		for _, h := range n.Handlers {
			one(h.Type)
			many(h.Body)
		}
		many(n.OrElse)
		many(n.Finally)
	case ast.KindWith:
		for _, it := range n.Items {
			one(it.ContextExpr)
			one(it.OptionalVar)
		}
		many(n.Body)
	case ast.KindRaise:
		one(n.Exc)
		one(n.Cause)
	case ast.KindFunctionDef:
		for _, p := range n.Params {
			one(p.Default)
		}
		many(n.Decorators)
		many(n.Body)
	case ast.KindClassDef:
		many(n.Bases)
		many(n.Decorators)
		many(n.ClassBody)
	case ast.KindMatch:
		one(n.Subject)
		for _, c := range n.Cases {
			one(c.Pattern)
			one(c.Guard)
			many(c.Body)
		}
	case ast.KindDelete:
		many(n.Targets)

	case ast.KindPatternAs:
		one(n.Obj)
	case ast.KindPatternSequence, ast.KindPatternClass:
		one(n.PatCls)
		many(n.PatPatterns)
	case ast.KindPatternMapping:
		many(n.PatKeys)
		many(n.PatPatterns)
	case ast.KindPatternOr:
		many(n.Values)
	case ast.KindPatternValue:
		one(n.Value)
	}
}

// walk performs a pre-order traversal starting at n; visit returning false
// prunes that node's subtree (used to stop at nested function/class
// boundaries).
func walk(n *ast.Node, visit func(*ast.Node) bool) {
	if n == nil {
		return
	}
	if !visit(n) {
		return
	}
	forEachChild(n, func(c *ast.Node) { walk(c, visit) })
}

func walkStmts(body []*ast.Node, visit func(*ast.Node) bool) {
	for _, s := range body {
		walk(s, visit)
	}
}

func walkExpr(e *ast.Node, visit func(*ast.Node) bool) {
	walk(e, visit)
}
