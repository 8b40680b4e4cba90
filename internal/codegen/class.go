package codegen

import "pywasmc/internal/ast"

// emitClassDef compiles a class definition: it creates a Class value at
// module initialization — base resolved (default "object"), body executed
// in a specialized mode collecting name->closure pairs into the method
// chain, with static/class-method/property wrappers applied by decorators;
// a declared __slots__ of string literals triggers a dedicated Slotted
// struct shape.
func (f *FuncCtx) emitClassDef(n *ast.Node) {
	prevClass := f.Class
	baseName := "object"
	if len(n.Bases) > 0 && n.Bases[0].Kind == ast.KindName {
		baseName = n.Bases[0].Id
	}
	f.Class = &ClassCtx{Name: n.Name, BaseName: baseName}

	f.Buf.Emit(";; class %s(%s)", n.Name, baseName)
	if len(n.Bases) > 0 {
		f.emitExpr(n.Bases[0])
	} else {
		f.Buf.Emit("global.get $class_object")
	}
	f.emitInternedString(n.Name)
	f.Buf.Emit("call $rt_class_new")
	f.Buf.Emit("global.set $class_%s", sanitize(n.Name))

	f.C.Classes[n.Name] = true
	slots := collectSlots(n)
	f.C.ClassSlots[n.Name] = slots
	for _, s := range slots {
		f.Buf.Emit("global.get $class_%s", sanitize(n.Name))
		f.emitInternedString(s)
		f.Buf.Emit("call $rt_class_add_slot")
	}

	for _, stmt := range n.ClassBody {
		switch stmt.Kind {
		case ast.KindFunctionDef:
			f.emitMethodDef(n.Name, stmt)
		case ast.KindAssign:
			f.emitClassAttr(n.Name, stmt)
		case ast.KindPass:
		default:
			f.emitStmt(stmt)
		}
	}

	f.Class = prevClass
}

func collectSlots(classDef *ast.Node) []string {
	for _, stmt := range classDef.ClassBody {
		if stmt.Kind != ast.KindAssign || len(stmt.Targets) != 1 {
			continue
		}
		if stmt.Targets[0].Kind != ast.KindName || stmt.Targets[0].Id != "__slots__" {
			continue
		}
		val := stmt.Value
		if val == nil || (val.Kind != ast.KindTuple && val.Kind != ast.KindList) {
			continue
		}
		var out []string
		for _, e := range val.Elts {
			if e.Kind == ast.KindString {
				out = append(out, e.Str)
			}
		}
		return out
	}
	return nil
}

// emitMethodDef compiles one class-body function and binds it into the
// class's method chain, applying staticmethod/classmethod/property
// wrappers for the decorator-applied wrapper kinds.
func (f *FuncCtx) emitMethodDef(className string, fn *ast.Node) {
	sig, scope := f.C.compileFunctionBody(className+"_"+fn.Name, fn.Params, fn.Body, f)
	f.Buf.Emit("global.get $rt_EmptyList")
	for fv := range scope.FreeVars {
		f.emitInternedString(fv)
		f.emitNameLoad(fv)
		f.Buf.Emit("call $rt_env_push")
	}
	f.Buf.Emit("i32.const %d", sig.Index)
	f.Buf.Emit("call $rt_make_closure")

	kind := methodWrapperKind(fn.Decorators)
	switch kind {
	case wrapperStatic:
		f.Buf.Emit("call $rt_make_staticmethod")
	case wrapperClass:
		f.Buf.Emit("call $rt_make_classmethod")
	case wrapperProperty:
		f.Buf.Emit("call $rt_make_property_getter")
	case wrapperNone:
	}
	f.Buf.Emit("local.set $__method_fn")
	f.Buf.Emit("global.get $class_%s", sanitize(className))
	f.emitInternedString(fn.Name)
	f.Buf.Emit("local.get $__method_fn")
	f.Buf.Emit("call $rt_class_add_method")
}

type wrapperKind int

const (
	wrapperNone wrapperKind = iota
	wrapperStatic
	wrapperClass
	wrapperProperty
)

func methodWrapperKind(decorators []*ast.Node) wrapperKind {
	for _, d := range decorators {
		if d.Kind == ast.KindName {
			switch d.Id {
			case "staticmethod":
				return wrapperStatic
			case "classmethod":
				return wrapperClass
			case "property":
				return wrapperProperty
			}
		}
	}
	return wrapperNone
}

func (f *FuncCtx) emitClassAttr(className string, stmt *ast.Node) {
	if len(stmt.Targets) != 1 || stmt.Targets[0].Kind != ast.KindName {
		return
	}
	if stmt.Targets[0].Id == "__slots__" {
		return // already handled structurally
	}
	f.emitExpr(stmt.Value)
	f.Buf.Emit("local.set $__method_fn")
	f.Buf.Emit("global.get $class_%s", sanitize(className))
	f.emitInternedString(stmt.Targets[0].Id)
	f.Buf.Emit("local.get $__method_fn")
	f.Buf.Emit("call $rt_class_add_method")
}
