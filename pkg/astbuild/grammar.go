package astbuild

import (
	"github.com/notimplife/cels-cc/pkg/ast"
	"github.com/notimplife/cels-cc/pkg/grammar"
	"github.com/notimplife/cels-cc/pkg/lexer"
	"github.com/notimplife/cels-cc/pkg/symbols"
)

// buildGrammar declares the Celesta surface grammar with its semantic
// actions. Rule ids are assigned in declaration order, so changing this
// list invalidates persisted analysis tables through the checksum.
func (b *Builder) buildGrammar() (*grammar.Grammar, error) {
	f := b.factory
	term := func(kind lexer.Kind) *grammar.Terminal { return f.Terminal(kind.String()) }

	literalBool := term(lexer.LITERAL_BOOL)
	literalDec := term(lexer.LITERAL_DEC)
	literalInt := term(lexer.LITERAL_INT)
	literalStr := term(lexer.LITERAL_STR)

	kwBegin := term(lexer.KW_BEGIN)
	kwBool := term(lexer.KW_BOOL)
	kwBreak := term(lexer.KW_BREAK)
	kwContinue := term(lexer.KW_CONTINUE)
	kwCppInclude := term(lexer.KW_CPP_INCLUDE)
	kwDo := term(lexer.KW_DO)
	kwElse := term(lexer.KW_ELSE)
	kwEnd := term(lexer.KW_END)
	kwExtern := term(lexer.KW_EXTERN)
	kwFi := term(lexer.KW_FI)
	kwFunction := term(lexer.KW_FUNCTION)
	kwIf := term(lexer.KW_IF)
	kwImport := term(lexer.KW_IMPORT)
	kwInt := term(lexer.KW_INT)
	kwLambda := term(lexer.KW_LAMBDA)
	kwMultiframe := term(lexer.KW_MULTIFRAME)
	kwNot := term(lexer.KW_NOT)
	kwPackage := term(lexer.KW_PACKAGE)
	kwReturn := term(lexer.KW_RETURN)
	kwShort := term(lexer.KW_SHORT)
	kwString := term(lexer.KW_STRING)
	kwStruct := term(lexer.KW_STRUCT)
	kwSuspend := term(lexer.KW_SUSPEND)
	kwTaskready := term(lexer.KW_TASKREADY)
	kwTaskresult := term(lexer.KW_TASKRESULT)
	kwTaskstart := term(lexer.KW_TASKSTART)
	kwThen := term(lexer.KW_THEN)
	kwUint := term(lexer.KW_UINT)
	kwUshort := term(lexer.KW_USHORT)
	kwVar := term(lexer.KW_VAR)
	kwVoid := term(lexer.KW_VOID)
	kwWhile := term(lexer.KW_WHILE)

	sAmpersand := term(lexer.S_AMPERSAND)
	sColon := term(lexer.S_COLON)
	sComma := term(lexer.S_COMMA)
	sDot := term(lexer.S_DOT)
	sDoubleColon := term(lexer.S_DOUBLECOLON)
	sGt := term(lexer.S_GT)
	sGte := term(lexer.S_GTE)
	sEqeq := term(lexer.S_EQEQ)
	sEqual := term(lexer.S_EQUAL)
	sLbrack := term(lexer.S_LBRACK)
	sLparen := term(lexer.S_LPAREN)
	sLrarrow := term(lexer.S_LRARROW)
	sRrarrow := term(lexer.S_RRARROW)
	sLt := term(lexer.S_LT)
	sLte := term(lexer.S_LTE)
	sMinus := term(lexer.S_MINUS)
	sNeq := term(lexer.S_NEQ)
	sPercent := term(lexer.S_PERCENT)
	sPlus := term(lexer.S_PLUS)
	sRbrack := term(lexer.S_RBRACK)
	sRparen := term(lexer.S_RPAREN)
	sSemicolon := term(lexer.S_SEMICOLON)
	sSlash := term(lexer.S_SLASH)
	sStar := term(lexer.S_STAR)

	tID := term(lexer.ID)
	eps := f.Epsilon()

	P := f.NonTerminal("P")
	E := f.NonTerminal("E")
	eEQ := f.NonTerminal("E_EQ")
	eREL := f.NonTerminal("E_REL")
	eA := f.NonTerminal("E_A")
	eM := f.NonTerminal("E_M")
	eRTL := f.NonTerminal("E_RTL")
	eCALL := f.NonTerminal("E_CALL")
	eTERM := f.NonTerminal("E_TERM")
	eLIST := f.NonTerminal("E_LIST")
	symbolTerm := f.NonTerminal("SYMBOL_TERM")

	stmtBlock := f.NonTerminal("STMT_BLOCK")
	stmts := f.NonTerminal("STMTS")
	stmt := f.NonTerminal("STMT")

	anonBlock := f.NonTerminal("ANON_SCOPED_BLOCK")
	anonBlockEnc := f.NonTerminal("ANON_SCOPED_BLOCK_ENCAPSULED")

	dataType := f.NonTerminal("DATA_TYPE")

	structBlock := f.NonTerminal("STRUCT_BLOCK")
	structMembers := f.NonTerminal("STRUCT_MEMBERS")
	structMember := f.NonTerminal("STRUCT_MEMBER")
	structMethodHeader := f.NonTerminal("STRUCT_METHOD_HEADER")

	literalNT := f.NonTerminal("LITERAL")

	lambdaDecl := f.NonTerminal("LAMBDA_DECL")
	lambdaHeaderNT := f.NonTerminal("LAMBDA_HEADER")

	symbolNT := f.NonTerminal("SYMBOL")
	symChain := f.NonTerminal("SYM_CHAIN")

	funcHeader := f.NonTerminal("FUNC_HEADER")
	funcSpecNT := f.NonTerminal("FUNC_SPEC")
	funcSpecs := f.NonTerminal("FUNC_SPECS")

	fparams := f.NonTerminal("FPARAMS")
	fparam := f.NonTerminal("FPARAM")

	scopePush := f.NonTerminal("SCOPE_PUSH")
	namedScopePush := f.NonTerminal("NAMED_SCOPE_PUSH")
	scopePop := f.NonTerminal("SCOPE_POP")
	idDefinesScope := f.NonTerminal("ID_DEFINES_SCOPE")
	idDefinesStruct := f.NonTerminal("ID_DEFINES_SCOPED_STRUCT")

	var rules []*grammar.Rule
	add := func(lhs *grammar.NonTerminal, rhs []grammar.Component, act grammar.Action) {
		rules = append(rules, grammar.NewRule(lhs, rhs, act))
	}
	seq := func(comps ...grammar.Component) []grammar.Component { return comps }
	pick := func(i int) grammar.Action {
		return func(c []any) (any, error) { return c[i], nil }
	}

	// Binary operator tiers, left-associative: one rule per operator
	// plus the identity rule into the next tier.
	binaryTier := func(cur, lower *grammar.NonTerminal, ops []*grammar.Terminal) {
		for _, op := range ops {
			add(cur, seq(cur, op, lower), func(c []any) (any, error) {
				return b.reduceBinaryOp(c[0], c[1], c[2])
			})
		}
		add(cur, seq(lower), pick(0))
	}

	add(P, seq(stmtBlock), pick(0))

	add(stmtBlock, seq(stmts), func(c []any) (any, error) { return b.reduceBlock(c[0]) })
	add(stmts, seq(stmt, sSemicolon, stmts), func(c []any) (any, error) { return reduceList(c[0], c[2]) })
	add(stmts, seq(eps), func(c []any) (any, error) { return []any{}, nil })

	add(anonBlockEnc, seq(scopePush, kwBegin, stmtBlock, kwEnd, scopePop), pick(2))
	add(anonBlock, seq(anonBlockEnc), pick(0))
	add(anonBlock, seq(scopePush, stmt, scopePop), func(c []any) (any, error) {
		n, err := node(c[1])
		if err != nil {
			return nil, err
		}
		return ast.NewBlock(n), nil
	})

	// Variable declarations
	add(stmt, seq(kwVar, tID, sColon, dataType), func(c []any) (any, error) {
		return b.reduceVDecl(c[1], c[3])
	})
	add(stmt, seq(kwVar, tID, sColon, dataType, sEqual, E), func(c []any) (any, error) {
		return b.reduceVDeclWithExpr(c[1], c[3], c[5])
	})
	add(stmt, seq(kwVar, tID, sEqual, E), func(c []any) (any, error) {
		return b.reduceVDeclWithExpr(c[1], nil, c[3])
	})

	// Package declaration
	add(stmt, seq(kwPackage, idDefinesScope, namedScopePush, kwBegin, stmtBlock, kwEnd, scopePop),
		func(c []any) (any, error) { return b.reducePackage(c[1], c[4], c[6]) })

	add(stmt, seq(kwImport, literalStr), func(c []any) (any, error) { return b.reduceImport(c[1]) })

	// Function declarations
	add(stmt, seq(funcHeader, kwBegin, stmtBlock, kwEnd, scopePop), func(c []any) (any, error) {
		return b.reduceFuncDecl(c[0], c[2])
	})
	add(stmt, seq(funcHeader, scopePop), func(c []any) (any, error) {
		return b.reduceFuncDecl(c[0], nil)
	})

	add(stmt, seq(kwReturn, E), func(c []any) (any, error) { return b.reduceReturn(c[1]) })
	add(stmt, seq(kwReturn), func(c []any) (any, error) { return b.reduceReturn(nil) })

	// Assignment
	add(stmt, seq(eRTL, sEqual, E), func(c []any) (any, error) { return b.reduceAssign(c[0], c[2]) })

	// Struct declaration
	add(stmt, seq(kwStruct, idDefinesStruct, structBlock, scopePop), func(c []any) (any, error) {
		return b.reduceStructDecl(c[1], c[2])
	})

	add(structBlock, seq(eps), func(c []any) (any, error) { return []any{}, nil })
	add(structBlock, seq(kwBegin, structMembers, kwEnd), pick(1))

	add(structMembers, seq(structMember, sSemicolon, structMembers), func(c []any) (any, error) {
		return reduceList(c[0], c[2])
	})
	add(structMembers, seq(eps), func(c []any) (any, error) { return []any{}, nil })

	add(structMember, seq(structMethodHeader, kwBegin, stmtBlock, kwEnd, scopePop), func(c []any) (any, error) {
		return b.reduceFuncDecl(c[0], c[2])
	})
	add(structMember, seq(structMethodHeader, scopePop), func(c []any) (any, error) {
		return b.reduceFuncDecl(c[0], nil)
	})
	add(structMember, seq(kwVar, tID, sColon, dataType), func(c []any) (any, error) {
		return b.reduceFieldDecl(c[1], c[3])
	})

	add(structMethodHeader, seq(funcSpecs, kwFunction, tID, sLparen, fparams, sRparen, sColon, dataType),
		func(c []any) (any, error) { return b.reduceStructMethodHeader(c[2], c[4], c[7], c[0]) })

	add(funcHeader, seq(funcSpecs, kwFunction, tID, sLparen, fparams, sRparen, sColon, dataType),
		func(c []any) (any, error) { return b.reduceFuncHeader(c[2], c[4], c[7], c[0], nil) })

	add(funcSpecs, seq(funcSpecNT, funcSpecs), func(c []any) (any, error) { return reduceList(c[0], c[1]) })
	add(funcSpecs, seq(eps), func(c []any) (any, error) { return []any{}, nil })
	add(funcSpecNT, seq(kwCppInclude, sLparen, literalStr, sRparen), func(c []any) (any, error) {
		return b.reduceCppInclude(c[2])
	})
	add(funcSpecNT, seq(kwMultiframe), func(c []any) (any, error) { return b.reduceSimpleFuncSpec(c[0]) })
	add(funcSpecNT, seq(kwExtern), func(c []any) (any, error) { return b.reduceSimpleFuncSpec(c[0]) })

	add(fparams, seq(fparam, sComma, fparams), func(c []any) (any, error) { return reduceList(c[0], c[2]) })
	add(fparams, seq(fparam), func(c []any) (any, error) { return reduceList(c[0], nil) })
	add(fparams, seq(eps), func(c []any) (any, error) { return []any{}, nil })

	add(fparam, seq(tID, sColon, dataType), func(c []any) (any, error) {
		return b.reduceFormalParameterData(c[0], c[2])
	})

	// While / suspend / if
	add(stmt, seq(kwWhile, E, kwDo, anonBlock), func(c []any) (any, error) {
		cond, err := expr(c[1])
		if err != nil {
			return nil, err
		}
		body, err := node(c[3])
		if err != nil {
			return nil, err
		}
		return ast.NewWhile(cond, body), nil
	})

	add(stmt, seq(kwSuspend), func(c []any) (any, error) { return ast.NewSuspend(), nil })
	add(stmt, seq(kwBreak), func(c []any) (any, error) { return ast.NewBreak(), nil })
	add(stmt, seq(kwContinue), func(c []any) (any, error) { return ast.NewContinue(), nil })

	add(stmt, seq(kwIf, E, kwThen, anonBlock, sSemicolon, kwElse, anonBlock, sSemicolon, kwFi),
		func(c []any) (any, error) { return b.reduceIf(c[1], c[3], c[6]) })
	add(stmt, seq(kwIf, E, kwThen, anonBlock, sSemicolon, kwFi),
		func(c []any) (any, error) { return b.reduceIf(c[1], c[3], nil) })

	add(stmt, seq(E), pick(0))

	// Expression tiers
	add(E, seq(eEQ), pick(0))
	binaryTier(eEQ, eREL, []*grammar.Terminal{sEqeq, sNeq})
	binaryTier(eREL, eA, []*grammar.Terminal{sLt, sLte, sGt, sGte})
	binaryTier(eA, eM, []*grammar.Terminal{sPlus, sMinus})
	binaryTier(eM, eRTL, []*grammar.Terminal{sStar, sSlash, sPercent})

	add(eRTL, seq(sAmpersand, eRTL), func(c []any) (any, error) { return b.reduceAddressOf(c[1]) })
	add(eRTL, seq(sStar, eRTL), func(c []any) (any, error) { return b.reduceDereference(c[1]) })
	add(eRTL, seq(kwNot, eRTL), func(c []any) (any, error) { return b.reduceUnaryOp(c[0], c[1]) })
	add(eRTL, seq(eCALL), pick(0))

	add(eCALL, seq(eCALL, sLparen, eLIST, sRparen), func(c []any) (any, error) {
		return b.reduceCall(c[0], c[2])
	})
	add(eCALL, seq(eCALL, sLbrack, E, sRbrack), func(c []any) (any, error) {
		return b.reduceIndexAccess(c[0], c[2])
	})
	add(eCALL, seq(eCALL, sLrarrow, tID), func(c []any) (any, error) {
		return b.reducePointerMemberAccess(c[0], c[2])
	})
	add(eCALL, seq(eCALL, sDot, tID), func(c []any) (any, error) {
		return b.reduceMemberAccess(c[0], c[2])
	})
	add(eCALL, seq(eTERM), pick(0))

	add(eTERM, seq(symbolTerm), pick(0))
	add(eTERM, seq(literalNT), pick(0))
	add(eTERM, seq(sLparen, E, sRparen), pick(1))
	add(eTERM, seq(kwTaskstart, lambdaDecl), func(c []any) (any, error) { return b.reduceTaskStart(c[1]) })
	add(eTERM, seq(lambdaDecl), pick(0))
	add(eTERM, seq(kwTaskready, sLparen, E, sRparen), func(c []any) (any, error) {
		return b.reduceTaskReady(c[2])
	})
	add(eTERM, seq(kwTaskresult, sLparen, E, sRparen), func(c []any) (any, error) {
		return b.reduceTaskResult(c[2])
	})

	add(eLIST, seq(E, sComma, eLIST), func(c []any) (any, error) { return reduceList(c[0], c[2]) })
	add(eLIST, seq(E), func(c []any) (any, error) { return reduceList(c[0], nil) })
	add(eLIST, seq(eps), func(c []any) (any, error) { return []any{}, nil })

	// Lambdas
	add(lambdaDecl, seq(lambdaHeaderNT, sColon, dataType, sRrarrow, anonBlockEnc, scopePop),
		func(c []any) (any, error) {
			dt, err := b.asDataType(c[2])
			if err != nil {
				return nil, err
			}
			return b.reduceLambda(c[0], c[4], dt)
		})
	add(lambdaDecl, seq(lambdaHeaderNT, sRrarrow, anonBlockEnc, scopePop),
		func(c []any) (any, error) { return b.reduceLambda(c[0], c[2], nil) })
	add(lambdaDecl, seq(lambdaHeaderNT, sRrarrow, sLparen, E, sRparen, scopePop),
		func(c []any) (any, error) { return b.reduceLambda(c[0], c[3], nil) })

	add(lambdaHeaderNT, seq(kwLambda, sLparen, scopePush, fparams, sRparen),
		func(c []any) (any, error) { return b.reduceLambdaHeader(c[2], c[3]) })

	add(symbolTerm, seq(symbolNT), func(c []any) (any, error) { return b.reduceSymbolTerm(c[0]) })

	add(symbolNT, seq(symChain), func(c []any) (any, error) { return b.reduceSymbol(c[0]) })
	add(symChain, seq(tID, sDoubleColon, symChain), func(c []any) (any, error) {
		return reduceList(c[0], c[2])
	})
	add(symChain, seq(tID), func(c []any) (any, error) { return reduceList(c[0], nil) })

	add(literalNT, seq(literalInt), func(c []any) (any, error) { return b.reduceIntLiteral(c[0]) })
	add(literalNT, seq(literalDec), func(c []any) (any, error) { return b.reduceDecLiteral(c[0]) })
	add(literalNT, seq(literalStr), func(c []any) (any, error) { return b.reduceStringLiteral(c[0]) })
	add(literalNT, seq(literalBool), func(c []any) (any, error) { return b.reduceBoolLiteral(c[0]) })

	for _, kw := range []*grammar.Terminal{kwInt, kwBool, kwShort, kwString, kwUint, kwUshort, kwVoid} {
		add(dataType, seq(kw), func(c []any) (any, error) { return b.reduceDataTypeFromToken(c[0]) })
	}
	add(dataType, seq(symbolNT), func(c []any) (any, error) { return b.reduceDataTypeFromSymbol(c[0]) })
	add(dataType, seq(dataType, sStar), func(c []any) (any, error) {
		dt, err := b.asDataType(c[0])
		if err != nil {
			return nil, err
		}
		return symbols.MakePointer(dt), nil
	})
	add(dataType, seq(dataType, sLbrack, literalInt, sRbrack), func(c []any) (any, error) {
		return b.reduceDataTypeArray(c[0], c[2])
	})

	// Scope manoeuvres
	add(namedScopePush, seq(eps), func(c []any) (any, error) { return b.reduceNamedScopePush() })
	add(scopePush, seq(eps), func(c []any) (any, error) { return b.reducePushScope() })
	add(scopePop, seq(eps), func(c []any) (any, error) { return b.reducePopScope() })
	add(idDefinesScope, seq(tID), func(c []any) (any, error) { return b.reduceIDDefinesScope(c[0]) })
	add(idDefinesStruct, seq(tID), func(c []any) (any, error) { return b.reduceIDDefinesScopedStruct(c[0]) })

	return grammar.NewGrammar(rules)
}
