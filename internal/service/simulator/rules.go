// internal/service/simulator/rules.go
package simulator

import (
	"fmt"

	"beerorder/internal/pkg/bootstrap"
	"beerorder/internal/service/order/domain"

	"github.com/google/cel-go/cel"
)

// Rules 是一组 CEL 布尔表达式，决定模拟的校验服务和库存服务如何回包。
// 可用变量：customerRef、customerId (string)，lineCount、totalQuantity (int)。
type Rules struct {
	validateRespond  cel.Program
	valid            cel.Program
	allocateRespond  cel.Program
	allocationError  cel.Program
	pendingInventory cel.Program
}

func CompileRules(cfg bootstrap.SimulatorConfig) (*Rules, error) {
	env, err := cel.NewEnv(
		cel.Variable("customerRef", cel.StringType),
		cel.Variable("customerId", cel.StringType),
		cel.Variable("lineCount", cel.IntType),
		cel.Variable("totalQuantity", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}

	r := &Rules{}
	for _, item := range []struct {
		name string
		expr string
		dst  *cel.Program
	}{
		{"validate_respond", cfg.ValidateRespond, &r.validateRespond},
		{"valid", cfg.Valid, &r.valid},
		{"allocate_respond", cfg.AllocateRespond, &r.allocateRespond},
		{"allocation_error", cfg.AllocationError, &r.allocationError},
		{"pending_inventory", cfg.PendingInventory, &r.pendingInventory},
	} {
		prg, err := compile(env, item.expr)
		if err != nil {
			return nil, fmt.Errorf("simulator rule %s: %w", item.name, err)
		}
		*item.dst = prg
	}
	return r, nil
}

func compile(env *cel.Env, expr string) (cel.Program, error) {
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("expression %q must evaluate to bool, got %s", expr, ast.OutputType())
	}
	return env.Program(ast)
}

func eval(prg cel.Program, order *domain.Order) (bool, error) {
	total := 0
	for _, l := range order.Lines {
		total += l.OrderQuantity
	}
	out, _, err := prg.Eval(map[string]any{
		"customerRef":   order.CustomerRef,
		"customerId":    order.CustomerID,
		"lineCount":     int64(len(order.Lines)),
		"totalQuantity": int64(total),
	})
	if err != nil {
		return false, err
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("rule returned %T, want bool", out.Value())
	}
	return b, nil
}
