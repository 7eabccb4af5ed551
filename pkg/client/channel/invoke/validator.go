/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package invoke

import (
	"github.com/Knetic/govaluate"
	pb "github.com/hyperledger/fabric-protos-go/peer"
	"github.com/pkg/errors"
)

// ExpressionValidator builds a Validator from boolean expressions over the
// parameters status, message and payload, for example
//
//	status == 200 || message =~ 'already exists'
//
// swallowExpr may be empty. A response is swallowed when it is valid and
// swallowExpr holds for it. An expression that fails to evaluate marks the
// response invalid.
func ExpressionValidator(validExpr, swallowExpr string) (Validator, error) {
	valid, err := govaluate.NewEvaluableExpression(validExpr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid validation expression [%s]", validExpr)
	}

	var swallow *govaluate.EvaluableExpression
	if swallowExpr != "" {
		swallow, err = govaluate.NewEvaluableExpression(swallowExpr)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid swallow expression [%s]", swallowExpr)
		}
	}

	return func(resp *pb.ProposalResponse) Verdict {
		params := map[string]interface{}{
			"status":  float64(resp.GetResponse().GetStatus()),
			"message": resp.GetResponse().GetMessage(),
			"payload": string(resp.GetResponse().GetPayload()),
		}
		verdict := Verdict{IsValid: evaluate(valid, params)}
		if verdict.IsValid && swallow != nil {
			verdict.IsSwallowed = evaluate(swallow, params)
		}
		return verdict
	}, nil
}

func evaluate(expr *govaluate.EvaluableExpression, params map[string]interface{}) bool {
	result, err := expr.Evaluate(params)
	if err != nil {
		logger.Debugf("evaluating [%s] failed: %s", expr.String(), err)
		return false
	}
	b, ok := result.(bool)
	if !ok {
		logger.Debugf("expression [%s] is not boolean: %v", expr.String(), result)
		return false
	}
	return b
}
