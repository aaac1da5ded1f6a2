package e2e

import (
	"github.com/cucumber/godog"

	"gatehouse/e2e/steps/billing"
	"gatehouse/e2e/steps/gate"
)

// RegisterSteps registers all step definitions from modular packages against
// the shared scenario context.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	gate.RegisterSteps(ctx, tc)
	billing.RegisterSteps(ctx, tc)
}
