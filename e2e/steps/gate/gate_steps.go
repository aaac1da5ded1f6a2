// Package gate holds step definitions for route authorization scenarios:
// session setup, browser and API requests, and decision assertions.
package gate

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cucumber/godog"
)

// TestContext is the slice of the suite context these steps need.
type TestContext interface {
	ClearSession()
	SignInAs(alias string) error
	Navigate(path string) error
	CallAPI(path string) error
	LastStatus() int
	LastHeader(name string) string
	ResponseField(path string) (any, error)
}

// RegisterSteps registers gate-related step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &gateSteps{tc: tc}

	ctx.Step(`^I am not signed in$`, steps.notSignedIn)
	ctx.Step(`^I am signed in as "([^"]*)"$`, steps.signedInAs)

	ctx.Step(`^I navigate to "([^"]*)"$`, steps.navigateTo)
	ctx.Step(`^I call the API at "([^"]*)"$`, steps.callAPI)

	ctx.Step(`^I should be redirected to "([^"]*)"$`, steps.redirectedTo)
	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the response field "([^"]*)" should be "([^"]*)"$`, steps.fieldShouldBe)
	ctx.Step(`^the response field "([^"]*)" should not be empty$`, steps.fieldShouldNotBeEmpty)
}

type gateSteps struct {
	tc TestContext
}

func (s *gateSteps) notSignedIn(ctx context.Context) error {
	s.tc.ClearSession()
	return nil
}

func (s *gateSteps) signedInAs(ctx context.Context, alias string) error {
	return s.tc.SignInAs(alias)
}

func (s *gateSteps) navigateTo(ctx context.Context, path string) error {
	return s.tc.Navigate(path)
}

func (s *gateSteps) callAPI(ctx context.Context, path string) error {
	return s.tc.CallAPI(path)
}

func (s *gateSteps) redirectedTo(ctx context.Context, destination string) error {
	if s.tc.LastStatus() != http.StatusFound {
		return fmt.Errorf("expected status %d, got %d", http.StatusFound, s.tc.LastStatus())
	}
	if location := s.tc.LastHeader("Location"); location != destination {
		return fmt.Errorf("expected redirect to %q, got %q", destination, location)
	}
	return nil
}

func (s *gateSteps) statusShouldBe(ctx context.Context, status int) error {
	if s.tc.LastStatus() != status {
		return fmt.Errorf("expected status %d, got %d", status, s.tc.LastStatus())
	}
	return nil
}

func (s *gateSteps) errorCodeShouldBe(ctx context.Context, code string) error {
	value, err := s.tc.ResponseField("error")
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) != code {
		return fmt.Errorf("expected error code %q, got %v", code, value)
	}
	return nil
}

func (s *gateSteps) fieldShouldBe(ctx context.Context, path, expected string) error {
	value, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) != expected {
		return fmt.Errorf("expected field %q to be %q, got %v", path, expected, value)
	}
	return nil
}

func (s *gateSteps) fieldShouldNotBeEmpty(ctx context.Context, path string) error {
	value, err := s.tc.ResponseField(path)
	if err != nil {
		return err
	}
	if fmt.Sprintf("%v", value) == "" {
		return fmt.Errorf("expected field %q to be non-empty", path)
	}
	return nil
}
