package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampler_RateZeroKeepsNothing(t *testing.T) {
	sampler := NewSampler(0)

	for i := 0; i < 100; i++ {
		assert.False(t, sampler.ShouldSample(ActionAllow))
	}
}

func TestSampler_RateOneKeepsEverything(t *testing.T) {
	sampler := NewSampler(1.0)

	for i := 0; i < 100; i++ {
		assert.True(t, sampler.ShouldSample(ActionRedirectToSignIn))
	}
}

func TestSampler_PerActionOverride(t *testing.T) {
	sampler := NewSampler(1.0)
	sampler.SetRate(ActionAllow, 0)

	assert.False(t, sampler.ShouldSample(ActionAllow))
	assert.True(t, sampler.ShouldSample(ActionRedirectToSubscription))
}

func TestSampler_ClampsRates(t *testing.T) {
	sampler := NewSampler(5.0)
	assert.True(t, sampler.ShouldSample(ActionAllow))

	sampler.SetRate(ActionAllow, -1)
	assert.False(t, sampler.ShouldSample(ActionAllow))
}
