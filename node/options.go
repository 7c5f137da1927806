package node

//
// Copyright (c) 2019 ARM Limited.
//
// SPDX-License-Identifier: MIT
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to
// deal in the Software without restriction, including without limitation the
// rights to use, copy, modify, merge, publish, distribute, sublicense, and/or
// sell copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.
//

import (
	"context"
	"math/rand"
	"time"
)

const (
	DefaultThinkTimeMin            = 1000 * time.Millisecond
	DefaultThinkTimeMax            = 2500 * time.Millisecond
	DefaultRequestProbability      = 0.1
	DefaultCriticalSectionDuration = 2000 * time.Millisecond
)

// Decider decides, once per think interval, whether an agent wants the
// critical section
type Decider interface {
	WantsCriticalSection() bool
}

// CriticalSection is the work an agent performs while it is admitted. Work
// should return promptly when ctx is cancelled.
type CriticalSection interface {
	Work(ctx context.Context, nodeID uint64) error
}

type AgentConfig struct {
	ThinkTimeMin            time.Duration
	ThinkTimeMax            time.Duration
	RequestProbability      float64
	CriticalSectionDuration time.Duration
	// Decider overrides the random decision made with RequestProbability
	Decider Decider
	// CriticalSection overrides the default work of sleeping for
	// CriticalSectionDuration
	CriticalSection CriticalSection
}

func DefaultAgentConfig() AgentConfig {
	return AgentConfig{
		ThinkTimeMin:            DefaultThinkTimeMin,
		ThinkTimeMax:            DefaultThinkTimeMax,
		RequestProbability:      DefaultRequestProbability,
		CriticalSectionDuration: DefaultCriticalSectionDuration,
	}
}

type randomDecider struct {
	random      *rand.Rand
	probability float64
}

func (decider *randomDecider) WantsCriticalSection() bool {
	return decider.random.Float64() < decider.probability
}

type sleepingCriticalSection struct {
	duration time.Duration
}

func (criticalSection *sleepingCriticalSection) Work(ctx context.Context, nodeID uint64) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(criticalSection.duration):
		return nil
	}
}
