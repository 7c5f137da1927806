package shared_test

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
	"sync"

	. "github.com/PelionIoT/tokenring/shared"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

type countingPurger struct {
	lock   sync.Mutex
	purges int
}

func (purger *countingPurger) Purge() error {
	purger.lock.Lock()
	defer purger.lock.Unlock()

	purger.purges++

	return nil
}

func (purger *countingPurger) Purges() int {
	purger.lock.Lock()
	defer purger.lock.Unlock()

	return purger.purges
}

var _ = Describe("HistoryPurger", func() {
	It("should purge periodically until stopped", func() {
		purger := &countingPurger{}
		historyPurger := NewHistoryPurger(purger, 10)

		historyPurger.Start()

		Eventually(purger.Purges).Should(BeNumerically(">=", 2))

		historyPurger.Stop()
	})
})
