package shared

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
	"time"

	. "github.com/PelionIoT/tokenring/logging"
)

type Purger interface {
	Purge() error
}

// HistoryPurger periodically trims the event history down to its limit
type HistoryPurger struct {
	history       Purger
	purgeInterval time.Duration
	done          chan bool
}

func NewHistoryPurger(history Purger, purgeInterval uint64) *HistoryPurger {
	return &HistoryPurger{
		history:       history,
		purgeInterval: time.Millisecond * time.Duration(purgeInterval),
		done:          make(chan bool),
	}
}

func (historyPurger *HistoryPurger) Start() {
	go func(done chan bool) {
		for {
			select {
			case <-done:
				return
			case <-time.After(historyPurger.purgeInterval):
				Log.Debugf("Purging old events from the history")

				if err := historyPurger.history.Purge(); err != nil {
					Log.Warningf("Unable to purge the history: %v", err.Error())
				}
			}
		}
	}(historyPurger.done)
}

func (historyPurger *HistoryPurger) Stop() {
	close(historyPurger.done)
}
