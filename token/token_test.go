package token_test

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
	. "github.com/PelionIoT/tokenring/token"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Token", func() {
	Describe("#NewToken", func() {
		It("Should start at sequence zero with the initial holder's queue as its pending set", func() {
			holderQueue := NewRequesterQueue()
			token := NewToken(1, holderQueue)

			Expect(token.Holder()).Should(Equal(uint64(1)))
			Expect(token.Sequence()).Should(Equal(uint64(0)))
			Expect(token.Pending()).Should(BeIdenticalTo(holderQueue))
			Expect(token.ID()).ShouldNot(BeEmpty())
		})

		It("Should give every token a distinct ID", func() {
			Expect(NewToken(1, nil).ID()).ShouldNot(Equal(NewToken(1, nil).ID()))
		})
	})

	Describe("#Merge", func() {
		var token *Token

		BeforeEach(func() {
			token = NewToken(1, NewRequesterQueue())
		})

		It("Should ignore the holder's own ID", func() {
			Expect(token.Merge(1)).Should(BeFalse())
			Expect(token.Pending().Len()).Should(Equal(0))
		})

		It("Should be idempotent", func() {
			Expect(token.Merge(2)).Should(BeTrue())
			Expect(token.Merge(2)).Should(BeFalse())
			Expect(token.Pending().IDs()).Should(Equal([]uint64{2}))
		})

		It("Should produce the same set regardless of arrival order", func() {
			other := NewToken(1, NewRequesterQueue())

			token.Merge(2)
			token.Merge(3)
			token.Merge(2)
			other.Merge(3)
			other.Merge(2)
			other.Merge(3)

			Expect(token.Pending().IDs()).Should(ConsistOf(other.Pending().IDs()))
		})
	})

	Describe("#Transfer", func() {
		It("Should update the holder, bump the sequence and point at the new holder's queue", func() {
			token := NewToken(1, NewRequesterQueue())
			nextQueue := NewRequesterQueue()

			Expect(token.Transfer(2, nextQueue)).Should(Equal(uint64(1)))
			Expect(token.Holder()).Should(Equal(uint64(2)))
			Expect(token.Pending()).Should(BeIdenticalTo(nextQueue))
			Expect(token.Transfer(3, NewRequesterQueue())).Should(Equal(uint64(2)))
		})
	})
})
