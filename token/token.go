package token

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
	"fmt"

	"github.com/google/uuid"
)

// Token is the single permit circulating on a non-empty ring. Its pending
// set is not a separate copy: it always points at the current holder's local
// queue. Token is not safe for concurrent use.
type Token struct {
	id       string
	holder   uint64
	sequence uint64
	pending  *RequesterQueue
}

// NewToken creates the token for a freshly bootstrapped ring. holderQueue must be
// the local queue of the initial holder.
func NewToken(holder uint64, holderQueue *RequesterQueue) *Token {
	if holderQueue == nil {
		holderQueue = NewRequesterQueue()
	}

	return &Token{
		id:      uuid.New().String(),
		holder:  holder,
		pending: holderQueue,
	}
}

func (token *Token) ID() string {
	return token.id
}

func (token *Token) Holder() uint64 {
	return token.holder
}

func (token *Token) Sequence() uint64 {
	return token.sequence
}

func (token *Token) Pending() *RequesterQueue {
	return token.pending
}

// Merge records requester as waiting for the token. Merging the holder's own
// ID or an ID already queued is a no-op. It reports whether the pending set
// changed.
func (token *Token) Merge(requester uint64) bool {
	if requester == token.holder {
		return false
	}

	return token.pending.Push(requester)
}

// Transfer moves the token to a new holder whose local queue becomes the
// authoritative pending set. It returns the new sequence number.
func (token *Token) Transfer(holder uint64, holderQueue *RequesterQueue) uint64 {
	token.holder = holder
	token.pending = holderQueue
	token.sequence++

	return token.sequence
}

func (token *Token) String() string {
	return fmt.Sprintf("Token-%s (holder: %d, sequence: %d, pending: %v)", token.id, token.holder, token.sequence, token.pending.IDs())
}
