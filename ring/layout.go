package ring

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
	"math"
)

const (
	DefaultCenterX = 450
	DefaultCenterY = 325
	DefaultRadius  = 200
)

// Layout places ring members evenly on a circle for display
type Layout struct {
	CenterX int
	CenterY int
	Radius  int
}

func DefaultLayout() Layout {
	return Layout{CenterX: DefaultCenterX, CenterY: DefaultCenterY, Radius: DefaultRadius}
}

func (layout Layout) position(i, n int) Position {
	angle := 2 * math.Pi * float64(i) / float64(n)

	return Position{
		X: layout.CenterX + int(float64(layout.Radius)*math.Cos(angle)),
		Y: layout.CenterY + int(float64(layout.Radius)*math.Sin(angle)),
	}
}
