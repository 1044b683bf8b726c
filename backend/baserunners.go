// Copyright (c) 2026 TTBT Enterprises LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package backend

// BaserunnerState records which player occupies each base. An empty
// string means the base is open.
type BaserunnerState struct {
	First  string `json:"first,omitempty"`
	Second string `json:"second,omitempty"`
	Third  string `json:"third,omitempty"`
}

// RunnerOn returns the id of the runner on base, or "" if the base is open.
func (s BaserunnerState) RunnerOn(base string) string {
	switch base {
	case BaseFirst:
		return s.First
	case BaseSecond:
		return s.Second
	case BaseThird:
		return s.Third
	}
	return ""
}

// Occupied reports whether a runner is on base.
func (s BaserunnerState) Occupied(base string) bool {
	return s.RunnerOn(base) != ""
}

// Empty reports whether no base is occupied.
func (s BaserunnerState) Empty() bool {
	return s.First == "" && s.Second == "" && s.Third == ""
}

// place puts runnerID on base, overwriting any previous occupant.
func (s *BaserunnerState) place(base, runnerID string) {
	switch base {
	case BaseFirst:
		s.First = runnerID
	case BaseSecond:
		s.Second = runnerID
	case BaseThird:
		s.Third = runnerID
	}
}

// occupiedBases returns the occupied bases lead runner first, so that
// advancement resolves from third base down to first.
func (s BaserunnerState) occupiedBases() []string {
	var bases []string
	if s.Third != "" {
		bases = append(bases, BaseThird)
	}
	if s.Second != "" {
		bases = append(bases, BaseSecond)
	}
	if s.First != "" {
		bases = append(bases, BaseFirst)
	}
	return bases
}

// nextBase returns the base one station ahead, or DecisionHome from third.
func nextBase(base string) string {
	switch base {
	case BaseFirst:
		return BaseSecond
	case BaseSecond:
		return BaseThird
	case BaseThird:
		return DecisionHome
	}
	return ""
}
